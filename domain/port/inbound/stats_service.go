package inbound

import (
	"context"

	"github.com/ajkula/dirmon/domain/model"
)

// StatsService aggregates delivered events for the dashboard
type StatsService interface {
	// GetStats returns a snapshot of the collected statistics
	GetStats(ctx context.Context) (*model.StatsData, error)

	// TrackEvent records a delivered event. It has the shape of a
	// model.Callback so it can sit in the delivery chain.
	TrackEvent(path, fileName string, action model.Action)

	RecordWatchAdded(path string, actions model.Action)
	RecordWatchRemoved(path string)
	RecordLoopFailure(backend string, err error)

	// Stop ends the periodic rate collection
	Stop()
}
