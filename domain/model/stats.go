package model

import "time"

// SystemEvent is a notable change in the monitor's state
type SystemEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`      // "info", "warning", "error"
	EventType string    `json:"eventType"` // "watch_added", "watch_removed", "loop_failed"
	Resource  string    `json:"resource"`  // path or backend concerned
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"-"`
	UnixTime  int64     `json:"timestamp"`
}

// FileEvent is a delivered file system event as kept in the stats history
type FileEvent struct {
	Path     string `json:"path"`
	FileName string `json:"fileName"`
	Action   string `json:"action"`
	UnixTime int64  `json:"timestamp"`
}

// EventRate is the delivery rate over one collection interval
type EventRate struct {
	Timestamp int64   `json:"timestamp"`
	Rate      float64 `json:"rate"`
	Total     int     `json:"total"`
}

// Trend compares the last two collection intervals
type Trend struct {
	Direction string  `json:"direction"` // "up" or "down"
	Value     float64 `json:"value"`     // percentage
}

// PathStats counts the events delivered for one watched directory
type PathStats struct {
	Path      string         `json:"path"`
	Events    int            `json:"events"`
	ByAction  map[string]int `json:"byAction"`
	LastEvent int64          `json:"lastEvent"`
}

// StatsData is the snapshot served by the stats endpoint
type StatsData struct {
	Watches      int            `json:"watches"`
	Running      bool           `json:"running"`
	TotalEvents  int            `json:"totalEvents"`
	ByAction     map[string]int `json:"byAction"`
	EventRates   []EventRate    `json:"eventRates"`
	EventTrend   *Trend         `json:"eventTrend"`
	TopPaths     []PathStats    `json:"topPaths"`
	RecentEvents []FileEvent    `json:"recentEvents"`
	SystemEvents []SystemEvent  `json:"systemEvents"`
}
