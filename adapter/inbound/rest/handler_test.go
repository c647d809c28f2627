package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ajkula/dirmon/config"
	"github.com/ajkula/dirmon/domain/model"
)

func setupHandler() (*mux.Router, *MockMonitor, *config.Config) {
	monitor := &MockMonitor{}
	cfg := config.DefaultConfig()
	logger := newQuietLogger()

	handler := NewHandler(monitor, func(string, string, model.Action) {}, nil, cfg, logger)
	router := NewRouter(handler, NewAuthMiddleware(&MockAuthService{}, logger, cfg), RouterOptions{})
	return router, monitor, cfg
}

func serve(router http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_Health(t *testing.T) {
	router, monitor, _ := setupHandler()

	monitor.On("LastError").Return(nil).Once()
	w := serve(router, "GET", "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	monitor.On("LastError").Return(model.ErrBackendIO).Once()
	w = serve(router, "GET", "/api/health", nil)
	assert.JSONEq(t, `{"status":"degraded"}`, w.Body.String())
}

func TestHandler_ListWatches(t *testing.T) {
	router, monitor, _ := setupHandler()

	watches := []model.WatchInfo{{ID: 1, Path: "/srv/inbox", Actions: model.ActionCreate, ActionNames: []string{"FILE_CREATE"}}}
	monitor.On("Watches").Return(watches)
	monitor.On("IsRunning").Return(true)
	monitor.On("LastError").Return(nil)

	w := serve(router, "GET", "/api/watches", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response watchesResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.True(t, response.Running)
	assert.Equal(t, watches, response.Watches)
	assert.Empty(t, response.LastError)
}

func TestHandler_AddWatch(t *testing.T) {
	router, monitor, _ := setupHandler()

	info := model.WatchInfo{ID: 4, Path: "/srv/inbox", Actions: model.ActionCreate | model.ActionRenameNewName}
	monitor.On("Watch", "/srv/inbox", mock.Anything, model.ActionCreate|model.ActionRenameNewName).Return(info, nil)

	w := serve(router, "POST", "/api/watches", WatchRequest{Path: "/srv/inbox", Actions: []string{"create", "moved_to"}})
	require.Equal(t, http.StatusCreated, w.Code)

	var got model.WatchInfo
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, info.ID, got.ID)
	monitor.AssertExpectations(t)
}

func TestHandler_AddWatch_DefaultsToAllActions(t *testing.T) {
	router, monitor, _ := setupHandler()

	monitor.On("Watch", "/srv/inbox", mock.Anything, model.ActionAll).Return(model.WatchInfo{Path: "/srv/inbox"}, nil)

	w := serve(router, "POST", "/api/watches", WatchRequest{Path: "/srv/inbox"})
	assert.Equal(t, http.StatusCreated, w.Code)
	monitor.AssertExpectations(t)
}

func TestHandler_AddWatch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    any
		err     error
		wantErr int
	}{
		{"invalid body", "not an object", nil, http.StatusBadRequest},
		{"missing path", WatchRequest{}, nil, http.StatusBadRequest},
		{"unknown action", WatchRequest{Path: "/srv", Actions: []string{"chmod"}}, nil, http.StatusBadRequest},
		{"duplicate", WatchRequest{Path: "/srv"}, fmt.Errorf("%w: /srv", model.ErrDuplicateWatch), http.StatusConflict},
		{"not a directory", WatchRequest{Path: "/srv"}, fmt.Errorf("%w: /srv", model.ErrInvalidPath), http.StatusBadRequest},
		{"monitor closed", WatchRequest{Path: "/srv"}, model.ErrMonitorClosed, http.StatusServiceUnavailable},
		{"backend failure", WatchRequest{Path: "/srv"}, fmt.Errorf("%w: poll", model.ErrBackendIO), http.StatusServiceUnavailable},
		{"unexpected", WatchRequest{Path: "/srv"}, assert.AnError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, monitor, _ := setupHandler()
			if tt.err != nil {
				monitor.On("Watch", "/srv", mock.Anything, model.ActionAll).Return(model.WatchInfo{}, tt.err)
			}

			w := serve(router, "POST", "/api/watches", tt.body)
			assert.Equal(t, tt.wantErr, w.Code)
		})
	}
}

func TestHandler_RemoveWatch(t *testing.T) {
	router, monitor, _ := setupHandler()

	monitor.On("Unwatch", "/srv/inbox").Return(true, nil)
	monitor.On("Unwatch", "/srv/other").Return(false, nil)
	monitor.On("Unwatch", "/srv/broken").Return(false, model.ErrReentrancy)

	assert.Equal(t, http.StatusNoContent, serve(router, "DELETE", "/api/watches?path=/srv/inbox", nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(router, "DELETE", "/api/watches?path=/srv/other", nil).Code)
	assert.Equal(t, http.StatusInternalServerError, serve(router, "DELETE", "/api/watches?path=/srv/broken", nil).Code)
	assert.Equal(t, http.StatusBadRequest, serve(router, "DELETE", "/api/watches", nil).Code)
}

func TestHandler_ActionName(t *testing.T) {
	router, _, _ := setupHandler()

	w := serve(router, "GET", "/api/actions/0x03", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var response actionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, model.ActionCreate|model.ActionDelete, response.Mask)
	assert.Equal(t, "FILE_CREATE FILE_DELETE", response.Name)
	assert.Equal(t, []string{"FILE_CREATE", "FILE_DELETE"}, response.Names)

	w = serve(router, "GET", "/api/actions/0", nil)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "NULL", response.Name)

	assert.Equal(t, http.StatusBadRequest, serve(router, "GET", "/api/actions/0x40", nil).Code)
}

func TestHandler_GetConfig_HidesSecrets(t *testing.T) {
	router, _, cfg := setupHandler()
	cfg.HTTP.JWT.Secret = "top-secret-value"
	cfg.Security.AdminPasswordHash = "deadbeefcafe"

	w := serve(router, "GET", "/api/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "top-secret-value")
	assert.NotContains(t, w.Body.String(), "deadbeefcafe")
	assert.Contains(t, w.Body.String(), "admin")
}

func TestHandler_StatsRouteRequiresService(t *testing.T) {
	router, _, _ := setupHandler()

	assert.Equal(t, http.StatusNotFound, serve(router, "GET", "/api/stats", nil).Code)
}

func TestHandler_Stats(t *testing.T) {
	monitor := &MockMonitor{}
	stats := &MockStatsService{}
	cfg := config.DefaultConfig()
	logger := newQuietLogger()

	handler := NewHandler(monitor, func(string, string, model.Action) {}, stats, cfg, logger)
	router := NewRouter(handler, NewAuthMiddleware(&MockAuthService{}, logger, cfg), RouterOptions{})

	info := model.WatchInfo{ID: 2, Path: "/srv/inbox", Actions: model.ActionAll}
	monitor.On("Watch", "/srv/inbox", mock.Anything, model.ActionAll).Return(info, nil)
	monitor.On("Unwatch", "/srv/inbox").Return(true, nil)
	stats.On("RecordWatchAdded", "/srv/inbox", model.ActionAll).Once()
	stats.On("RecordWatchRemoved", "/srv/inbox").Once()
	stats.On("GetStats", mock.Anything).Return(&model.StatsData{
		Watches:     1,
		Running:     true,
		TotalEvents: 7,
		ByAction:    map[string]int{"FILE_CREATE": 7},
	}, nil).Once()
	stats.On("GetStats", mock.Anything).Return(nil, context.Canceled).Once()

	require.Equal(t, http.StatusCreated, serve(router, "POST", "/api/watches", WatchRequest{Path: "/srv/inbox"}).Code)
	require.Equal(t, http.StatusNoContent, serve(router, "DELETE", "/api/watches?path=/srv/inbox", nil).Code)

	w := serve(router, "GET", "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got model.StatsData
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, 7, got.TotalEvents)
	assert.Equal(t, map[string]int{"FILE_CREATE": 7}, got.ByAction)

	assert.Equal(t, http.StatusInternalServerError, serve(router, "GET", "/api/stats", nil).Code)
	stats.AssertExpectations(t)
}
