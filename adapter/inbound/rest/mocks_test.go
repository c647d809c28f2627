package rest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ajkula/dirmon/domain/model"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(username, password string) (*model.User, string, error) {
	args := m.Called(username, password)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(*model.User), args.String(1), args.Error(2)
}

func (m *MockAuthService) ValidateToken(token string) (*model.User, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockAuthService) Logout(username string) error {
	args := m.Called(username)
	return args.Error(0)
}

type MockMonitor struct {
	mock.Mock
}

func (m *MockMonitor) Watch(path string, callback model.Callback, actions model.Action) (model.WatchInfo, error) {
	args := m.Called(path, callback, actions)
	return args.Get(0).(model.WatchInfo), args.Error(1)
}

func (m *MockMonitor) Unwatch(path string) (bool, error) {
	args := m.Called(path)
	return args.Bool(0), args.Error(1)
}

func (m *MockMonitor) ActionName(actions model.Action) string {
	return model.ActionName(actions)
}

func (m *MockMonitor) Watches() []model.WatchInfo {
	args := m.Called()
	return args.Get(0).([]model.WatchInfo)
}

func (m *MockMonitor) IsRunning() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockMonitor) LastError() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockMonitor) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockStatsService struct {
	mock.Mock
}

func (m *MockStatsService) GetStats(ctx context.Context) (*model.StatsData, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StatsData), args.Error(1)
}

func (m *MockStatsService) TrackEvent(path, fileName string, action model.Action) {
	m.Called(path, fileName, action)
}

func (m *MockStatsService) RecordWatchAdded(path string, actions model.Action) {
	m.Called(path, actions)
}

func (m *MockStatsService) RecordWatchRemoved(path string) {
	m.Called(path)
}

func (m *MockStatsService) RecordLoopFailure(backend string, err error) {
	m.Called(backend, err)
}

func (m *MockStatsService) Stop() {
	m.Called()
}

type MockAuthLogger struct {
	mock.Mock
}

func (m *MockAuthLogger) Debug(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockAuthLogger) Info(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockAuthLogger) Warn(msg string, args ...any) {
	m.Called(msg, args)
}

func (m *MockAuthLogger) Error(msg string, args ...any) {
	m.Called(msg, args)
}

// newQuietLogger accepts any log call
func newQuietLogger() *MockAuthLogger {
	logger := &MockAuthLogger{}
	for _, level := range []string{"Debug", "Info", "Warn", "Error"} {
		logger.On(level, mock.Anything, mock.Anything).Maybe().Return()
	}
	return logger
}

func createTestAdminModel() *model.User {
	return &model.User{
		Username: "admin",
		Role:     model.RoleAdmin,
	}
}
