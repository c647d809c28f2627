package model

// WatchSpec is a watch declared in the configuration
type WatchSpec struct {
	Path    string
	Actions Action
}

// MonitorSettings is the reloadable part of the configuration
type MonitorSettings struct {
	LogLevel string
	Watches  []WatchSpec
}
