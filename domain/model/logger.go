package model

// LevelUpdater changes the logging level at runtime
type LevelUpdater interface {
	UpdateLevel(logLvl string)
}
