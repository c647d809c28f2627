package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ajkula/dirmon/adapter/outbound/backend"
	"github.com/ajkula/dirmon/adapter/outbound/logging"
	"github.com/ajkula/dirmon/config"
	"github.com/ajkula/dirmon/domain/model"
	"github.com/ajkula/dirmon/domain/service"
)

type watchCmd struct {
	Dirs    []string `arg:"" type:"existingdir" help:"Directories to watch"`
	Actions []string `short:"a" help:"Actions to report (create,delete,modify,moved_from,moved_to)" default:"all"`
	Backend string   `short:"b" enum:"auto,inotify,fsnotify" default:"auto" help:"Notification backend"`
}

func (c *watchCmd) Run() error {
	mask, err := model.ParseActions(c.Actions...)
	if err != nil {
		return err
	}

	b, err := backend.New(c.Backend, backend.Options{})
	if err != nil {
		return err
	}

	// stdout only carries events
	cfg := config.DefaultConfig()
	cfg.Logging.Output = "stderr"
	cfg.Logging.Level = "WARN"
	logger, err := logging.NewSlogAdapter(cfg)
	if err != nil {
		return err
	}
	defer logger.Shutdown()

	failed := make(chan error, 1)
	monitor := service.NewMonitorService(b, service.MonitorOptions{
		Logger: logger,
		OnError: func(err error) {
			failed <- err
		},
	})
	defer monitor.Close()

	printEvent := func(path, fileName string, action model.Action) {
		fmt.Printf("%s %-20s %s\n", time.Now().Format(time.TimeOnly), model.ActionName(action), filepath.Join(path, fileName))
	}

	for _, dir := range c.Dirs {
		info, err := monitor.Watch(dir, printEvent, mask)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "watching %s (%s) with %s\n", info.Path, model.ActionName(info.Actions), b.Name())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		return nil
	case err := <-failed:
		return err
	}
}
