// Command dirmon watches directories and streams their changes.
package main

import (
	"github.com/alecthomas/kong"
)

var version = "dev"

type CLI struct {
	Serve          serveCmd          `cmd:"" help:"Run the monitor with the HTTP API and event stream"`
	Watch          watchCmd          `cmd:"" help:"Print every change under the given directories until interrupted"`
	GenerateConfig generateConfigCmd `cmd:"" name:"generate-config" help:"Write a default configuration file"`
	HashPassword   hashPasswordCmd   `cmd:"" name:"hash-password" help:"Hash an admin password for the security section"`
	ActionName     actionNameCmd     `cmd:"" name:"action-name" help:"Render an action mask"`
	Version        versionCmd        `cmd:"" help:"Show version information"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("dirmon"),
		kong.Description("Push-based directory change notifications."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run())
}
