package app

import (
	"fmt"
	"os"
	"runtime"

	"github.com/nspcc-dev/jserial/cli/codec"
	"github.com/nspcc-dev/jserial/cli/server"
	"github.com/nspcc-dev/jserial/cli/shell"
	"github.com/nspcc-dev/jserial/pkg/config"
	"github.com/urfave/cli"
)

func versionPrinter(c *cli.Context) {
	_, _ = fmt.Fprintf(c.App.Writer, "jserial\nVersion: %s\nGoVersion: %s\n",
		config.Version,
		runtime.Version(),
	)
}

// New creates a jserial instance of [cli.App] with all commands included.
func New() *cli.App {
	cli.VersionPrinter = versionPrinter
	ctl := cli.NewApp()
	ctl.Name = "jserial"
	ctl.Version = config.Version
	ctl.Usage = "Java object serialization editing codec and message rewriter"
	ctl.ErrWriter = os.Stdout

	ctl.Commands = append(ctl.Commands, codec.NewCommands()...)
	ctl.Commands = append(ctl.Commands, server.NewCommands()...)
	ctl.Commands = append(ctl.Commands, shell.NewCommands()...)
	return ctl
}
