/*
Package options contains a set of common CLI options and helper functions to use them.
*/
package options

import (
	"errors"
	"fmt"
	gio "io"
	"io/fs"
	"os"

	"github.com/nspcc-dev/jserial/pkg/config"
	"github.com/nspcc-dev/jserial/pkg/io"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ConfigFile is a flag for commands that use the tool configuration.
var ConfigFile = cli.StringFlag{
	Name:  "config-file, c",
	Usage: "path to the configuration file (" + config.DefaultConfigPath + " is used if present)",
}

// Debug is a flag for commands that allow debug mode usage.
var Debug = cli.BoolFlag{
	Name:  "debug, d",
	Usage: "enable debug logging (LOTS of output, overrides configuration)",
}

// LogComponents is a flag limiting informational log output to the given
// components.
var LogComponents = cli.StringSliceFlag{
	Name:  "log-components",
	Usage: "only log entries of these components below warning level (rewriter, hooks, bridge, classpath)",
}

// Input and Output are flags for commands processing a single file.
var (
	Input = cli.StringFlag{
		Name:  "in, i",
		Usage: "input file (stdin if not set)",
	}
	Output = cli.StringFlag{
		Name:  "out, o",
		Usage: "output file (stdout if not set)",
	}
)

// GetConfigFromContext loads the configuration file given with ConfigFile
// flag. Without the flag the default path is tried and defaults are used if
// there is no file there.
func GetConfigFromContext(ctx *cli.Context) (config.Config, error) {
	if configFile := ctx.String("config-file"); len(configFile) != 0 {
		return config.LoadFile(configFile)
	}
	cfg, err := config.LoadFile(config.DefaultConfigPath)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

// StdinKey is an App.Metadata key of an io.Reader replacing stdin for
// ReadInput.
const StdinKey = "stdin"

// ReadInput reads the file given with Input flag or stdin.
func ReadInput(ctx *cli.Context) ([]byte, error) {
	if name := ctx.String("in"); name != "" {
		return os.ReadFile(name)
	}
	var r gio.Reader = os.Stdin
	if in, ok := ctx.App.Metadata[StdinKey].(gio.Reader); ok {
		r = in
	}
	return gio.ReadAll(r)
}

// WriteOutput writes data to the file given with Output flag or to the
// application writer.
func WriteOutput(ctx *cli.Context, data []byte) error {
	name := ctx.String("out")
	if name == "" {
		_, err := ctx.App.Writer.Write(data)
		return err
	}
	if err := io.MakeDirForFile(name, "output"); err != nil {
		return err
	}
	return os.WriteFile(name, data, 0o644)
}

// HandleLoggingParams reads logging parameters.
// If a user selected debug level -- function enables it.
// If logPath is configured -- function creates a dir for it and logs into a
// rotated file, the returned closer closes it.
func HandleLoggingParams(debug bool, cfg config.ApplicationConfiguration) (*zap.Logger, *zap.AtomicLevel, func() error, error) {
	var (
		level = zapcore.InfoLevel
		err   error
	)
	if len(cfg.LogLevel) > 0 {
		level, err = zapcore.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("log setting: %w", err)
		}
	}
	if debug {
		level = zapcore.DebugLevel
	}

	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cc.Encoding = "console"
	cc.Level = zap.NewAtomicLevelAt(level)
	cc.Sampling = nil

	if cfg.LogPath == "" {
		log, err := cc.Build()
		return log, &cc.Level, nil, err
	}
	if err := io.MakeDirForFile(cfg.LogPath, "logger"); err != nil {
		return nil, nil, nil, err
	}
	out := &lumberjack.Logger{
		Filename:   cfg.LogPath,
		MaxSize:    cfg.LogMaxSize,
		MaxBackups: cfg.LogMaxBackups,
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cc.EncoderConfig), zapcore.AddSync(out), cc.Level)
	return zap.New(core), &cc.Level, out.Close, nil
}
