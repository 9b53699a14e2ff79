package shell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/davecgh/go-spew/spew"
	"github.com/kballard/go-shellquote"
	"github.com/nspcc-dev/jserial/cli/options"
	"github.com/nspcc-dev/jserial/pkg/classpath"
	"github.com/nspcc-dev/jserial/pkg/config"
	"github.com/nspcc-dev/jserial/pkg/editdoc"
	"github.com/nspcc-dev/jserial/pkg/httpmsg"
	"github.com/nspcc-dev/jserial/pkg/objstream"
	"github.com/nspcc-dev/jserial/pkg/rewriter"
	"github.com/urfave/cli"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	stateKey            = "state"
	readlineInstanceKey = "readlineKey"
)

var commands = []cli.Command{
	{
		Name:        "exit",
		Usage:       "Exit the shell",
		Description: "Exit the shell",
		Action:      handleExit,
	},
	{
		Name:      "load",
		Usage:     "Load a serialized stream",
		UsageText: `load <file>`,
		Description: `load <file>
<file> holds a stream, possibly preceded by other bytes (an HTTP message
for example), the first stream magic found starts the stream.`,
		Action: handleLoad,
	},
	{
		Name:      "message",
		Usage:     "Pass an HTTP message through the intercepting hook",
		UsageText: `message [--response] <file>`,
		Description: `message [--response] <file>
Converts the message the way the bridge does for intercepted messages and
loads the stream of its body. The resulting head is printed.`,
		Flags: []cli.Flag{
			cli.BoolFlag{Name: "response, r", Usage: "the message is a response"},
		},
		Action: handleMessage,
	},
	{
		Name:      "edit",
		Usage:     "Replace the loaded stream with an edited document",
		UsageText: `edit <file>`,
		Action:    handleEdit,
	},
	{
		Name:        "show",
		Usage:       "Show the document of the loaded stream",
		Description: "Show the document of the loaded stream",
		Action:      handleShow,
	},
	{
		Name:        "dump",
		Usage:       "Dump the decoded graph of the loaded stream",
		Description: "Dump the decoded graph of the loaded stream",
		Action:      handleDump,
	},
	{
		Name:        "classes",
		Usage:       "List classes of the loaded stream and their archives",
		Description: "List classes of the loaded stream and their archives",
		Action:      handleClasses,
	},
	{
		Name:      "save",
		Usage:     "Save the loaded stream",
		UsageText: `save [--doc] <file>`,
		Flags: []cli.Flag{
			cli.BoolFlag{Name: "doc", Usage: "save the document instead of the stream"},
		},
		Action: handleSave,
	},
	{
		Name:        "reload",
		Usage:       "Re-index class path archives",
		Description: "Re-index class path archives",
		Action:      handleReload,
	},
	{
		Name:      "level",
		Usage:     "Show or change the log level",
		UsageText: `level [<level>]`,
		Action:    handleLevel,
	},
}

var completer *readline.PrefixCompleter

func init() {
	var pcItems []readline.PrefixCompleterInterface
	for _, c := range commands {
		if !c.Hidden {
			var flagsItems []readline.PrefixCompleterInterface
			for _, f := range c.Flags {
				names := strings.SplitN(f.GetName(), ", ", 2) // only long name will be offered
				flagsItems = append(flagsItems, readline.PcItem("--"+names[0]))
			}
			pcItems = append(pcItems, readline.PcItem(c.Name, flagsItems...))
		}
	}
	completer = readline.NewPrefixCompleter(pcItems...)
}

// Various errors.
var (
	ErrMissingParameter = errors.New("missing argument")
	ErrNoStream         = errors.New("no stream loaded")
	errExit             = errors.New("exit")
)

// dumper prints graphs without addresses, so dumps are comparable.
var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// state is the shell session.
type state struct {
	log      *zap.Logger
	level    *zap.AtomicLevel
	registry *classpath.Registry
	rw       *rewriter.Rewriter
	stream   *objstream.Stream
}

// Shell is an interactive stream inspection session.
type Shell struct {
	shell *cli.App
}

// NewWithConfig returns a new Shell instance using the provided readline and
// tool configurations. log and level can be nil.
func NewWithConfig(c *readline.Config, cfg config.Config, log *zap.Logger, level *zap.AtomicLevel) (*Shell, error) {
	if c.AutoComplete == nil {
		// Autocomplete commands/flags on TAB.
		c.AutoComplete = completer
	}
	if log == nil {
		log = zap.NewNop()
	}
	l, err := readline.NewEx(c)
	if err != nil {
		return nil, fmt.Errorf("failed to create readline instance: %w", err)
	}
	ctl := cli.NewApp()
	ctl.Name = "jserial shell"

	// Note: need to set empty `ctl.HelpName` and `ctl.UsageText`, otherwise
	// `filepath.Base(os.Args[0])` will be used.
	ctl.HelpName = ""
	ctl.UsageText = ""

	ctl.Writer = l.Stdout()
	ctl.ErrWriter = l.Stderr()
	ctl.Version = config.Version
	ctl.Usage = "Serialized stream inspection shell"

	// Override default error handler in order not to exit on error.
	ctl.ExitErrHandler = func(context *cli.Context, err error) {}

	ctl.Commands = commands

	registry := classpath.New(cfg.Application.ClassPath, log.Named("classpath"))
	if err := registry.Load(); err != nil {
		writeErr(ctl.ErrWriter, fmt.Errorf("class path is not available: %w", err))
	}
	rw, err := rewriter.New(cfg.Rewriter, log.Named("rewriter"), registry)
	if err != nil {
		_ = l.Close()
		return nil, err
	}
	ctl.Metadata = map[string]any{
		stateKey: &state{
			log:      log,
			level:    level,
			registry: registry,
			rw:       rw,
		},
		readlineInstanceKey: l,
	}
	return &Shell{shell: ctl}, nil
}

func getState(app *cli.App) *state {
	return app.Metadata[stateKey].(*state)
}

func getReadlineInstanceFromContext(app *cli.App) *readline.Instance {
	return app.Metadata[readlineInstanceKey].(*readline.Instance)
}

// loadedStream returns the current stream or writes an error.
func loadedStream(app *cli.App) *objstream.Stream {
	s := getState(app).stream
	if s == nil {
		writeErr(app.ErrWriter, ErrNoStream)
	}
	return s
}

func handleExit(c *cli.Context) error {
	fmt.Fprintln(c.App.Writer, "Bye!")
	return errExit
}

// decodeStream decodes the first stream found in data.
func decodeStream(data []byte) (*objstream.Stream, error) {
	off, err := objstream.Scan(data)
	if err != nil {
		return nil, err
	}
	s, err := objstream.Decode(data[off:])
	if err != nil {
		return nil, err
	}
	if off > 0 {
		s.Preamble = append([]byte(nil), data[:off]...)
	}
	return s, nil
}

func setStream(c *cli.Context, s *objstream.Stream) {
	getState(c.App).stream = s
	fmt.Fprintf(c.App.Writer, "READY: %d content(s), %d preamble byte(s)\n", len(s.Contents), len(s.Preamble))
}

func fileArg(c *cli.Context) ([]byte, error) {
	if c.NArg() == 0 {
		return nil, ErrMissingParameter
	}
	return os.ReadFile(c.Args().First())
}

func handleLoad(c *cli.Context) error {
	data, err := fileArg(c)
	if err != nil {
		return err
	}
	s, err := decodeStream(data)
	if err != nil {
		return err
	}
	setStream(c, s)
	return nil
}

func handleMessage(c *cli.Context) error {
	data, err := fileArg(c)
	if err != nil {
		return err
	}
	st := getState(c.App)
	res, err := st.rw.ToEditable(data, !c.Bool("response"))
	if err != nil {
		return err
	}
	m, err := httpmsg.Parse(res)
	if err != nil {
		return err
	}
	if !m.Has(st.rw.Marker()) {
		return errors.New("message doesn't qualify for decoding")
	}
	for _, l := range m.Head {
		fmt.Fprintln(c.App.Writer, l)
	}
	s, err := editdoc.Parse(m.Body)
	if err != nil {
		return err
	}
	setStream(c, s)
	return nil
}

func handleEdit(c *cli.Context) error {
	data, err := fileArg(c)
	if err != nil {
		return err
	}
	s, err := editdoc.Parse(data)
	if err != nil {
		return err
	}
	if _, err := objstream.Encode(s); err != nil {
		return fmt.Errorf("document can't be encoded: %w", err)
	}
	setStream(c, s)
	return nil
}

func handleShow(c *cli.Context) error {
	s := loadedStream(c.App)
	if s == nil {
		return nil
	}
	doc, err := editdoc.Render(s)
	if err != nil {
		return err
	}
	_, err = c.App.Writer.Write(doc)
	return err
}

func handleDump(c *cli.Context) error {
	s := loadedStream(c.App)
	if s == nil {
		return nil
	}
	dumper.Fdump(c.App.Writer, s)
	return nil
}

func handleClasses(c *cli.Context) error {
	s := loadedStream(c.App)
	if s == nil {
		return nil
	}
	reg := getState(c.App).registry
	for _, name := range objstream.ClassNames(s) {
		var where string
		switch archive, ok := reg.Lookup(name); {
		case classpath.IsPlatform(name):
			where = "platform"
		case ok:
			where = archive
		default:
			where = "missing"
		}
		fmt.Fprintf(c.App.Writer, "%s (%s)\n", name, where)
	}
	return nil
}

func handleSave(c *cli.Context) error {
	if c.NArg() == 0 {
		return ErrMissingParameter
	}
	s := loadedStream(c.App)
	if s == nil {
		return nil
	}
	var (
		data []byte
		err  error
	)
	if c.Bool("doc") {
		data, err = editdoc.Render(s)
	} else {
		data, err = objstream.Encode(s)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(c.Args().First(), data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%d byte(s) written\n", len(data))
	return nil
}

func handleReload(c *cli.Context) error {
	reg := getState(c.App).registry
	if err := reg.Load(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%d class(es) in %d archive(s)\n", reg.Len(), reg.Archives())
	return nil
}

func handleLevel(c *cli.Context) error {
	lvl := getState(c.App).level
	if lvl == nil {
		return errors.New("log level can't be changed")
	}
	if c.NArg() != 0 {
		l, err := zapcore.ParseLevel(c.Args().First())
		if err != nil {
			return err
		}
		lvl.SetLevel(l)
	}
	fmt.Fprintln(c.App.Writer, lvl.Level())
	return nil
}

// Run waits for user input from Stdin and executes the passed command.
func (c *Shell) Run() error {
	l := getReadlineInstanceFromContext(c.shell)
	defer func() {
		_ = l.Close()
		_ = getState(c.shell).registry.Close()
	}()
	for {
		line, err := l.Readline()
		if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
			return nil // OK, stop execution.
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err) // Critical error, stop execution.
		}

		args, err := shellquote.Split(line)
		if err != nil {
			writeErr(c.shell.ErrWriter, fmt.Errorf("failed to parse arguments: %w", err))
			continue // Not a critical error, continue execution.
		}
		if len(args) == 0 {
			continue
		}

		err = c.shell.Run(append([]string{"shell"}, args...))
		if errors.Is(err, errExit) {
			return nil
		}
		if err != nil {
			writeErr(c.shell.ErrWriter, err) // Various command/flags parsing errors and execution errors.
		}
	}
}

func writeErr(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %s\n", err)
}

// NewCommands returns 'shell' command.
func NewCommands() []cli.Command {
	return []cli.Command{
		{
			Name:   "shell",
			Usage:  "Start an interactive stream inspection shell",
			Action: startShell,
			Flags:  []cli.Flag{options.ConfigFile, options.Debug},
		},
	}
}

func startShell(ctx *cli.Context) error {
	cfg, err := options.GetConfigFromContext(ctx)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	log, level, logCloser, err := options.HandleLoggingParams(ctx.Bool("debug"), cfg.Application)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if logCloser != nil {
		defer func() { _ = logCloser() }()
	}
	sh, err := NewWithConfig(&readline.Config{
		Prompt: "\033[32mjserial>\033[0m ", // green prompt ^^
	}, cfg, log, level)
	if err != nil {
		return cli.NewExitError(err, 1)
	}
	if err := sh.Run(); err != nil {
		return cli.NewExitError(err, 1)
	}
	return nil
}
