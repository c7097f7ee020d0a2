package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"bibr/config"
	"bibr/convert"
	"bibr/misc"
	"bibr/state"
)

// initializeAppContext loads configuration and sets up logging and debug
// report once command line is parsed.
func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error

	if cmd.NArg() == 0 {
		// help or version only
		return ctx, nil
	}

	env := state.EnvFromContext(ctx)

	configFile := cmd.String("config")
	if env.Cfg, err = config.LoadConfiguration(configFile); err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	if cmd.Bool("debug") {
		if env.Rpt, err = env.Cfg.Reporting.Prepare(); err != nil {
			return ctx, fmt.Errorf("unable to prepare debug reporter: %w", err)
		}
		// effective configuration goes into report next to the original file name
		if len(configFile) > 0 {
			if data, err := config.Dump(env.Cfg); err == nil {
				env.Rpt.StoreData(fmt.Sprintf("config/%s", filepath.Base(configFile)), data)
			}
		}
	}
	if env.Log, err = env.Cfg.Logging.Prepare(env.Rpt); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.RedirectStdLog()

	env.Log.Debug("Program started", zap.Strings("args", os.Args), zap.String("ver", misc.GetVersion()), zap.String("runtime", runtime.Version()), zap.String("hash", misc.GetGitHash()), zap.Stringer("run", env.RunID))

	if env.Rpt != nil {
		env.Log.Info("Creating debug report", zap.String("location", env.Rpt.Name()))
	}
	if len(configFile) == 0 && env.Log != nil {
		env.Log.Info("Using defaults (no configuration file)")
	}
	return ctx, nil
}

func destroyAppContext(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Debug("Program ended", zap.Duration("elapsed", env.Uptime()), zap.Strings("parsed args", cmd.Args().Slice()))
	}

	env.RestoreStdLog()

	// from here on errors go to stderr only
	if env.Rpt != nil {
		if er := env.Rpt.Close(); er != nil {
			err = multierr.Append(err, fmt.Errorf("unable to close debug report: %w", er))
		}
	}
	// drop empty crash log
	if env.Cfg != nil && len(env.Cfg.Logging.FileLogger.Destination) > 0 {
		debug.SetCrashOutput(nil, debug.CrashOptions{})
		fname := filepath.Join(filepath.Dir(env.Cfg.Logging.FileLogger.Destination), misc.GetAppName()+"-panic.log")
		if fi, er := os.Stat(fname); er == nil && fi.Size() == 0 {
			if er := os.Remove(fname); er != nil {
				err = multierr.Append(err, fmt.Errorf("unable to remove empty panic log file '%s': %w", fname, er))
			}
		}
	}
	return
}

// Commands return plain errors, cli.Exit is not used. errWasHandled is set
// once the error made it into the log.
var errWasHandled bool

// exitErrHandler runs before destroyAppContext, while log is still open.
func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {

	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Error("Program ended with error", zap.Error(err))
		errWasHandled = true
	}
}

func usageErrorHandler(_ context.Context, _ *cli.Command, err error, _ bool) error {
	// reported by exitErrHandler or in main
	return err
}

func subcommandNotFoundHandler(ctx context.Context, _ *cli.Command, name string) {
	state.EnvFromContext(ctx).Log.Warn("Unknown command, nothing to do", zap.String("command", name))
}

func main() {

	// interrupt cancels fetches in flight
	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "renders bibliography records (BibJSON) into HTML",
		Version:         misc.GetVersion() + " (" + runtime.Version() + ") : " + misc.GetGitHash(),
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		OnUsageError:    usageErrorHandler,
		ExitErrHandler:  exitErrHandler,
		CommandNotFound: subcommandNotFoundHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, DefaultText: "", Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "changes program behavior to help troubleshooting, produces report archive"},
		},
		Commands: []*cli.Command{
			{
				Name:         "render",
				Usage:        "Renders bibliography records into HTML document",
				OnUsageError: usageErrorHandler,
				Action:       convert.Render,
				Flags: append(selectionFlags(),
					&cli.StringFlag{Name: "container-id", Usage: "render entries into container with `ID`, also prefix of entry identifiers"},
					&cli.BoolFlag{Name: "no-verify", Aliases: []string{"nv"}, Usage: "do not require BibTeX stanza for every record"},
					&cli.BoolFlag{Name: "embed-bibtex", Usage: "put BibTeX stanza of every record into the document"},
					&cli.BoolFlag{Name: "overwrite", Aliases: []string{"ow"}, Usage: "continue even if destination exists, overwrite files"},
				),
				ArgsUsage: "SOURCE [DESTINATION]",
				CustomHelpTemplate: fmt.Sprintf(`%s
SOURCE:
    BibJSON (CSL-JSON) records, following locations are supported:
        path to a file: "[path_to_file]records.json"
        path inside archive: "[path_to_archive]archive.zip/records.json"
        URL: "https://host/path/records.json"
    if absent - "sources.bibjson" from configuration

DESTINATION:
    always a directory, output file name is derived from source name or
    "render.output_name_template" configuration value
    if absent - current working directory
`, cli.CommandHelpTemplate),
			},
			{
				Name:         "lookup",
				Usage:        "Prints BibTeX stanzas for record identifiers",
				OnUsageError: usageErrorHandler,
				Action:       convert.Lookup,
				Flags: []cli.Flag{
					bibtexFlag(),
					bibtexCharsetFlag(),
				},
				ArgsUsage: "ID [ID...]",
			},
			{
				Name:         "list",
				Usage:        "Prints table of bibliography records",
				OnUsageError: usageErrorHandler,
				Action:       convert.List,
				Flags:        selectionFlags(),
				ArgsUsage:    "SOURCE",
			},
			{
				Name:  "dumpconfig",
				Usage: "Dumps either default or actual configuration (YAML)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
				},
				OnUsageError: usageErrorHandler,
				Action:       outputConfiguration,
				ArgsUsage:    "DESTINATION",
				CustomHelpTemplate: fmt.Sprintf(`%s

DESTINATION:
    file name to write configuration to, if absent - STDOUT

Produces file with actual "active" configuration values wich is composition of
default values and values specified in configuration file. To see default
configuration embedded into the program use --default flag.
`, cli.CommandHelpTemplate),
			},
		},
	}

	var err error
	// os.Exit below skips deferred calls, keep this the only one
	defer func() {
		stop()
		if err != nil {
			// argument errors happen before log exists
			if !errWasHandled {
				fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			}
			os.Exit(1)
		}
	}()
	err = app.Run(ctx, os.Args)
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) error {

	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	fname := cmd.Args().Get(0)

	var (
		err   error
		data  []byte
		state string
	)

	out := os.Stdout
	if len(fname) > 0 {
		out, err = os.Create(fname)
		if err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer out.Close()

	}

	if cmd.Bool("default") {
		state = "default"
		data, err = config.Prepare()
	} else {
		state = "actual"
		data, err = config.Dump(env.Cfg)
	}
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	if len(fname) == 0 {
		fname = "STDOUT"
	}
	env.Log.Info("Outputing configuration", zap.String("state", state), zap.String("file", fname))

	_, err = out.Write(data)
	if err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}

func bibtexFlag() cli.Flag {
	return &cli.StringFlag{Name: "bibtex", Aliases: []string{"b"}, Usage: "BibTeX source `LOCATION` (file, path inside archive or URL)"}
}

func bibtexCharsetFlag() cli.Flag {
	return &cli.StringFlag{Name: "bibtex-charset",
		Usage: "force `ENCODING` of BibTeX source instead of detecting it (see IANA.org for character set names)"}
}

// selectionFlags are shared by commands which load records.
func selectionFlags() []cli.Flag {
	return []cli.Flag{
		bibtexFlag(),
		bibtexCharsetFlag(),
		&cli.StringFlag{Name: "filter", Aliases: []string{"f"}, Usage: "show only records matching all words of `QUERY`"},
		&cli.StringSliceFlag{Name: "type", Aliases: []string{"t"}, Usage: "show only records of `TYPE` (may be repeated)"},
		&cli.StringFlag{Name: "sort", Aliases: []string{"s"},
			Usage: "order records by `KEY` (supported keys: " + strings.Join(config.SortKeyNames(), ", ") + ")"},
		&cli.BoolFlag{Name: "reverse", Aliases: []string{"r"}, Usage: "reverse order of records"},
	}
}
