// Command autosysmon samples host CPU, memory and disk usage into a rotating
// text log, raises threshold alerts and renders the history as charts and
// reports.
//
// Usage:
//
//	autosysmon [-config path] [-v] <command> [flags]
//
// Commands:
//
//	start     run the sampling daemon in the foreground
//	plot      write usage charts as PNG files
//	rotate    force rotation of the active segments
//	status    show daemon, host and storage status
//	report    print summary statistics and trends
//	alerts    list recent alerts
//	cleanup   remove old archived segments
//	watch     live dashboard
//	config    print or write the effective configuration
//	man       print the man page
//	version   print version information
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gitlab.com/tinyland/lab/autosysmon/config"
	"gitlab.com/tinyland/lab/autosysmon/docs/manpage"
	"gitlab.com/tinyland/lab/autosysmon/internal/color"
)

// Exit codes.
const (
	exitOK             = 0
	exitFailure        = 1
	exitUnknownCommand = 2
)

// errUsage marks bad command-line usage. The message has already been
// printed by the flag package or the command.
var errUsage = errors.New("usage")

// app carries the loaded configuration and outputs shared by every command.
type app struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	stdout     io.Writer
	stderr     io.Writer
	color      bool
}

// command is one CLI subcommand.
type command struct {
	name    string
	args    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

func commandTable() []command {
	return []command{
		{"start", "", "run the sampling daemon in the foreground", cmdStart},
		{"plot", "[-days N] [-out DIR]", "write usage charts as PNG files", cmdPlot},
		{"rotate", "", "force rotation of the active segments", cmdRotate},
		{"status", "", "show daemon, host and storage status", cmdStatus},
		{"report", "[-days N]", "print summary statistics and trends", cmdReport},
		{"alerts", "[-days N]", "list recent alerts", cmdAlerts},
		{"cleanup", "[-max-age-days N]", "remove old archived segments", cmdCleanup},
		{"watch", "", "live dashboard", cmdWatch},
		{"config", "[-write]", "print or write the effective configuration", cmdConfig},
		{"man", "", "print the man page in roff format", nil},
		{"version", "", "print version information", nil},
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses global flags, loads the configuration and dispatches to the
// named command. It returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("autosysmon", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (default: $XDG_CONFIG_HOME/autosysmon/config.yaml)")
	verbose := fs.Bool("v", false, "enable debug logging")
	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitFailure
	}

	rest := fs.Args()
	if len(rest) == 0 {
		printUsage(stderr, fs)
		return exitFailure
	}

	name := rest[0]
	if name == "help" {
		printUsage(stdout, fs)
		return exitOK
	}
	if name == "version" {
		printVersion(stdout)
		return exitOK
	}
	if name == "man" {
		fmt.Fprint(stdout, manPage())
		return exitOK
	}

	var cmd *command
	for _, c := range commandTable() {
		if c.name == name {
			cmd = &c
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "autosysmon: unknown command %q\n\n", name)
		printUsage(stderr, fs)
		return exitUnknownCommand
	}

	path := *configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(stderr, "autosysmon: %v\n", err)
		return exitFailure
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "autosysmon: config: %v\n", err)
		return exitFailure
	}

	logger, closer, err := buildLogger(cfg.Log, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "autosysmon: %v\n", err)
		return exitFailure
	}
	defer closer.Close()

	out, _ := stdout.(*os.File)
	a := &app{
		cfg:        cfg,
		configPath: path,
		logger:     logger,
		stdout:     stdout,
		stderr:     stderr,
		color:      color.Apply(cfg.Display.Color, out),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, a, rest[1:]); err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			return exitOK
		case errors.Is(err, errUsage):
			return exitFailure
		}
		fmt.Fprintf(stderr, "autosysmon: %v\n", err)
		return exitFailure
	}
	return exitOK
}

// newFlagSet returns a flag set for a subcommand writing errors to stderr.
func (a *app) newFlagSet(name, args string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "Usage: autosysmon %s %s\n", name, args)
		fs.PrintDefaults()
	}
	return fs
}

// parseFlags parses args and rejects positional arguments.
func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(fs.Output(), "unexpected argument %q\n", fs.Arg(0))
		fs.Usage()
		return errUsage
	}
	return nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	fmt.Fprintf(w, "autosysmon v%s: host resource monitor\n\n", version)
	fmt.Fprintln(w, "Usage: autosysmon [flags] <command> [command flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commandTable() {
		fmt.Fprintf(w, "  %-9s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fs.SetOutput(w)
	fs.PrintDefaults()
}

func manPage() string {
	var cmds []manpage.Command
	for _, c := range commandTable() {
		cmds = append(cmds, manpage.Command{Name: c.name, Args: c.args, Summary: c.summary})
	}
	return manpage.Generate(manpage.Page{Version: version, Commit: commit, Date: date, Commands: cmds})
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "autosysmon v%s (%s) built %s\n", version, commit, date)
}
