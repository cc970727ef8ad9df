// Package manpage generates a roff-formatted man page for autosysmon.
//
// The page is built at runtime from the CLI command table, the watch view's
// key bindings and the compiled-in version, so it cannot drift from the code.
//
// Usage:
//
//	autosysmon man | man -l -
//	autosysmon man > ~/.local/share/man/man1/autosysmon.1
package manpage

import (
	"fmt"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/autosysmon/tui"
)

// Command describes one subcommand for the COMMANDS section.
type Command struct {
	Name    string
	Args    string // e.g. "[-days N] [-out DIR]"
	Summary string
}

// Page holds the inputs of a generated man page.
type Page struct {
	Version  string
	Commit   string
	Date     string
	Commands []Command
	// Now dates the header. Default: time.Now.
	Now func() time.Time
}

// Generate produces a complete roff-formatted man(1) page.
func Generate(p Page) string {
	if p.Now == nil {
		p.Now = time.Now
	}
	var b strings.Builder

	fmt.Fprintf(&b, ".TH AUTOSYSMON 1 \"%s\" \"autosysmon %s\" \"User Commands\"\n",
		p.Now().Format("January 2006"), p.Version)
	b.WriteString(`.SH NAME
autosysmon \- host resource sampler with rotating logs, alerts and charts
.SH SYNOPSIS
.B autosysmon
[\fB\-config\fR \fIPATH\fR] [\fB\-v\fR]
.I command
[\fIflags\fR]
.SH DESCRIPTION
.B autosysmon
samples CPU, memory and disk usage at a fixed interval and appends one line
per sample to
.IR syslog.txt .
Samples above the alert thresholds are appended to
.IR alerts.txt .
Each file is rotated to a timestamped archive once it exceeds the size or age
limit, and archives are compressed with gzip. Reporting commands read the
active file and every archive in the requested window.
`)

	writeCommands(&b, p.Commands)
	writeKeybindings(&b)

	b.WriteString(`.SH FILES
.TP
.I $XDG_CONFIG_HOME/autosysmon/config.yaml
Configuration file.
.TP
.I $XDG_DATA_HOME/autosysmon/syslog.txt
Active metrics segment.
.TP
.I $XDG_DATA_HOME/autosysmon/alerts.txt
Active alerts segment.
.TP
.I $XDG_DATA_HOME/autosysmon/<stream>_backup_<YYYYMMDD_HHMMSS>.txt.gz
Archived segments.
.TP
.I $XDG_DATA_HOME/autosysmon/health.json
Daemon health, rewritten while the daemon runs.
.TP
.I $XDG_DATA_HOME/autosysmon/autosysmon.lock
Held by the running daemon; contains its PID.
.SH ENVIRONMENT
.TP
.B AUTOSYSMON_DATA_DIR
Overrides storage.dir.
.TP
.B AUTOSYSMON_LOG_LEVEL
Overrides log.level.
.TP
.B AUTOSYSMON_INTERVAL
Overrides sampler.interval. Bare numbers are seconds.
.TP
.B NO_COLOR
Disables colored output when set.
.SH EXIT STATUS
.TP
.B 0
Success.
.TP
.B 1
Failure, bad usage or invalid configuration.
.TP
.B 2
Unknown command.
`)

	fmt.Fprintf(&b, ".SH VERSION\n%s (commit %s, built %s)\n",
		roffEscape(p.Version), roffEscape(p.Commit), roffEscape(p.Date))
	return b.String()
}

// roffEscape escapes special roff characters in a string.
func roffEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `-`, `\-`)
	if strings.HasPrefix(s, ".") || strings.HasPrefix(s, "'") {
		s = `\&` + s
	}
	return s
}

func writeCommands(b *strings.Builder, cmds []Command) {
	b.WriteString(".SH COMMANDS\n")
	for _, c := range cmds {
		b.WriteString(".TP\n")
		if c.Args != "" {
			fmt.Fprintf(b, ".B %s\n.I %s\n.br\n", roffEscape(c.Name), roffEscape(c.Args))
		} else {
			fmt.Fprintf(b, ".B %s\n", roffEscape(c.Name))
		}
		b.WriteString(roffEscape(c.Summary) + "\n")
	}
}

func writeKeybindings(b *strings.Builder) {
	b.WriteString(".SH KEYBINDINGS\nKeys active in the \\fBwatch\\fR dashboard.\n")
	for _, k := range tui.Bindings() {
		fmt.Fprintf(b, ".TP\n.B %s\n%s\n", roffEscape(strings.Join(k.Keys(), ", ")), roffEscape(k.Help().Desc))
	}
}
