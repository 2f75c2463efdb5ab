package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

// Logo is printed by the root command when output is a terminal
const Logo = `
   _                        _     _
  (_) __ _  __ _ _ __ ___| |__ (_)_   _____
  | |/ _` + "`" + ` |/ _` + "`" + ` | '__/ __| '_ \| \ \ / / _ \
  | | (_| | (_| | | | (__| | | | |\ V /  __/
  |_|\__, |\__,_|_|  \___|_| |_|_| \_/ \___|
     |___/      resumable timeline archiver
`

// Color functions for terminal output
var (
	Cyan    = sprint(color.FgCyan)
	Yellow  = sprint(color.FgYellow)
	Red     = sprint(color.FgRed)
	Green   = sprint(color.FgGreen)
	Magenta = sprint(color.FgMagenta)
	Dim     = sprint(color.Faint)
	Bold    = sprint(color.Bold)
)

func sprint(attr color.Attribute) func(string) string {
	c := color.New(attr)
	return func(text string) string {
		return c.Sprint(text)
	}
}

var (
	mu     sync.RWMutex
	out    io.Writer = os.Stdout
	errOut io.Writer = os.Stderr
	quiet  bool
)

// SetOutput redirects regular and error output. nil restores the defaults.
func SetOutput(stdout, stderr io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	out, errOut = stdout, stderr
}

// SetQuietMode suppresses everything but errors
func SetQuietMode(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// IsQuietMode reports whether quiet mode is on
func IsQuietMode() bool {
	mu.RLock()
	defer mu.RUnlock()
	return quiet
}

// SetNoColor disables or re-enables ANSI colors
func SetNoColor(noColor bool) {
	color.NoColor = noColor
}

func stdout() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	if quiet {
		return io.Discard
	}
	return out
}

func stderr() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	return errOut
}

// PrintLogo prints the logo in cyan
func PrintLogo() {
	fmt.Fprint(stdout(), Cyan(Logo))
}

// PrintError prints an error message in red to stderr, even in quiet mode
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	fmt.Fprintln(stderr(), Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	fmt.Fprintln(stdout(), Green(msg))
}

// PrintInfo prints a label and value
func PrintInfo(label string, value string) {
	fmt.Fprintf(stdout(), "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	fmt.Fprintln(stdout(), Yellow(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	fmt.Fprintln(stdout(), Magenta(msg))
}
