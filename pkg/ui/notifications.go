package ui

import (
	"fmt"
	"os/exec"
	"runtime"

	"igarchive/pkg/scraper"
)

// Notifier sends a desktop notification when a run ends
type Notifier struct {
	goos    string
	enabled bool
	run     func(*exec.Cmd) error
}

// NewNotifier creates a notifier for the current platform
func NewNotifier(enabled bool) *Notifier {
	return &Notifier{
		goos:    runtime.GOOS,
		enabled: enabled,
		run:     func(cmd *exec.Cmd) error { return cmd.Run() },
	}
}

// NotifyResult reports the outcome of a run. Failures to notify are ignored.
func (n *Notifier) NotifyResult(result *scraper.Result) {
	if !n.enabled || result == nil {
		return
	}

	title := "igarchive: @" + result.Target
	var message string
	switch {
	case result.Outcome == scraper.OutcomeDone:
		message = fmt.Sprintf("Done. %d new posts, %d archived", result.Added, result.ArchiveSize)
	case result.Retryable:
		message = "Interrupted. Run again to resume"
	default:
		message = "Failed. See the log for details"
	}

	if cmd := notifyCommand(n.goos, title, message); cmd != nil {
		_ = n.run(cmd)
	}
}

// notifyCommand builds the platform notification command, nil when unsupported
func notifyCommand(goos, title, message string) *exec.Cmd {
	switch goos {
	case "linux", "freebsd", "openbsd":
		return exec.Command("notify-send", title, message)
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", message, title)
		return exec.Command("osascript", "-e", script)
	default:
		return nil
	}
}
