package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"igarchive/pkg/models"
	"igarchive/pkg/scraper"
)

// Progress prints one line per batch of a scraper run
type Progress struct {
	mu        sync.Mutex
	target    string
	batchSize int
	count     int
	startTime time.Time
	debug     bool
}

// NewProgress creates a progress printer for target. count is the
// cumulative count of the checkpoint the run resumes from.
func NewProgress(target string, batchSize, count int, debug bool) *Progress {
	return &Progress{
		target:    target,
		batchSize: batchSize,
		count:     count,
		startTime: time.Now(),
		debug:     debug,
	}
}

// Start announces the run
func (p *Progress) Start(cursor *string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	from := "the newest post"
	if cursor != nil {
		from = "the saved checkpoint"
	}
	fmt.Fprintf(stdout(), "%s Archiving @%s from %s\n", Magenta("→"), Cyan(p.target), from)
	p.fetching()
}

// Batch reports a checkpointed batch and announces the next fetch
func (p *Progress) Batch(r scraper.BatchReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.count = r.CumulativeCount
	line := fmt.Sprintf("%s batch %d: %d fetched, %d new • archive %s",
		Green("✓"),
		r.Batch,
		r.Fetched,
		r.Added,
		humanize.Comma(int64(r.ArchiveSize)),
	)
	if p.debug {
		line += " • " + Dim("cursor "+truncate(models.CursorString(r.NextCursor), 24))
	}
	fmt.Fprintln(stdout(), line)

	if r.HasMore {
		p.fetching()
	}
}

// Retry reports a failed attempt that will be retried after delay
func (p *Progress) Retry(attempt int, err error, delay time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(stdout(), "%s attempt %d failed: %v. Retrying in %s\n",
		Yellow("⚠"),
		attempt,
		err,
		formatDuration(delay),
	)
}

// Complete prints the run summary
func (p *Progress) Complete(result *scraper.Result) {
	p.mu.Lock()
	defer p.mu.Unlock()

	w := stdout()
	if result.Outcome == scraper.OutcomeDone {
		fmt.Fprintf(w, "\n%s Archived @%s: %s new posts, %s total\n",
			Green("✓"),
			p.target,
			humanize.Comma(int64(result.Added)),
			humanize.Comma(int64(result.ArchiveSize)),
		)
	} else {
		fmt.Fprintf(w, "\n%s Stopped @%s after %d batches\n", Red("✗"), p.target, result.Batches)
	}

	fmt.Fprintf(w, "  %s %d batches, %s fetched in %s\n",
		Dim("•"),
		result.Batches,
		humanize.Comma(int64(result.Fetched)),
		formatDuration(time.Since(p.startTime)),
	)

	switch {
	case result.Outcome != scraper.OutcomeDone && result.Retryable:
		fmt.Fprintf(w, "  %s progress is saved; run the same command again to resume\n", Dim("•"))
	case result.Checkpoint != nil && result.Checkpoint.AfterCursor != nil:
		fmt.Fprintf(w, "  %s more posts remain; run again to continue\n", Dim("•"))
	}
}

// fetching prints the line of the original fetch loop
func (p *Progress) fetching() {
	fmt.Fprintf(stdout(), "Fetching next %d posts. Current count: %d\n", p.batchSize, p.count)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// Indent prefixes every line of s
func Indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n") + "\n"
}
