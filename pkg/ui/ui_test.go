package ui

import (
	"bytes"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igarchive/pkg/checkpoint"
	"igarchive/pkg/models"
	"igarchive/pkg/scraper"
)

func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	var stdoutBuf, stderrBuf bytes.Buffer
	SetOutput(&stdoutBuf, &stderrBuf)
	SetNoColor(true)
	t.Cleanup(func() {
		SetOutput(nil, nil)
		SetQuietMode(false)
	})
	return &stdoutBuf, &stderrBuf
}

func TestPrintHelpers(t *testing.T) {
	stdoutBuf, stderrBuf := captureOutput(t)

	PrintInfo("Target", "natgeo")
	PrintSuccess("done")
	PrintWarning("slow down %d", 3)
	PrintError("failed: %v", errors.New("boom"))

	assert.Equal(t, "Target: natgeo\ndone\nslow down 3\n", stdoutBuf.String())
	assert.Equal(t, "failed: boom\n", stderrBuf.String())
}

func TestQuietModeKeepsErrors(t *testing.T) {
	stdoutBuf, stderrBuf := captureOutput(t)
	SetQuietMode(true)
	assert.True(t, IsQuietMode())

	PrintSuccess("hidden")
	NewProgress("natgeo", 50, 0, false).Start(nil)
	PrintError("visible")

	assert.Empty(t, stdoutBuf.String())
	assert.Equal(t, "visible\n", stderrBuf.String())
}

func TestProgressLines(t *testing.T) {
	stdoutBuf, _ := captureOutput(t)

	p := NewProgress("acct1", 2, 0, true)
	p.Start(nil)
	p.Batch(scraper.BatchReport{Batch: 1, Fetched: 2, Added: 2, ArchiveSize: 2, CumulativeCount: 2, NextCursor: models.Cursor("abc"), HasMore: true})
	p.Retry(1, errors.New("server error"), 1500*time.Millisecond)
	p.Batch(scraper.BatchReport{Batch: 2, Fetched: 1, Added: 1, ArchiveSize: 1234, CumulativeCount: 3})

	lines := strings.Split(strings.TrimRight(stdoutBuf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "→ Archiving @acct1 from the newest post", lines[0])
	assert.Equal(t, "Fetching next 2 posts. Current count: 0", lines[1])
	assert.Equal(t, "✓ batch 1: 2 fetched, 2 new • archive 2 • cursor abc", lines[2])
	assert.Equal(t, "Fetching next 2 posts. Current count: 2", lines[3])
	assert.Equal(t, "⚠ attempt 1 failed: server error. Retrying in 1s", lines[4])
	assert.Equal(t, "✓ batch 2: 1 fetched, 1 new • archive 1,234 • cursor <start>", lines[5])
}

func TestProgressComplete(t *testing.T) {
	tests := []struct {
		name   string
		result *scraper.Result
		want   []string
	}{
		{
			name: "done",
			result: &scraper.Result{
				Outcome: scraper.OutcomeDone, Batches: 3, Fetched: 5, Added: 5, ArchiveSize: 5,
				Checkpoint: &checkpoint.State{CumulativeCount: 5},
			},
			want: []string{"Archived @acct1: 5 new posts, 5 total", "3 batches, 5 fetched"},
		},
		{
			name: "batch limit",
			result: &scraper.Result{
				Outcome: scraper.OutcomeDone, Batches: 1, Fetched: 2, Added: 2, ArchiveSize: 2,
				Checkpoint: &checkpoint.State{AfterCursor: models.Cursor("c"), CumulativeCount: 2},
			},
			want: []string{"more posts remain"},
		},
		{
			name:   "retryable failure",
			result: &scraper.Result{Outcome: scraper.OutcomeFailed, Batches: 2, Retryable: true},
			want:   []string{"Stopped @acct1 after 2 batches", "run the same command again"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdoutBuf, _ := captureOutput(t)
			NewProgress("acct1", 2, 0, false).Complete(tt.result)
			for _, want := range tt.want {
				assert.Contains(t, stdoutBuf.String(), want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "2m5s", formatDuration(125*time.Second))
	assert.Equal(t, "1h1m", formatDuration(61*time.Minute))
}

func TestIndent(t *testing.T) {
	assert.Equal(t, "  a\n  b\n", Indent("a\nb\n", "  "))
}

func TestNotifyCommand(t *testing.T) {
	cmd := notifyCommand("linux", "title", "msg")
	require.NotNil(t, cmd)
	assert.Equal(t, []string{"notify-send", "title", "msg"}, cmd.Args)

	cmd = notifyCommand("darwin", "t", `say "hi"`)
	require.NotNil(t, cmd)
	assert.Equal(t, `display notification "say \"hi\"" with title "t"`, cmd.Args[2])

	assert.Nil(t, notifyCommand("plan9", "t", "m"))
}

func TestNotifyResult(t *testing.T) {
	var ran []*exec.Cmd
	n := &Notifier{goos: "linux", enabled: true, run: func(cmd *exec.Cmd) error {
		ran = append(ran, cmd)
		return errors.New("no display")
	}}

	n.NotifyResult(&scraper.Result{Target: "acct1", Outcome: scraper.OutcomeDone, Added: 2, ArchiveSize: 7})
	require.Len(t, ran, 1)
	assert.Equal(t, "igarchive: @acct1", ran[0].Args[1])
	assert.Equal(t, "Done. 2 new posts, 7 archived", ran[0].Args[2])

	n.enabled = false
	n.NotifyResult(&scraper.Result{Target: "acct1"})
	assert.Len(t, ran, 1)
}
