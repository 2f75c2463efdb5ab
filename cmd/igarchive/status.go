package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"igarchive/pkg/instagram"
	"igarchive/pkg/models"
	"igarchive/pkg/storage"
	"igarchive/pkg/ui"
)

func newStatusCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status [username]",
		Short: "Show saved progress",
		Long: `Show the checkpoint and archive size of one profile, or of every profile
with saved state when no username is given.`,
		Example: `  igarchive status
  igarchive status natgeo`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := global.setup(nil)
			if err != nil {
				return err
			}
			st, err := openStores(cfg, log)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				target := instagram.SanitizeUsername(args[0])
				if target == "" {
					return usageError("invalid username %q", args[0])
				}
				return showTarget(cmd.OutOrStdout(), st, target, time.Now())
			}
			return listTargets(cmd.OutOrStdout(), st, time.Now())
		},
	}
}

func showTarget(w io.Writer, st *stores, target string, now time.Time) error {
	state, err := st.checkpoints.Load(target)
	if err != nil {
		return fatalError(err)
	}
	records, err := st.archives.Load(target)
	if err != nil {
		return fatalError(err)
	}

	fmt.Fprintf(w, "%s  %s\n", ui.Bold("@"+target), ui.Dim(instagram.GetUserProfileURL(target)))

	switch {
	case state.IsInitial():
		fmt.Fprintf(w, "  Checkpoint:  none, the next fetch starts from the newest post\n")
	case state.AfterCursor == nil:
		fmt.Fprintf(w, "  Checkpoint:  complete, the next fetch looks for new posts\n")
	default:
		fmt.Fprintf(w, "  Checkpoint:  %s\n", models.CursorString(state.AfterCursor))
	}
	if !state.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "  Updated:     %s (%s)\n", humanize.RelTime(state.UpdatedAt, now, "ago", "from now"), state.UpdatedAt.Format(time.RFC3339))
	}
	fmt.Fprintf(w, "  Fetched:     %s posts over all runs\n", humanize.Comma(int64(state.CumulativeCount)))
	fmt.Fprintf(w, "  Archive:     %s posts\n", humanize.Comma(int64(len(records))))
	fmt.Fprintf(w, "  Files:       %s\n", ui.Dim(st.checkpoints.Path(target)))
	fmt.Fprintf(w, "               %s\n", ui.Dim(st.archives.Path(target)))

	return nil
}

func listTargets(w io.Writer, st *stores, now time.Time) error {
	targets, err := st.checkpoints.Targets()
	if err != nil {
		return fatalError(err)
	}
	archived, err := st.storage.Keys(storage.KindArchive)
	if err != nil {
		return fatalError(err)
	}
	targets = union(targets, archived)

	if len(targets) == 0 {
		fmt.Fprintf(w, "No saved state in %s\n", st.storage.BaseDir())
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tARCHIVED\tFETCHED\tSTATE\tUPDATED")
	for _, target := range targets {
		state, err := st.checkpoints.Load(target)
		if err != nil {
			fmt.Fprintf(tw, "%s\t-\t-\tunreadable\t-\n", target)
			continue
		}
		size := "-"
		if records, err := st.archives.Load(target); err == nil {
			size = humanize.Comma(int64(len(records)))
		}

		status := "in progress"
		if state.AfterCursor == nil {
			status = "complete"
		}
		updated := "-"
		if !state.UpdatedAt.IsZero() {
			updated = humanize.RelTime(state.UpdatedAt, now, "ago", "from now")
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", target, size, humanize.Comma(int64(state.CumulativeCount)), status, updated)
	}
	return tw.Flush()
}

func union(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
