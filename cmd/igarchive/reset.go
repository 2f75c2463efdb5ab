package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"igarchive/pkg/instagram"
	"igarchive/pkg/ui"
)

type resetOptions struct {
	archive bool
	yes     bool
}

func newResetCmd(global *globalOptions) *cobra.Command {
	opts := &resetOptions{}

	cmd := &cobra.Command{
		Use:   "reset <username>",
		Short: "Forget a profile's checkpoint",
		Long: `Delete the saved checkpoint of a profile so that the next fetch starts from
the newest post. A copy of the checkpoint is kept next to it with a .backup
suffix.

With --archive the archived posts are deleted as well.`,
		Example: `  igarchive reset natgeo
  igarchive reset natgeo --archive --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(cmd, global, opts, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.archive, "archive", false, "also delete the archived posts")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "do not ask for confirmation")

	return cmd
}

func runReset(cmd *cobra.Command, global *globalOptions, opts *resetOptions, arg string) error {
	target := instagram.SanitizeUsername(arg)
	if target == "" {
		return usageError("invalid username %q", arg)
	}

	cfg, log, err := global.setup(nil)
	if err != nil {
		return err
	}
	st, err := openStores(cfg, log)
	if err != nil {
		return err
	}

	if !st.checkpoints.Exists(target) && !(opts.archive && st.archives.Exists(target)) {
		ui.PrintInfo("Nothing to reset", target)
		return nil
	}

	if opts.archive && !opts.yes {
		fmt.Fprintf(cmd.OutOrStdout(), "Delete the archive of @%s (%s)? (y/N): ", target, st.archives.Path(target))
		input, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	backup, err := st.checkpoints.Backup(target)
	if err != nil {
		return fatalError(err)
	}
	if err := st.checkpoints.Delete(target); err != nil {
		return fatalError(err)
	}
	if backup != "" {
		ui.PrintInfo("Checkpoint backed up to", backup)
	}

	if opts.archive {
		if err := st.archives.Delete(target); err != nil {
			return fatalError(err)
		}
		ui.PrintSuccess("Checkpoint and archive removed: " + target)
	} else {
		ui.PrintSuccess("Checkpoint removed: " + target)
	}

	log.WithField("target", target).InfoWithFields("Target reset", map[string]interface{}{
		"archive": opts.archive,
		"backup":  backup,
	})
	return nil
}
