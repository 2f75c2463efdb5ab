package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"igarchive/pkg/auth"
	"igarchive/pkg/config"
	errs "igarchive/pkg/errors"
	"igarchive/pkg/instagram"
	"igarchive/pkg/logger"
	"igarchive/pkg/ratelimit"
	"igarchive/pkg/scraper"
	"igarchive/pkg/ui"
)

type fetchOptions struct {
	batchSize  int
	maxBatches int
	rateLimit  int
	maxRetries int
	token      string
	docID      string
	idField    string
	account    string
	noKeyring  bool
	notify     bool
}

func newFetchCmd(global *globalOptions) *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch <username>",
		Short: "Fetch a profile's posts into the local archive",
		Long: `Fetch a profile's timeline page by page, starting from its saved checkpoint.

Every page is merged into the archive (posts already present are skipped) and
the archive is written before the checkpoint advances. Interrupting the run
with Ctrl-C loses at most the page in flight.

Credentials are taken, in order, from:
  - the --token flag or the configuration file
  - the account named with --account
  - IGARCHIVE_TOKEN / IGARCHIVE_SESSION_ID environment variables
  - the first account stored with 'igarchive auth login'`,
		Example: `  # Archive a profile 50 posts at a time
  igarchive fetch natgeo

  # Fetch at most 3 pages of 12 and stop; the next run continues from there
  igarchive fetch natgeo --batch-size 12 --max-batches 3

  # Use a stored account and slow down requests
  igarchive fetch https://www.instagram.com/natgeo/ --account work --rate-limit 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, global, opts, args[0])
		},
	}

	cmd.Flags().IntVarP(&opts.batchSize, "batch-size", "n", 0, "posts requested per page (default from config, 50)")
	cmd.Flags().IntVar(&opts.maxBatches, "max-batches", 0, "stop after this many pages, 0 for no limit")
	cmd.Flags().IntVar(&opts.rateLimit, "rate-limit", 0, "requests per minute, 0 disables pacing")
	cmd.Flags().IntVar(&opts.maxRetries, "max-retries", 0, "attempts per page before giving up")
	cmd.Flags().StringVar(&opts.token, "token", "", "bearer token for the GraphQL endpoint")
	cmd.Flags().StringVar(&opts.docID, "doc-id", "", "GraphQL document ID of the timeline query")
	cmd.Flags().StringVar(&opts.idField, "id-field", "", "record field used to detect duplicates")
	cmd.Flags().StringVarP(&opts.account, "account", "a", "", "use a specific stored account")
	cmd.Flags().BoolVar(&opts.noKeyring, "no-keyring", false, "do not read credentials from the system keyring")
	cmd.Flags().BoolVar(&opts.notify, "notify", false, "show a desktop notification when the run ends")

	return cmd
}

// flags returns only the flags set on the command line
func (o *fetchOptions) flags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	changed := cmd.Flags().Changed

	if changed("batch-size") {
		flags["batch-size"] = o.batchSize
	}
	if changed("max-batches") {
		flags["max-batches"] = o.maxBatches
	}
	if changed("rate-limit") {
		flags["rate-limit"] = o.rateLimit
	}
	if changed("max-retries") {
		flags["max-retries"] = o.maxRetries
	}
	if changed("token") {
		flags["token"] = o.token
	}
	if changed("doc-id") {
		flags["doc-id"] = o.docID
	}
	if changed("id-field") {
		flags["id-field"] = o.idField
	}
	return flags
}

func runFetch(cmd *cobra.Command, global *globalOptions, opts *fetchOptions, arg string) error {
	target := instagram.SanitizeUsername(arg)
	if !instagram.IsValidUsername(target) {
		return usageError("invalid username %q", arg)
	}

	cfg, log, err := global.setup(opts.flags(cmd))
	if err != nil {
		return err
	}
	log = log.WithField("target", target)

	cred, err := resolveCredential(cfg, opts)
	if err != nil {
		return err
	}

	client := instagram.NewClient(cfg.Instagram, cfg.Fetch.Timeout, log)
	client.SetLimiter(ratelimit.New(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize))
	if cred != nil {
		client.SetCredential(cred)
		log.WithField("account", cred.Name).Info("Using stored credentials")
	}
	if !client.HasCredential() {
		ui.PrintWarning("No credentials configured; only public data will be available. Run 'igarchive auth login' to add some.")
	}

	st, err := openStores(cfg, log)
	if err != nil {
		return err
	}

	// Progress only needs the resume point; a broken checkpoint is reported by the run itself
	var cursor *string
	count := 0
	if state, err := st.checkpoints.Load(target); err == nil {
		cursor, count = state.AfterCursor, state.CumulativeCount
	}

	runOpts := scraper.OptionsFromConfig(cfg.Fetch)
	progress := ui.NewProgress(target, runOpts.BatchSize, count, cfg.Logging.Level == "debug")

	s := scraper.New(client, st.checkpoints, st.archives, cfg.Retry, log)
	s.OnBatch(progress.Batch)
	s.OnRetry(progress.Retry)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.PrintInfo("Target Profile", target)
	progress.Start(cursor)

	result, err := s.Run(ctx, target, runOpts)
	if result != nil {
		progress.Complete(result)
	}
	ui.NewNotifier(opts.notify).NotifyResult(result)

	if errs.TypeOf(err) == errs.ErrorTypeAuth {
		fmt.Fprintln(cmd.ErrOrStderr(), "\nThe credentials were rejected. Refresh them with 'igarchive auth login':")
		auth.WriteQuickGuide(cmd.ErrOrStderr())
	}

	return runError(result, err)
}

// resolveCredential picks the credential for the run. A nil credential with a
// nil error means the configuration carries one or none is available.
func resolveCredential(cfg *config.Config, opts *fetchOptions) (*auth.Credential, error) {
	if opts.account == "" && cfg.HasCredentials() {
		return nil, nil
	}

	manager, err := auth.NewManager("", !opts.noKeyring)
	if err != nil {
		return nil, fatalError(err)
	}

	if opts.account != "" {
		cred, err := manager.Retrieve(opts.account)
		if err != nil {
			return nil, configError(errs.Wrap(errs.ErrorTypeConfig, err, "account %q is not stored; see 'igarchive auth list'", opts.account))
		}
		return cred, nil
	}

	cred, err := manager.RetrieveDefault()
	if errors.Is(err, auth.ErrCredentialsNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fatalError(err)
	}
	return cred, nil
}

// runError maps the outcome of a run to an exit code
func runError(result *scraper.Result, err error) error {
	if err == nil {
		return nil
	}

	code := exitFatal
	switch {
	case errs.IsConfiguration(err):
		code = exitUsage
	case result != nil && result.Retryable:
		code = exitRetryable
	case errors.Is(err, context.Canceled):
		code = exitRetryable
	}

	logger.GetLogger().WithError(err).WithField("exit_code", code).Debug("Fetch finished with error")
	return &exitError{code: code, err: err}
}
