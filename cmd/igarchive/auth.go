package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igarchive/pkg/auth"
	"igarchive/pkg/ui"
)

type authOptions struct {
	noKeyring bool
	configDir string
}

func (o *authOptions) manager() (*auth.Manager, error) {
	manager, err := auth.NewManager(o.configDir, !o.noKeyring)
	if err != nil {
		return nil, fatalError(fmt.Errorf("failed to initialize credential manager: %w", err))
	}
	return manager, nil
}

func newAuthCmd(_ *globalOptions) *cobra.Command {
	opts := &authOptions{}

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage Instagram credentials",
		Long: `Manage stored Instagram credentials.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only)

Never share your credentials or config files!`,
	}

	cmd.PersistentFlags().BoolVar(&opts.noKeyring, "no-keyring", false, "do not use the system keyring")
	cmd.PersistentFlags().StringVar(&opts.configDir, "credentials-dir", "", "directory of the encrypted credentials file")

	cmd.AddCommand(newLoginCmd(opts))
	cmd.AddCommand(newLogoutCmd(opts))
	cmd.AddCommand(newListCmd(opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "guide",
		Short: "Explain how to copy credentials from a browser",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			auth.WriteExtractionGuide(cmd.OutOrStdout())
		},
	})

	return cmd
}

func newLoginCmd(opts *authOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login [name]",
		Short: "Store credentials securely",
		Long: `Store a bearer token or session cookies under a name.

You will be prompted for:
  - Bearer token (press Enter to use cookies instead)
  - sessionid and csrftoken cookie values
  - User Agent (optional, press Enter for default)

Secrets are not echoed. Run 'igarchive auth guide' to see where to find them.`,
		Example: `  # Interactive login, stored as "default"
  igarchive auth login

  # Store a second account
  igarchive auth login work`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := opts.manager()
			if err != nil {
				return err
			}

			name := "default"
			if len(args) > 0 {
				name = strings.TrimSpace(args[0])
			}

			p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			cred, err := promptCredential(p, name)
			if err != nil {
				return err
			}

			if existing, _ := manager.Retrieve(name); existing != nil {
				answer, _ := p.line(fmt.Sprintf("Account '%s' already exists. Update credentials? (y/N): ", name))
				if !strings.HasPrefix(strings.ToLower(answer), "y") {
					return nil
				}
			}

			if err := manager.Store(cred); err != nil {
				return fatalError(err)
			}

			ui.PrintSuccess("Credentials stored: " + name)
			fmt.Fprintf(cmd.OutOrStdout(), "\nUse them with:\n  igarchive fetch <username> --account %s\n", name)
			return nil
		},
	}
}

func newLogoutCmd(opts *authOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "logout [name]",
		Short: "Remove stored credentials",
		Example: `  igarchive auth logout work
  igarchive auth logout --all`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := opts.manager()
			if err != nil {
				return err
			}

			var names []string
			switch {
			case all:
				creds, err := manager.List()
				if err != nil {
					return fatalError(err)
				}
				for _, cred := range creds {
					names = append(names, cred.Name)
				}
			case len(args) == 1:
				names = []string{args[0]}
			default:
				return usageError("name an account or pass --all")
			}

			for _, name := range names {
				err := manager.Delete(name)
				switch {
				case err == nil:
					ui.PrintSuccess("Account removed: " + name)
				case errors.Is(err, auth.ErrCredentialsNotFound) && all:
					// environment credentials cannot be removed
				case errors.Is(err, auth.ErrCredentialsNotFound):
					return usageError("no stored account named %q", name)
				default:
					return fatalError(err)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "remove every stored account")
	return cmd
}

func newListCmd(opts *authOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored accounts",
		Long:  `List stored accounts with their secrets masked.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := opts.manager()
			if err != nil {
				return err
			}
			creds, err := manager.List()
			if err != nil {
				return fatalError(err)
			}
			return writeCredentials(cmd.OutOrStdout(), creds)
		},
	}
}

func writeCredentials(w io.Writer, creds []*auth.Credential) error {
	if len(creds) == 0 {
		fmt.Fprintln(w, "No stored accounts. Run 'igarchive auth login' to add one.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTOKEN\tSESSION\tCSRF\tUPDATED")
	for _, cred := range creds {
		masked := auth.Sanitize(cred)
		updated := "-"
		if !cred.LastModified.IsZero() {
			updated = humanize.Time(cred.LastModified)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			masked.Name,
			orDash(masked.Token),
			orDash(masked.SessionID),
			orDash(masked.CSRFToken),
			updated,
		)
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// promptCredential asks for a token, or for cookies when no token is given
func promptCredential(p *prompter, name string) (*auth.Credential, error) {
	cred := &auth.Credential{Name: name}

	token, err := p.secret("Bearer token (press Enter to use cookies): ")
	if err != nil {
		return nil, fatalError(fmt.Errorf("failed to read token: %w", err))
	}
	cred.Token = strings.TrimPrefix(token, "Bearer ")

	if cred.Token == "" {
		if cred.SessionID, err = p.secret("sessionid cookie value: "); err != nil {
			return nil, fatalError(fmt.Errorf("failed to read session ID: %w", err))
		}
		if cred.SessionID == "" {
			return nil, usageError("a token or a session ID is required")
		}
		if cred.CSRFToken, err = p.secret("csrftoken cookie value: "); err != nil {
			return nil, fatalError(fmt.Errorf("failed to read CSRF token: %w", err))
		}
	}

	cred.UserAgent, _ = p.line("User Agent (press Enter to use default): ")

	if err := cred.Validate(); err != nil {
		return nil, usageError("%v", err)
	}
	return cred, nil
}

// prompter reads answers from a terminal without echoing secrets, or line by
// line from any other reader.
type prompter struct {
	in       *bufio.Reader
	out      io.Writer
	fd       int
	terminal bool
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.terminal = true
	}
	return p
}

func (p *prompter) line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	input, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func (p *prompter) secret(prompt string) (string, error) {
	if !p.terminal {
		return p.line(prompt)
	}

	fmt.Fprint(p.out, prompt)
	raw, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}
