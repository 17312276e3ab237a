package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/finsync/engine/internal/api/types"
	"github.com/finsync/engine/internal/client/api"
	"github.com/finsync/engine/internal/client/session"
	"github.com/finsync/engine/internal/models"
	"github.com/finsync/engine/pkg/logger"
	"github.com/finsync/engine/pkg/utils"
)

type app struct {
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer

	// readPassword is swapped in tests to avoid touching the terminal.
	readPassword func() (string, error)
	initLogger   func() error

	server    string
	statePath string

	client  *api.Client
	session *session.Manager
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	a := &app{in: bufio.NewReader(in), out: out, errOut: errOut}
	a.readPassword = a.terminalPassword
	a.initLogger = func() error {
		_, err := logger.InitWriter("warn", "console", a.errOut)
		return err
	}
	return a
}

func defaultStatePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "finsync", "session.json")
}

func (a *app) root() *cobra.Command {
	server := os.Getenv("FINSYNC_SERVER")
	if server == "" {
		server = "http://localhost:5000"
	}

	root := &cobra.Command{
		Use:           "finsync",
		Short:         "FinSync command-line client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.initLogger(); err != nil {
				return err
			}
			a.client = api.New(a.server, nil)
			a.session = session.NewManager(a.client, session.NewFileStore(a.statePath))
			if err := a.session.Start(cmd.Context()); err != nil {
				fmt.Fprintf(a.errOut, "warning: could not restore session: %v\n", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.server, "server", server, "API base URL")
	root.PersistentFlags().StringVar(&a.statePath, "state", defaultStatePath(), "session state file")

	root.AddCommand(a.registerCmd(), a.loginCmd(), a.logoutCmd(), a.whoamiCmd(),
		a.invoicesCmd(), a.statsCmd(), a.cacheCmd())
	return root
}

// execute runs args through the command tree and reports errors on errOut.
func (a *app) execute(ctx context.Context, args []string) error {
	cmd := a.root()
	cmd.SetArgs(args)
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(a.errOut, "error:", err)
	}
	return err
}

func (a *app) terminalPassword() (string, error) {
	fmt.Fprint(a.out, "Password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(a.out)
		return string(pw), err
	}
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) registerCmd() *cobra.Command {
	var req types.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := a.readPassword()
			if err != nil {
				return err
			}
			req.Password = pw
			u, err := a.session.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Registered and signed in as %s (%s)\n", u.Name, u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Company, "company", "", "company name")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "phone number")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := a.readPassword()
			if err != nil {
				return err
			}
			u, err := a.session.Login(cmd.Context(), email, pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Signed in as %s (%s)\n", u.Name, u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out; cached data is kept for your next sign-in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Signed out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.requireUser()
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s <%s> id=%s company=%s\n", u.Name, u.Email, u.ID, models.Deref(u.Company))
			return nil
		},
	}
}

func (a *app) invoicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invoices",
		Short: "List your invoices, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.requireUser()
			if err != nil {
				return err
			}
			list, err := a.client.Invoices(cmd.Context(), u.ID, a.session.Token())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NUMBER\tGSTIN\tAMOUNT\tTAX\tSTATUS")
			for _, inv := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", inv.InvoiceNumber,
					models.Deref(inv.Gstin), models.Deref(inv.Amount), models.Deref(inv.TaxAmount), inv.Status)
			}
			return tw.Flush()
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.requireUser()
			if err != nil {
				return err
			}
			st, err := a.client.Stats(cmd.Context(), u.ID, a.session.Token())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "GST collected\t%s\n", utils.FormatAmount(st.TotalGstCollection))
			fmt.Fprintf(tw, "Returns filed\t%d\n", st.ProcessedReturns)
			fmt.Fprintf(tw, "Pending actions\t%d\n", st.PendingActions)
			fmt.Fprintf(tw, "Compliance score\t%d%%\n", st.ComplianceScore)
			fmt.Fprintf(tw, "Uploaded files\t%d\n", st.UploadedFilesCount)
			return tw.Flush()
		},
	}
}

// cacheCmd exposes the per-user local store.
func (a *app) cacheCmd() *cobra.Command {
	cache := &cobra.Command{Use: "cache", Short: "Read and write data cached for the signed-in user"}
	cache.AddCommand(
		&cobra.Command{
			Use:   "set KEY VALUE",
			Short: "Store VALUE (JSON, or a plain string) under KEY",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				var v any = args[1]
				if json.Valid([]byte(args[1])) {
					v = json.RawMessage(args[1])
				}
				return a.session.Set(args[0], v)
			},
		},
		&cobra.Command{
			Use:   "get KEY",
			Short: "Print the value stored under KEY",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				var v json.RawMessage
				found, err := a.session.Get(args[0], &v)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("no value for %q", args[0])
				}
				fmt.Fprintln(a.out, string(v))
				return nil
			},
		},
		&cobra.Command{
			Use:   "keys",
			Short: "List cached keys",
			RunE: func(cmd *cobra.Command, args []string) error {
				keys, err := a.session.Keys()
				if err != nil {
					return err
				}
				for _, k := range keys {
					fmt.Fprintln(a.out, k)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm KEY",
			Short: "Remove KEY",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.session.Remove(args[0])
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove every cached key",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.session.Clear()
			},
		},
	)
	return cache
}

func (a *app) requireUser() (*models.User, error) {
	u := a.session.User()
	if u == nil {
		return nil, errors.New("not signed in; run `finsync login`")
	}
	return u, nil
}
