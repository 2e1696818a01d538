package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"dailydigest/internal/session"
)

var errNotLoggedIn = errors.New(`not logged in, run "dailydigest login" first`)

func (a *app) loginCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session(cmd)
			if err != nil {
				return err
			}
			if email, err = a.promptIfEmpty(cmd, email, "Email: ", false); err != nil {
				return err
			}
			if password, err = a.promptIfEmpty(cmd, password, "Password: ", true); err != nil {
				return err
			}
			if err := sess.Login(cmd.Context(), email, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", sess.User().DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (prompted when omitted)")
	return cmd
}

func (a *app) registerCommand() *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session(cmd)
			if err != nil {
				return err
			}
			if email, err = a.promptIfEmpty(cmd, email, "Email: ", false); err != nil {
				return err
			}
			if password, err = a.promptIfEmpty(cmd, password, "Password: ", true); err != nil {
				return err
			}
			if err := sess.Register(cmd.Context(), email, password, name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account created. Logged in as %s.\n", sess.User().DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (prompted when omitted)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "full name")
	return cmd
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session(cmd)
			if err != nil {
				return err
			}
			sess.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func (a *app) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session(cmd)
			if err != nil {
				return err
			}
			if err := sess.CheckAuth(cmd.Context()); err != nil {
				return err
			}
			if sess.State() != session.Authenticated {
				return errNotLoggedIn
			}
			u := sess.User()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, u.DisplayName())
			if u.FullName != "" {
				fmt.Fprintln(out, u.Email)
			}
			if !u.CreatedAt.IsZero() {
				fmt.Fprintf(out, "Member since %s\n", u.CreatedAt.Format("January 2, 2006"))
			}
			return nil
		},
	}
}

// promptIfEmpty asks for value on stdin when the flag was not given.
// Secrets are read without echo when stdin is a terminal.
func (a *app) promptIfEmpty(cmd *cobra.Command, value, prompt string, secret bool) (string, error) {
	if value != "" {
		return value, nil
	}
	label := strings.ToLower(strings.TrimSuffix(prompt, ": "))
	stderr := cmd.ErrOrStderr()
	fmt.Fprint(stderr, prompt)

	if f, ok := cmd.InOrStdin().(*os.File); ok && secret && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(stderr)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", label, err)
		}
		return string(b), nil
	}

	if a.stdin == nil {
		a.stdin = bufio.NewReader(cmd.InOrStdin())
	}
	line, err := a.stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading %s: %w", label, err)
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", fmt.Errorf("%s is required", label)
	}
	return line, nil
}
