// Package cli is the dailydigest command line: one-shot commands against the
// backend plus the terminal UI and the Telegram bot front ends.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dailydigest/internal/api"
	"dailydigest/internal/config"
	"dailydigest/internal/logging"
	"dailydigest/internal/session"
	"dailydigest/internal/storage"
)

// BuildInfo is stamped at link time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// app carries what the commands share. Resources are opened by the first
// command that needs them and released by close.
type app struct {
	build      BuildInfo
	configPath string
	now        func() time.Time

	cfg    config.Config
	log    *logrus.Logger
	closer io.Closer
	repo   *storage.BadgerRepository
	tokens *storage.TokenStore
	client *api.Client
	sess   *session.Session
	stdin  *bufio.Reader
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, build BuildInfo) int {
	a := &app{build: build, now: time.Now}
	err := newRootCommand(a).ExecuteContext(ctx)
	a.close()
	if err != nil {
		return 1
	}
	return 0
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "dailydigest",
		Short: "Read your morning and evening news digests",
		Long: `dailydigest is a client for the Daily Digest service.

Run it without arguments for the terminal UI, use the subcommands for
scripting, or start the Telegram bot with "dailydigest bot".`,
		SilenceUsage: true,
		RunE:         a.runTUI,
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "directory holding config.yaml")

	root.AddCommand(
		a.versionCommand(),
		a.loginCommand(),
		a.registerCommand(),
		a.logoutCommand(),
		a.whoamiCommand(),
		a.digestCommand(),
		a.articleCommand(),
		a.savedCommand(),
		a.tuiCommand(),
		a.botCommand(),
	)
	return root
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dailydigest %s (commit: %s, built: %s)\n", a.build.Version, a.build.Commit, a.build.Date)
		},
	}
}

// open loads the config and opens the logger, the token store and the API
// client. Logs go to LOG_FILE unless toStdout is set.
func (a *app) open(cmd *cobra.Command, toStdout bool) error {
	if a.client != nil {
		return nil
	}
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	opts := logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}
	if !toStdout {
		opts.File = cfg.LogFile
	}
	log, closer, err := logging.New(opts)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	a.cfg, a.log, a.closer = cfg, log, closer

	log.WithFields(logrus.Fields{
		"badgerdb_path": cfg.BadgerDBPath,
		"api_base_url":  cfg.APIBaseURL,
		"command":       cmd.Name(),
	}).Debug("Configuration loaded successfully")

	repo, err := storage.NewBadgerRepository(cfg.BadgerDBPath, log, storage.WithTokenTTL(cfg.TokenTTL))
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}
	a.repo = repo
	a.tokens = storage.NewTokenStore(repo, storage.DefaultScope)
	a.client = api.New(cfg.APIBaseURL, a.tokens,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithLogger(log),
		api.WithUserAgent("dailydigest/"+a.build.Version),
	)
	return nil
}

// session returns the command line session. There is no login screen to
// return to, so a rejected token prints a hint.
func (a *app) session(cmd *cobra.Command) (*session.Session, error) {
	if err := a.open(cmd, false); err != nil {
		return nil, err
	}
	if a.sess == nil {
		stderr := cmd.ErrOrStderr()
		sess := session.New(a.client, a.tokens, nil, a.log)
		a.client.SetUnauthorizedHandler(func() {
			sess.HandleUnauthorized()
			fmt.Fprintln(stderr, `Your session has expired. Run "dailydigest login" to log in again.`)
		})
		a.sess = sess
	}
	return a.sess, nil
}

// authed opens the client and fails early when no token is stored.
func (a *app) authed(cmd *cobra.Command) (*api.Client, error) {
	if _, err := a.session(cmd); err != nil {
		return nil, err
	}
	token, err := a.tokens.Token(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	if token == "" {
		return nil, errNotLoggedIn
	}
	return a.client, nil
}

func (a *app) close() {
	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			a.log.WithError(err).Error("Error closing database")
		}
		a.repo = nil
	}
	if a.closer != nil {
		_ = a.closer.Close()
		a.closer = nil
	}
}
