package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dailydigest/internal/api"
	"dailydigest/internal/digest"
	"dailydigest/internal/domain"
)

// digestFilter holds the --category and --source flags.
type digestFilter struct {
	category string
	source   string
}

func (f *digestFilter) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.category, "category", digest.All, "only show this category")
	cmd.Flags().StringVar(&f.source, "source", digest.All, "only show this source")
}

func (a *app) digestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "List, show and create digests",
	}
	cmd.AddCommand(
		a.digestLatestCommand(),
		a.digestListCommand(),
		a.digestShowCommand(),
		a.digestCreateCommand(),
	)
	return cmd
}

// parseEditionArg defaults to the edition for the current local time.
func (a *app) parseEditionArg(args []string) (domain.Edition, error) {
	if len(args) == 0 {
		return domain.EditionFor(a.now()), nil
	}
	return domain.ParseEdition(strings.ToLower(args[0]))
}

func (a *app) digestLatestCommand() *cobra.Command {
	var filter digestFilter
	cmd := &cobra.Command{
		Use:       "latest [morning|evening]",
		Short:     "Show the latest digest of an edition",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{string(domain.EditionMorning), string(domain.EditionEvening)},
		RunE: func(cmd *cobra.Command, args []string) error {
			edition, err := a.parseEditionArg(args)
			if err != nil {
				return err
			}
			client, err := a.authed(cmd)
			if err != nil {
				return err
			}

			ctrl := a.newController(client)
			defer ctrl.Close()
			err = ctrl.LoadEdition(cmd.Context(), edition)
			if s := ctrl.State(); s.Error != "" {
				return errors.New(s.Error)
			}
			if err != nil {
				a.log.WithError(err).Warn("Digest loaded without saved articles")
			}
			ctrl.SetCategory(filter.category)
			ctrl.SetSource(filter.source)
			s := ctrl.State()
			if s.Digest == nil {
				fmt.Fprintln(cmd.OutOrStdout(), s.Notice)
				return nil
			}
			printDigest(cmd.OutOrStdout(), s, a.now())
			return nil
		},
	}
	filter.register(cmd)
	return cmd
}

func (a *app) digestListCommand() *cobra.Command {
	var limit, skip int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent digests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.authed(cmd)
			if err != nil {
				return err
			}
			digests, err := client.ListDigests(cmd.Context(), limit, skip)
			if err != nil {
				return err
			}
			printDigestList(cmd.OutOrStdout(), digests)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of digests to list")
	cmd.Flags().IntVar(&skip, "skip", 0, "number of digests to skip")
	return cmd
}

func (a *app) digestShowCommand() *cobra.Command {
	var filter digestFilter
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one digest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			client, err := a.authed(cmd)
			if err != nil {
				return err
			}

			d, err := client.GetDigest(cmd.Context(), id)
			if api.IsNotFound(err) {
				return fmt.Errorf("digest %d not found", id)
			}
			if err != nil {
				return err
			}
			saved, err := client.SavedArticles(cmd.Context())
			if err != nil {
				a.log.WithError(err).Warn("Failed to load saved articles")
			}
			s := digest.State{
				Digest:   d,
				Edition:  d.Edition,
				SavedIDs: make(map[int64]struct{}, len(saved)),
				Category: filter.category,
				Source:   filter.source,
			}
			for _, item := range saved {
				s.SavedIDs[item.ID] = struct{}{}
			}
			printDigest(cmd.OutOrStdout(), s, a.now())
			return nil
		},
	}
	filter.register(cmd)
	return cmd
}

func (a *app) digestCreateCommand() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Ask the backend to build a digest for the current edition",
		Long: `Ask the backend to build a digest for the current edition.

The edition is morning before noon local time and evening after. With --wait
the command polls until the digest is ready or the poll timeout passes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.authed(cmd)
			if err != nil {
				return err
			}

			done := make(chan digest.State, 1)
			ctrl := a.newController(client, digest.WithOnChange(func(s digest.State) {
				if !s.Refreshing {
					select {
					case done <- s:
					default:
					}
				}
			}))
			defer ctrl.Close()

			if err := ctrl.CreateDigest(cmd.Context()); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ctrl.State().Notice)
			if !wait {
				return nil
			}

			select {
			case s := <-done:
				if s.Digest == nil || s.Notice != "" {
					return errors.New(s.Notice)
				}
				printDigest(out, s, a.now())
				return nil
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait for the digest and print it")
	return cmd
}

func (a *app) newController(client *api.Client, opts ...digest.Option) *digest.Controller {
	base := []digest.Option{
		digest.WithClock(a.now),
		digest.WithLogger(a.log),
		digest.WithPollInterval(a.cfg.PollInterval),
		digest.WithPollTimeout(a.cfg.PollTimeout),
	}
	return digest.NewController(client, append(base, opts...)...)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
