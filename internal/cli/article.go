package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dailydigest/internal/api"
	"dailydigest/internal/browser"
	"dailydigest/internal/digest"
	"dailydigest/internal/domain"
)

func (a *app) articleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "article",
		Short: "Show, open and bookmark articles",
	}
	cmd.AddCommand(
		a.articleShowCommand(),
		a.articleOpenCommand(),
		a.articleSaveCommand(true),
		a.articleSaveCommand(false),
	)
	return cmd
}

func (a *app) getArticle(cmd *cobra.Command, arg string) (*domain.Article, error) {
	id, err := parseID(arg)
	if err != nil {
		return nil, err
	}
	client, err := a.authed(cmd)
	if err != nil {
		return nil, err
	}
	article, err := client.GetArticle(cmd.Context(), id)
	if api.IsNotFound(err) {
		return nil, fmt.Errorf("article %d not found", id)
	}
	return article, err
}

func (a *app) articleShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one article",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			article, err := a.getArticle(cmd, args[0])
			if err != nil {
				return err
			}
			printArticle(cmd.OutOrStdout(), *article, a.now())
			return nil
		},
	}
}

func (a *app) articleOpenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "open <id>",
		Short: "Open an article in the browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			article, err := a.getArticle(cmd, args[0])
			if err != nil {
				return err
			}
			if err := browser.Open(article.URL); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Opened %s\n", article.URL)
			return nil
		},
	}
}

func (a *app) articleSaveCommand(save bool) *cobra.Command {
	use, short := "save <id>", "Add an article to the reading list"
	if !save {
		use, short = "unsave <id>", "Remove an article from the reading list"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
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
			var ack *domain.Ack
			if save {
				ack, err = client.SaveArticle(cmd.Context(), id)
			} else {
				ack, err = client.UnsaveArticle(cmd.Context(), id)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ack.Message)
			return nil
		},
	}
}

func (a *app) savedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "saved",
		Short: "List the reading list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.authed(cmd)
			if err != nil {
				return err
			}
			list := digest.NewReadingList(client, a.log, nil)
			if err := list.Load(cmd.Context()); err != nil {
				return err
			}
			printSaved(cmd.OutOrStdout(), list.State().Items, a.now())
			return nil
		},
	}
}
