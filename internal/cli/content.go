package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lukasito25/portfolio/internal/content"
)

func migrateCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Create the database file if needed and apply the schema.

The server migrates on start as well; run this ahead of a deploy to prepare
the database file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open("portfolio-cli")
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.store.Migrate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database schema is up to date (%s)\n", a.cfg.Database.Path)
			return nil
		},
	}
}

func seedCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file>",
		Short: "Import projects and posts from a YAML file",
		Long: `Import projects and posts from a YAML file.

Entries are matched by slug (derived from the title when absent): existing
items are updated, new ones created.

Example file:
  projects:
    - title: Ledger
      summary: Double-entry bookkeeping service
      tech: [Go, SQLite]
      featured: true
      published: true
  posts:
    - title: Hello World
      body: "# Hello\n\nFirst post."
      tags: [intro]
      published: true`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := content.LoadSeed(args[0])
			if err != nil {
				return err
			}

			a, err := g.open("portfolio-cli")
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.content.ApplySeed(cmd.Context(), seed)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Projects: %d created, %d updated\n", res.ProjectsCreated, res.ProjectsUpdated)
			fmt.Fprintf(out, "Posts:    %d created, %d updated\n", res.PostsCreated, res.PostsUpdated)
			return nil
		},
	}
}
