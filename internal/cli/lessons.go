package cli

import (
	"fmt"
	"os"

	"github.com/ashureev/datagym/internal/domain"
	"github.com/ashureev/datagym/internal/lessons"
	"github.com/ashureev/datagym/internal/store"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newLessonsCommand(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lessons",
		Short: "Manage the lesson catalogue",
	}
	cmd.AddCommand(newLessonsImportCommand(global))
	cmd.AddCommand(newLessonsListCommand(global))
	return cmd
}

func newLessonsImportCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Create or replace lessons from a YAML catalogue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open catalogue: %w", err)
			}
			defer func() { _ = f.Close() }()

			repo, err := store.Open(cmd.Context(), global.databaseURL, global.dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			n, err := lessons.Import(cmd.Context(), repo, f)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d lessons\n", n)
			return nil
		},
	}
}

func newLessonsListCommand(global *globalOptions) *cobra.Command {
	var trackFlag, difficultyFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List lessons for a track and difficulty",
		RunE: func(cmd *cobra.Command, _ []string) error {
			track, err := domain.ParseTrack(trackFlag)
			if err != nil {
				return err
			}
			difficulty, err := domain.ParseDifficulty(difficultyFlag)
			if err != nil {
				return err
			}

			repo, err := store.Open(cmd.Context(), global.databaseURL, global.dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			list, err := repo.ListLessons(cmd.Context(), track, difficulty)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "(no lessons)")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Code", "Title", "Task"})
			for _, l := range list {
				t.AppendRow(table.Row{l.Code, l.Title, l.Task})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&trackFlag, "track", string(domain.TrackSQL), "Track: SQL or PYTHON")
	cmd.Flags().StringVar(&difficultyFlag, "difficulty", string(domain.Beginner), "Difficulty: beginner, intermediate or advanced")
	return cmd
}
