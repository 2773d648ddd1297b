package cli

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"quiz-arena/internal/config"
	"quiz-arena/internal/infra/file"
	"quiz-arena/internal/infra/postgres"
)

// NewTopicsCmd prints the topics the server would offer.
func NewTopicsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "topics",
		Short: "List loadable topics and their question counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			st, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			bank := questionSource(cfg, st, slog.Default())
			topics, err := bank.Topics(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, topic := range topics {
				questions, err := bank.Questions(ctx, topic)
				if err != nil {
					fmt.Fprintf(out, "✗ %s - ERROR: %v\n", topic, err)
					continue
				}
				fmt.Fprintf(out, "✓ %s - %d questions\n", topic, len(questions))
			}
			return nil
		},
	}
}

// NewImportCmd copies the question directory into Postgres.
func NewImportCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import",
		Short: "Import questions_<topic> files into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if err := runMigrationsWithConfig(ctx, cfg); err != nil {
				return err
			}
			st, err := openStores(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			loader := file.NewDirLoader(cfg.Quiz.Dir, slog.Default())
			files, err := loader.Files()
			if err != nil {
				return err
			}
			bank, err := loader.LoadBank(ctx)
			if err != nil {
				return err
			}
			store := postgres.NewTopicStore(st.pool)
			saved := make(map[string]bool, len(files))
			for _, path := range files {
				topic := file.TopicName(filepath.Base(path))
				questions, ok := bank[topic]
				if !ok || saved[topic] {
					continue
				}
				saved[topic] = true
				if err := store.Save(ctx, topic, questions); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%d questions)\n", topic, len(questions))
			}
			return nil
		},
	}
}
