package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/projectmerge/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "projectmerge",
	Short: "Deduplicate agency project files into the canonical dataset",
	Long:  "Normalizes per-agency IRA/BIL project files, scores each row against the canonical dataset, merges duplicates, routes uncertain matches to review and appends new projects.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
