package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geocode-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "geocode-cli",
	Short: "Address resolution engine for messy postal addresses",
	Long: `Normalizes raw address strings, tags their components, and resolves
them to coordinates through cascading searches against a local Nominatim
service, with fuzzy road matching and TIGER interpolation as fallbacks.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c
		return eris.Wrap(config.InitLogger(cfg.Log), "init logger")
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
