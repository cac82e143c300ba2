package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var resolveJSON bool

var resolveCmd = &cobra.Command{
	Use:   "resolve [address]",
	Short: "Resolve one address to coordinates",
	Long: `Resolves a single raw address string through the full cascade and prints
the outcome. Repeated addresses are served from the resolution cache.

Examples:
  geocode-cli resolve "2 Old Walcott Ave, Jamestown RI 02835"
  geocode-cli resolve --json "1118 Kingstown Rd, Peace Dale 02879"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initResolver(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		address := strings.Join(args, " ")
		res, err := env.Resolver.Resolve(ctx, address)
		if err != nil {
			return eris.Wrap(err, "resolve")
		}

		if resolveJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		if !res.Found() {
			zap.L().Warn("address not resolved",
				zap.String("address", address),
				zap.String("error", res.Error),
			)
			fmt.Printf("not found: %s\n", res.Error)
			return nil
		}

		fmt.Printf("%s, %s  method=%s\n%s\n", res.Latitude, res.Longitude, res.Method, res.DisplayName)
		return nil
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "print the full resolution as JSON")
	rootCmd.AddCommand(resolveCmd)
}
