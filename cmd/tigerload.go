package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/geocode-cli/internal/db"
	"github.com/sells-group/geocode-cli/internal/tiger"
)

var tigerloadCmd = &cobra.Command{
	Use:   "tigerload",
	Short: "Load TIGER ADDRFEAT address ranges into the road reference store",
	Long: `Downloads Census TIGER/Line ADDRFEAT shapefiles for the given counties
and loads their address ranges into the interpolation table the resolver's
TIGER fallback reads.

Counties are 5-digit state+county FIPS codes, e.g. 44005 for Newport County, RI.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := db.Connect(ctx, db.ConnConfig{
			Host:           cfg.Roads.Host,
			Port:           cfg.Roads.Port,
			Name:           cfg.Roads.Name,
			User:           cfg.Roads.User,
			Password:       cfg.Roads.Password,
			ConnectTimeout: time.Duration(cfg.Roads.ConnectTimeoutSecs) * time.Second,
		})
		if err != nil {
			return eris.Wrap(err, "tigerload: connect")
		}
		defer pool.Close()

		showStatus, _ := cmd.Flags().GetBool("status")
		if showStatus {
			return printTigerStatus(ctx, pool)
		}

		countiesStr, _ := cmd.Flags().GetString("counties")
		year, _ := cmd.Flags().GetInt("year")
		concurrency, _ := cmd.Flags().GetInt("concurrency")
		incremental, _ := cmd.Flags().GetBool("incremental")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		useFTP, _ := cmd.Flags().GetBool("ftp")

		opts := tiger.LoadOptions{
			Year:        year,
			Counties:    splitAndTrim(countiesStr),
			TempDir:     cfg.Tiger.TempDir,
			Concurrency: concurrency,
			Incremental: incremental,
			DryRun:      dryRun,
			UseFTP:      useFTP,
		}

		zap.L().Info("starting ADDRFEAT load",
			zap.Int("year", opts.Year),
			zap.Strings("counties", opts.Counties),
			zap.Bool("incremental", opts.Incremental),
			zap.Bool("dry_run", opts.DryRun),
			zap.Int("concurrency", opts.Concurrency),
		)

		if err := tiger.Load(ctx, pool, opts); err != nil {
			return eris.Wrap(err, "tigerload")
		}

		fmt.Println("ADDRFEAT load complete")
		return nil
	},
}

func init() {
	tigerloadCmd.Flags().String("counties", "", "comma-separated 5-digit county FIPS codes (required unless --status)")
	tigerloadCmd.Flags().Int("year", 0, "TIGER/Line year (default 2024)")
	tigerloadCmd.Flags().Bool("incremental", true, "skip already-loaded county/year combos")
	tigerloadCmd.Flags().Bool("dry-run", false, "download and parse without loading")
	tigerloadCmd.Flags().Bool("ftp", false, "download from the Census FTP mirror instead of HTTPS")
	tigerloadCmd.Flags().Int("concurrency", 0, "parallel county downloads (default 3)")
	tigerloadCmd.Flags().Bool("status", false, "show current load status")
	rootCmd.AddCommand(tigerloadCmd)
}

// printTigerStatus displays the load ledger.
func printTigerStatus(ctx context.Context, pool db.Pool) error {
	status, err := tiger.LoadStatus(ctx, pool)
	if err != nil {
		return eris.Wrap(err, "tigerload: get status")
	}

	if len(status) == 0 {
		fmt.Println("No ADDRFEAT data loaded yet")
		return nil
	}

	fmt.Printf("%-8s %-6s %-6s %10s %12s %s\n",
		"County", "State", "Year", "Ranges", "Duration", "Loaded At")
	fmt.Println(strings.Repeat("-", 64))

	for _, s := range status {
		abbr, _ := tiger.AbbrFromFIPS(s.CountyFIPS[:2])
		fmt.Printf("%-8s %-6s %-6d %10d %10dms %s\n",
			s.CountyFIPS, abbr, s.Year,
			s.RowCount, s.DurationMs, s.LoadedAt.Format("2006-01-02 15:04"))
	}

	return nil
}

// splitAndTrim splits a comma-separated flag value, dropping empties.
func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
