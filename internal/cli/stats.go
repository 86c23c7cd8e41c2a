package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ductran/recoverd/internal/core/config"
	"github.com/ductran/recoverd/internal/infra/storage/postgres"
	"github.com/ductran/recoverd/internal/recovery/stats"
)

var statsDays int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show recovery statistics over a trailing window",
	Run:   runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", stats.DefaultWindowDays, "window size in days")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	svc := stats.NewService(postgres.NewStatsRepo(db), nil)
	result, err := svc.Statistics(ctx, statsDays)
	if err != nil {
		slog.Error("Failed to load statistics", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Last %d days: %d failures, %d recovered (%.1f%%), avg recovery %s\n",
		result.WindowDays,
		result.TotalFailures,
		result.Recovered,
		result.RecoveryRate*100,
		result.AvgRecoveryTime,
	)

	if len(result.ByKind) == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "KIND\tFAILURES\tRECOVERED\tAVG RECOVERY")
	for kind, sum := range result.ByKind {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", kind, sum.TotalFailures, sum.Recovered, sum.AvgRecovery)
	}
	_ = w.Flush()
}
