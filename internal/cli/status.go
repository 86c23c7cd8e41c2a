package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ductran/recoverd/internal/core/config"
	"github.com/ductran/recoverd/internal/infra/storage/postgres"
	"github.com/ductran/recoverd/internal/recovery/retry"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show open failures awaiting recovery",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 50, "max failures to list")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
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

	printOperationMetrics(cfg.Server.Port)

	repo := postgres.NewFailureRepo(db)
	failures, err := repo.ListUnresolved(ctx, statusLimit)
	if err != nil {
		slog.Error("Failed to list failures", "error", err)
		os.Exit(1)
	}

	if len(failures) == 0 {
		fmt.Println("No unresolved failures.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "OPERATION\tWORKFLOW\tKIND\tATTEMPTS\tFIRST SEEN")

	for _, f := range failures {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			f.OperationName,
			f.WorkflowID,
			f.Kind,
			f.Attempts,
			f.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	_ = w.Flush()
}

// printOperationMetrics reads strategy metrics from the running service.
// Skipped silently when the service is not up; the failure table below
// still prints from the database.
func printOperationMetrics(port int) {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%d/operations", port))
	if err != nil {
		return
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var snapshot map[string]retry.Metrics
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil || len(snapshot) == 0 {
		return
	}

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "OPERATION\tATTEMPTS\tOK\tFAILED\tTOTAL DELAY")
	for _, name := range names {
		m := snapshot[name]
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n",
			name, m.TotalAttempts, m.SuccessfulAttempts, m.FailedAttempts, m.TotalDelay)
	}
	_ = w.Flush()
	fmt.Println()
}
