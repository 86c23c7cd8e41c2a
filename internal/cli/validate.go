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
	"github.com/ductran/recoverd/internal/recovery/consistency"
)

var validateReportOnly bool

var validateCmd = &cobra.Command{
	Use:   "validate [workflow_id]",
	Short: "Run a consistency validation, optionally scoped to one workflow",
	Args:  cobra.MaximumNArgs(1),
	Run:   runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateReportOnly, "report-only", false, "detect issues without applying corrections")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) {
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

	checks := cfg.Validation.Checks
	if validateReportOnly {
		checks.AutoCorrect = false
	}

	validator := consistency.New(
		postgres.NewWorkflowRepo(db),
		postgres.NewValidationLogRepo(db),
		nil,
		checks,
		nil,
		slog.Default(),
	)

	workflowID := ""
	if len(args) > 0 {
		workflowID = args[0]
	}

	report, err := validator.ValidateWorkflow(ctx, workflowID)
	if err != nil {
		slog.Error("Validation failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Run %s: %s (%d issues, %d corrections)\n",
		report.RunID, report.Status, len(report.Issues), len(report.Corrections))

	if len(report.Issues) == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ISSUE\tSEVERITY\tAFFECTED\tCORRECTABLE\tDESCRIPTION")
	for _, iss := range report.Issues {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\n",
			iss.Kind, iss.Severity, len(iss.RecordIDs), iss.Correctable, iss.Description)
	}
	_ = w.Flush()
}
