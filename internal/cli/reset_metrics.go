package cli

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ductran/recoverd/internal/core/config"
)

var resetMetricsCmd = &cobra.Command{
	Use:   "reset-metrics <operation>",
	Short: "Zero the retry metrics of one operation on the running service",
	Args:  cobra.ExactArgs(1),
	Run:   runResetMetrics,
}

func init() {
	rootCmd.AddCommand(resetMetricsCmd)
}

// runResetMetrics talks to the health server of the running process, since
// strategy metrics live in its memory rather than in the database.
func runResetMetrics(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	endpoint := fmt.Sprintf("http://localhost:%d/operations/reset?operation=%s",
		cfg.Server.Port, url.QueryEscape(args[0]))

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(endpoint, "", nil)
	if err != nil {
		slog.Error("Failed to reach service, is it running?", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusNoContent:
		fmt.Printf("Metrics reset for operation %q.\n", args[0])
	case http.StatusNotFound:
		fmt.Printf("Unknown operation %q.\n", args[0])
		os.Exit(1)
	default:
		body, _ := io.ReadAll(resp.Body)
		slog.Error("Reset rejected", "status", resp.StatusCode, "body", strings.TrimSpace(string(body)))
		os.Exit(1)
	}
}
