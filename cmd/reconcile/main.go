// Command reconcile runs one correction cycle (batch reconciliation,
// directory sync, payroll) against the configured database and exits.
//
// It exits non-zero when the cycle could not start. Per-record and
// per-account failures are logged and reported in the JSON summary but do
// not change the exit code.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	_ "time/tzdata"

	"github.com/warp/attendance-engine/bootstrap"
	"github.com/warp/attendance-engine/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "YAML configuration file")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		config.Exitf("load config: %v", err)
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.NewRuntime(ctx, cfg)
	if err != nil {
		config.Exitf("initialize runtime: %v", err)
	}
	defer rt.Close()

	report, err := rt.RunOnce(ctx)
	if err != nil {
		rt.Close()
		config.Exitf("reconcile: %v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{
		"batchRun":       report.Batch.RunID,
		"recordsWritten": report.Batch.Written,
		"recordsFailed":  len(report.Batch.Failures),
		"malformedScans": report.Batch.Malformed,
		"accountsSynced": report.Synced,
		"payrollRun":     report.Payroll.RunID,
		"accountsPaid":   len(report.Payroll.Accounts),
		"accountsFailed": len(report.Payroll.Failures),
	})
}
