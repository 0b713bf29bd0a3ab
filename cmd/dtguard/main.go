// dtguard is a local-first device triage engine: it evaluates collected
// device, network and message evidence, maintains a deduplicated alert
// feed and tracks incidents across their lifecycle.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/realyn/dtguard/internal/api"
	"github.com/realyn/dtguard/internal/config"
	"github.com/realyn/dtguard/internal/engine"
	"github.com/realyn/dtguard/internal/metrics"
	"github.com/realyn/dtguard/internal/model"
	"github.com/realyn/dtguard/internal/store"
)

// Exit codes of the scan command, for scripting.
const (
	exitClean      = 0
	exitActionable = 1
	exitHighRisk   = 2
)

var (
	configPath   string
	evidencePath string
	feedLimit    int
	watchEvery   time.Duration
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	exitCode := exitClean

	root := &cobra.Command{
		Use:           "dtguard",
		Short:         "On-device security signal triage",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config (defaults apply when absent)")

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Evaluate one evidence bundle and update the alert feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, _, err := buildEngine(logger)
			if err != nil {
				return err
			}
			bundle, err := engine.LoadEvidenceBundle(evidencePath)
			if err != nil {
				return err
			}
			report := e.Scan(bundle)
			printReport(cmd, report)
			exitCode = reportExitCode(report)
			return nil
		},
	}
	scanCmd.Flags().StringVar(&evidencePath, "evidence", "", "path to the JSON evidence bundle")
	_ = scanCmd.MarkFlagRequired("evidence")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-scan the evidence bundle on an interval until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, cfg, err := buildEngine(logger)
			if err != nil {
				return err
			}
			interval := watchEvery
			if interval <= 0 {
				interval = cfg.WatchInterval
			}
			return watchLoop(cmd.Context(), e, logger, interval)
		},
	}
	watchCmd.Flags().StringVar(&evidencePath, "evidence", "", "path to the JSON evidence bundle, re-read each cycle")
	watchCmd.Flags().DurationVar(&watchEvery, "interval", 0, "scan interval (config default when unset)")
	_ = watchCmd.MarkFlagRequired("evidence")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only feed, incident and status API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, cfg, err := buildEngine(logger)
			if err != nil {
				return err
			}
			return serveAPI(cmd.Context(), e, cfg, logger)
		},
	}

	feedCmd := &cobra.Command{
		Use:   "feed",
		Short: "Print recent alert feed entries, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, _, err := buildEngine(logger)
			if err != nil {
				return err
			}
			entries, err := e.Feed().ReadRecent(feedLimit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				cmd.Println("alert feed is empty")
				return nil
			}
			for _, entry := range entries {
				cmd.Printf("%s  [%s] %s (score %d)\n",
					entry.RecordedAt.Format(time.RFC3339), entry.Severity, entry.Title, entry.Score)
			}
			return nil
		},
	}
	feedCmd.Flags().IntVar(&feedLimit, "limit", 20, "maximum entries to print")

	root.AddCommand(scanCmd, watchCmd, serveCmd, feedCmd, incidentsCommand(logger))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "error", err)
		return exitActionable
	}
	return exitCode
}

func incidentsCommand(logger *slog.Logger) *cobra.Command {
	incidents := &cobra.Command{
		Use:   "incidents",
		Short: "Inspect and progress tracked incidents",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List incidents, active first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, _, err := buildEngine(logger)
			if err != nil {
				return err
			}
			all := e.Incidents().List()
			if len(all) == 0 {
				cmd.Println("no incidents")
				return nil
			}
			for _, inc := range all {
				cmd.Printf("%s  %-11s [%s] %s (seen %d times, last %s)\n",
					inc.IncidentID, inc.Status, inc.Severity, inc.Title,
					inc.OccurrenceCount, inc.LastSeenAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	transition := func(use, short string, apply func(*store.IncidentStore) (model.Incident, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, _ []string) error {
				e, _, err := buildEngine(logger)
				if err != nil {
					return err
				}
				inc, err := apply(e.Incidents())
				if errors.Is(err, store.ErrNoIncident) {
					cmd.Println("no incident in a matching state")
					return nil
				}
				if err != nil {
					return err
				}
				cmd.Printf("%s -> %s: %s\n", inc.IncidentID, inc.Status, inc.Title)
				return nil
			},
		}
	}

	incidents.AddCommand(
		list,
		transition("progress", "Mark the most recent open incident in progress",
			func(s *store.IncidentStore) (model.Incident, error) { return s.MarkNextOpenInProgress() }),
		transition("resolve", "Resolve the most recent active incident",
			func(s *store.IncidentStore) (model.Incident, error) { return s.ResolveNextActive() }),
		transition("reopen", "Reopen the most recently resolved incident",
			func(s *store.IncidentStore) (model.Incident, error) { return s.ReopenLatestResolved() }),
	)
	return incidents
}

func buildEngine(logger *slog.Logger) (*engine.Engine, config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, cfg, err
	}
	e, err := engine.New(cfg, logger, metrics.New())
	if err != nil {
		return nil, cfg, err
	}
	return e, cfg, nil
}

func watchLoop(ctx context.Context, e *engine.Engine, logger *slog.Logger, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	scanOnce := func() {
		bundle, err := engine.LoadEvidenceBundle(evidencePath)
		if err != nil {
			logger.Error("evidence bundle unreadable, skipping cycle", "error", err)
			return
		}
		report := e.Scan(bundle)
		if report.FeedChanged {
			logger.Info("posture changed", "highest_severity", report.HighestSeverity)
		}
	}

	scanOnce()
	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped")
			return nil
		case <-ticker.C:
			scanOnce()
		}
	}
}

func serveAPI(ctx context.Context, e *engine.Engine, cfg config.Config, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewServer(e, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", "addr", cfg.HTTPAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func printReport(cmd *cobra.Command, report engine.ScanReport) {
	counts := report.Snapshot.CountBySeverity()
	cmd.Printf("scanned %d findings (high %d, medium %d, low %d, info %d)\n",
		len(report.Snapshot.Findings),
		counts[model.SeverityHigh], counts[model.SeverityMedium],
		counts[model.SeverityLow], counts[model.SeverityInfo])

	if len(report.UrgentActions) > 0 {
		cmd.Println("urgent actions:")
		for _, f := range report.UrgentActions {
			cmd.Printf("  [%s] %s: %s\n", f.Severity, f.Title, f.Remediation)
		}
	}
	if report.FeedChanged {
		cmd.Println("alert feed updated")
	} else {
		cmd.Println("alert feed unchanged")
	}
	for _, err := range report.StorageErrors {
		cmd.Printf("storage degraded: %v\n", err)
	}
}

func reportExitCode(report engine.ScanReport) int {
	switch {
	case report.HighestSeverity == model.SeverityHigh:
		return exitHighRisk
	case report.HighestSeverity.Rank() > model.SeverityInfo.Rank():
		return exitActionable
	default:
		return exitClean
	}
}
