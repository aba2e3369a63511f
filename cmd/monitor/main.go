// monitor is the deadline risk monitoring daemon: it sweeps the active
// task set on an interval, prints the risk dashboard and raises alerts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"

	"lerian-deadline-engine/internal/alerting"
	"lerian-deadline-engine/internal/config"
	"lerian-deadline-engine/internal/engine"
	"lerian-deadline-engine/internal/logging"
	"lerian-deadline-engine/internal/monitor"
	"lerian-deadline-engine/internal/persistence"
	"lerian-deadline-engine/internal/risk"
	"lerian-deadline-engine/internal/tracker"
	"lerian-deadline-engine/pkg/types"
)

func main() {
	var (
		tasksPath = flag.String("tasks", "tasks.yaml", "Path to the tracked task file")
		rulesPath = flag.String("rules", "", "Path to the monitoring rules file (optional)")
		once      = flag.Bool("once", false, "Run a single sweep and exit")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logging.New(logging.ParseLevel(cfg.Logging.Level))

	rulesFile := *rulesPath
	if rulesFile == "" {
		rulesFile = cfg.Monitoring.RulesFile
	}
	rules, err := monitor.LoadRules(rulesFile)
	if err != nil {
		log.Fatalf("Failed to load monitoring rules: %v", err)
	}

	source, err := tracker.NewFileSource(*tasksPath)
	if err != nil {
		log.Fatalf("Failed to open task file: %v", err)
	}

	opts := engine.Options{
		Source:     source,
		Developers: source,
		Rules:      rules,
	}
	if cfg.Alerting.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Alerting.RedisAddr,
			DB:   cfg.Alerting.RedisDB,
		})
		opts.Cooldowns = alerting.NewRedisCooldown(client, "")
	}
	if cfg.Storage.SQLitePath != "" {
		journal, err := persistence.NewAlertJournal(cfg.Storage.SQLitePath, cfg.Storage.FlushInterval, logger)
		if err != nil {
			log.Fatalf("Failed to open alert journal: %v", err)
		}
		opts.Journal = journal
	}
	if cfg.Storage.PostgresDSN != "" {
		snapshots, err := persistence.NewSnapshotStore(cfg.Storage.PostgresDSN, logger)
		if err != nil {
			log.Fatalf("Failed to connect snapshot store: %v", err)
		}
		opts.Snapshots = snapshots
	}

	eng, err := engine.New(cfg, logger, opts)
	if err != nil {
		log.Fatalf("Failed to assemble engine: %v", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		result, err := eng.RunSweepOnce(ctx)
		if err != nil {
			log.Fatalf("Sweep failed: %v", err)
		}
		printSweep(result)
		printDashboard(eng)
		return
	}

	ticker := time.NewTicker(cfg.Monitoring.Interval)
	defer ticker.Stop()

	color.Cyan("Deadline risk monitor started (interval %s, %d tasks tracked)",
		cfg.Monitoring.Interval, source.Count())
	for {
		result, err := eng.RunSweepOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				color.Yellow("Shutting down")
				return
			}
			color.Red("Sweep failed: %v", err)
		} else {
			printSweep(result)
			printDashboard(eng)
		}

		select {
		case <-ctx.Done():
			color.Yellow("Shutting down")
			return
		case <-ticker.C:
		}
	}
}

func printSweep(result *monitor.SweepResult) {
	fmt.Printf("sweep %s: assessed %d, failed %d, alerts %d (%s)\n",
		result.SweepID[:8], result.Assessed, result.Failed,
		result.AlertsRaised, result.Duration.Round(time.Millisecond))
}

func printDashboard(eng *engine.Engine) {
	board := eng.GetRiskDashboard(5)
	if board.Current == nil {
		return
	}

	levelColor := map[types.RiskLevel]*color.Color{
		types.RiskLevelLow:      color.New(color.FgGreen),
		types.RiskLevelMedium:   color.New(color.FgYellow),
		types.RiskLevelHigh:     color.New(color.FgRed),
		types.RiskLevelCritical: color.New(color.FgRed, color.Bold),
	}
	for _, level := range []types.RiskLevel{
		types.RiskLevelCritical, types.RiskLevelHigh,
		types.RiskLevelMedium, types.RiskLevelLow,
	} {
		if count := board.Current.ByLevel[level]; count > 0 {
			levelColor[level].Printf("  %-8s %d\n", level, count)
		}
	}
	fmt.Printf("  trend: %s  avg score: %.2f\n", board.Trend, board.Current.AverageScore)

	for _, alert := range board.RecentAlerts {
		levelColor[alert.Level].Printf("  ! %s\n", alert.Message)
	}
	if len(board.Current.CriticalTasks) > 0 {
		color.Red("  critical tasks: %v", board.Current.CriticalTasks)
	}
}

// interface satisfaction is checked here so a tracker change that drops
// a collaborator fails the build
var (
	_ risk.TaskSource         = (*tracker.FileSource)(nil)
	_ risk.DeveloperDirectory = (*tracker.FileSource)(nil)
)
