// app.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sys/unix"

	"memcapture/internal/capture"
	"memcapture/internal/collectors/procmem"
	"memcapture/internal/collectors/sysmem"
	"memcapture/internal/config"
	"memcapture/internal/groups"
	"memcapture/internal/logger"
	"memcapture/internal/platform"
	"memcapture/internal/procfs"
	"memcapture/internal/report"
)

// run executes one capture: start the collectors, sample for the configured
// duration, then reduce and write the report.
func run(cfg *config.AppConfig) error {
	if err := logger.ConfigureLogging(cfg.Logging); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	log.Info().Str("version", version).Msg("Starting MemCapture")

	// Lower our own priority so sampling doesn't steal CPU from the
	// workload being measured. Not fatal: unprivileged runs may not be
	// allowed to renice.
	if cfg.Capture.Nice != 0 {
		if err := unix.Setpriority(unix.PRIO_PROCESS, 0, cfg.Capture.Nice); err != nil {
			log.Warn().Err(err).Int("nice", cfg.Capture.Nice).Msg("Failed to lower process priority")
		}
	}

	vendor, err := platform.ParseVendor(cfg.Capture.Platform)
	if err != nil {
		return err
	}
	profile := platform.ProfileFor(vendor)

	if err := os.MkdirAll(cfg.Report.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", cfg.Report.OutputDir, err)
	}

	// Group classification is optional; a groups file that fails to load is
	// an error, a missing one just means no grouping.
	var groupManager *groups.Manager
	if cfg.Report.GroupsFile != "" {
		groupManager, err = groups.Load(cfg.Report.GroupsFile)
		if err != nil {
			return fmt.Errorf("failed to load groups file %s: %w", cfg.Report.GroupsFile, err)
		}
	}

	fs := procfs.NewFS()
	procrank := procfs.NewProcrank(fs, logger.NewLoggerWithContext("procrank"))

	metadata := report.CollectMetadata(procrank.SwapEnabled())
	generator := report.NewGenerator(metadata, groupManager)

	clk := clock.New()

	var metrics []capture.Metric
	if cfg.Collectors.Process.Enabled {
		metrics = append(metrics, procmem.NewCollector(procrank, generator, clk))
	}
	if cfg.Collectors.Memory.Enabled {
		opts := sysmem.Options{
			GPU:        cfg.Collectors.Memory.EnableGPU,
			Bandwidth:  cfg.Collectors.Memory.EnableBandwidth,
			Containers: cfg.Collectors.Memory.EnableContainers,
		}
		metrics = append(metrics, sysmem.NewCollector(fs, profile, opts, generator, clk))
	}

	session := capture.NewSession(clk, metrics)

	// Optional self-telemetry endpoint over the pipeline's own stats.
	var server *capture.Server
	if cfg.Server.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(capture.NewPipelineStatsCollector(session.Schedulers()))
		server = capture.NewServer(cfg.Server, registry)
		server.Start()
		defer server.Shutdown()
	}

	// Ctrl-C ends the capture early with whatever was sampled so far.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	duration := time.Duration(cfg.Capture.DurationSeconds) * time.Second
	interval := time.Duration(cfg.Capture.IntervalSeconds) * time.Second

	log.Info().
		Dur("duration", duration).
		Dur("interval", interval).
		Str("platform", string(vendor)).
		Msg("Capture started")

	if err := session.Start(ctx, interval); err != nil {
		return fmt.Errorf("failed to start collection: %w", err)
	}

	session.Wait(ctx, duration)
	session.Stop()

	metadata.SetDuration(session.Elapsed())
	session.SaveResults()

	if err := generator.WriteHTML(cfg.Report.OutputDir); err != nil {
		return fmt.Errorf("failed to write HTML report: %w", err)
	}
	if cfg.Report.JSON {
		if err := generator.WriteJSON(cfg.Report.OutputDir); err != nil {
			return fmt.Errorf("failed to write JSON report: %w", err)
		}
	}

	log.Info().Str("output_dir", cfg.Report.OutputDir).Dur("elapsed", session.Elapsed()).Msg("Report saved")
	return nil
}
