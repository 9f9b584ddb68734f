package relay

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Prober periodically sweeps every discovered target with a health relay,
// keeping status snapshots and the last-probe gauge fresh.
type Prober struct {
	logger   *zap.Logger
	svc      *Service
	interval time.Duration
	timeout  time.Duration
	path     string
	stopCh   chan struct{}
}

// NewProber constructs the background sweep job. timeout bounds each
// individual probe, not the whole sweep; an empty path falls back on the
// default probe path.
func NewProber(logger *zap.Logger, svc *Service, interval, timeout time.Duration, path string) *Prober {
	return &Prober{
		logger:   logger,
		svc:      svc,
		interval: interval,
		timeout:  timeout,
		path:     path,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the sweep loop. The first sweep happens immediately so status
// snapshots exist before the first full interval elapses.
func (p *Prober) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("prober.started",
		zap.Duration("interval", p.interval),
		zap.Duration("probe_timeout", p.timeout))

	p.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			p.runOnce(ctx)
		case <-p.stopCh:
			p.logger.Info("prober.stopped (manual stop)")
			return
		case <-ctx.Done():
			p.logger.Info("prober.stopped (context canceled)")
			return
		}
	}
}

// Stop gracefully halts the prober.
func (p *Prober) Stop() {
	close(p.stopCh)
}

// runOnce executes one sweep over all discovered targets.
func (p *Prober) runOnce(ctx context.Context) {
	start := time.Now()

	targets, err := p.svc.Targets(ctx)
	if err != nil {
		p.logger.Error("prober.discovery_failed", zap.Error(err))
		return
	}
	if len(targets) == 0 {
		p.logger.Warn("prober.no_targets")
		return
	}

	healthy := 0
	for _, target := range targets {
		probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
		res, err := p.svc.Relay(probeCtx, Request{Target: target, Path: p.path})
		cancel()
		if err != nil {
			p.logger.Warn("prober.probe_failed",
				zap.String("target", target),
				zap.Error(err))
			continue
		}
		if res.StatusCode >= 200 && res.StatusCode < 300 {
			healthy++
		}
	}

	p.logger.Info("prober.sweep_complete",
		zap.Int("targets", len(targets)),
		zap.Int("healthy", healthy),
		zap.Duration("duration", time.Since(start)))
}
