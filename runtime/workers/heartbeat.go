package workers

import (
	"context"
	"log/slog"
	"os"
	"sodeclick-chat/observability"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/process"
)

// HeartbeatWorker periodically logs the health of the server process
// together with the presence counts.
type HeartbeatWorker struct {
	log      *slog.Logger
	presence observability.PresenceCounter
	cpu      prometheus.Gauge
	interval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, presence observability.PresenceCounter,
	cpu prometheus.Gauge, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{
		log:      log,
		presence: presence,
		cpu:      cpu,
		interval: interval,
	}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping heartbeat")
			return nil
		case <-ticker.C:
			w.beat(p)
		}
	}
}

func (w *HeartbeatWorker) beat(p *process.Process) {
	users, connections, addresses := w.presence.Counts()
	rss, cpu, status, err := selfStats(p)
	if err != nil {
		w.log.Error("Failed to collect self stats", "error", err)
		return
	}
	w.cpu.Set(cpu)
	w.log.Info("Heartbeat",
		"pid", p.Pid,
		"status", status,
		"cpu_percent", cpu,
		"rss", humanize.Bytes(rss),
		"online_users", users,
		"connections", connections,
		"addresses", addresses)
}

// selfStats reads memory, CPU and OS status of the given process.
func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}
	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
