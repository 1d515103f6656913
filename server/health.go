package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/chaos-io/rembg-tool/rembg"
)

const probeTimeout = 10 * time.Second

type HealthStatus struct {
	OK        bool      `json:"ok"`
	Backend   string    `json:"backend"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// Health 定时探测抠图后端，保存最近一次结果
type Health struct {
	backend   string
	pinger    rembg.Pinger
	scheduler *robfigcron.Cron

	mu     sync.RWMutex
	status HealthStatus
}

// NewHealth remover 不支持 Ping 时视为一直可用
func NewHealth(backend string, remover rembg.Remover) *Health {
	h := &Health{
		backend:   backend,
		scheduler: robfigcron.New(),
		status:    HealthStatus{OK: true, Backend: backend},
	}
	if p, ok := remover.(rembg.Pinger); ok {
		h.pinger = p
	}
	return h
}

// Start 先探测一次，然后按 cron 表达式周期探测
func (h *Health) Start(expr string) error {
	if _, err := h.scheduler.AddFunc(expr, func() { h.Probe(context.Background()) }); err != nil {
		return fmt.Errorf("invalid health cron %q: %w", expr, err)
	}
	h.Probe(context.Background())
	h.scheduler.Start()
	return nil
}

func (h *Health) Stop() {
	<-h.scheduler.Stop().Done()
}

func (h *Health) Probe(ctx context.Context) {
	st := HealthStatus{OK: true, Backend: h.backend, CheckedAt: time.Now()}
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(ctx, probeTimeout)
		defer cancel()
		if err := h.pinger.Ping(ctx); err != nil {
			st.OK = false
			st.Error = err.Error()
			slog.Warn("backend health check failed", "backend", h.backend, "error", err)
		}
	}

	h.mu.Lock()
	h.status = st
	h.mu.Unlock()
}

func (h *Health) Status() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status
}
