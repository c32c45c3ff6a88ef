package system

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	httptransport "bottleswap-server/internal/transport/http"

	"bottleswap-server/internal/domain/session/store"
	"bottleswap-server/internal/platform/logging"
)

// StatusData reports process and host health.
type StatusData struct {
	Uptime        string         `json:"uptime"`
	Goroutines    int            `json:"goroutines"`
	CPUPercent    float64        `json:"cpu_percent"`
	MemoryUsedPct float64        `json:"memory_used_pct"`
	MemoryUsedMB  uint64         `json:"memory_used_mb"`
	HostUptime    uint64         `json:"host_uptime_seconds"`
	Sessions      map[string]any `json:"sessions,omitempty"`
}

// Service exposes the system status endpoint.
type Service struct {
	logger   *logging.Logger
	sessions store.Store
	started  time.Time
}

func NewService(logger *logging.Logger, sessions store.Store) *Service {
	return &Service{logger: logger, sessions: sessions, started: time.Now()}
}

// Register mounts the status route.
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	router.GET("/system/status", s.handleStatus)
	return nil
}

func (s *Service) handleStatus(c *gin.Context) {
	data := StatusData{
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		data.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		data.MemoryUsedPct = vm.UsedPercent
		data.MemoryUsedMB = vm.Used / 1024 / 1024
	}
	if uptime, err := host.Uptime(); err == nil {
		data.HostUptime = uptime
	}

	if s.sessions != nil {
		if stats, err := s.sessions.Stats(c.Request.Context()); err == nil {
			data.Sessions = stats
		}
	}

	httptransport.RespondSuccess(c, http.StatusOK, data, "")
}
