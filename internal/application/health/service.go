package health

import (
	"context"
	"runtime"
	"time"
)

// Pinger is satisfied by every store backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CollectResult is the body of /health/json.
type CollectResult struct {
	Status       string               `json:"status"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Dependencies map[string]DepStatus `json:"dependencies"`
}

type RuntimeInfo struct {
	UptimeSeconds int64      `json:"uptimeSeconds"`
	Memory        MemoryInfo `json:"memory"`
	Goroutines    int        `json:"goroutines"`
	Platform      string     `json:"platform"`
	GoVersion     string     `json:"goVersion"`
}

type MemoryInfo struct {
	AllocMB  int `json:"allocMb"`
	HeapInMB int `json:"heapInUseMb"`
}

type DepStatus struct {
	Status  string `json:"status"`
	Backend string `json:"backend,omitempty"`
	PingMs  *int64 `json:"pingMs"`
}

const pingTimeout = 2 * time.Second

// CollectHealth pings the store and reports process runtime data. Status is
// "ok" when the store answers and "issue" otherwise.
func CollectHealth(ctx context.Context, backend string, store Pinger, startedAt time.Time) CollectResult {
	result := CollectResult{Dependencies: make(map[string]DepStatus)}

	storeStatus := "disconnected"
	var pingMs *int64
	if store != nil {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		start := time.Now()
		err := store.Ping(pctx)
		cancel()
		if err == nil {
			ms := time.Since(start).Milliseconds()
			pingMs = &ms
			storeStatus = "connected"
		} else {
			storeStatus = "error"
		}
	}
	result.Dependencies["store"] = DepStatus{Status: storeStatus, Backend: backend, PingMs: pingMs}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := int64(time.Since(startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}
	result.Runtime = RuntimeInfo{
		UptimeSeconds: uptime,
		Memory:        MemoryInfo{AllocMB: int(m.Alloc / 1024 / 1024), HeapInMB: int(m.HeapInuse / 1024 / 1024)},
		Goroutines:    runtime.NumGoroutine(),
		Platform:      runtime.GOOS + " (" + runtime.GOARCH + ")",
		GoVersion:     runtime.Version(),
	}

	if storeStatus == "connected" {
		result.Status = "ok"
	} else {
		result.Status = "issue"
	}
	return result
}
