package server

import (
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/valyala/fasthttp"
)

type statusResponse struct {
	Status     string  `json:"status"`
	Uptime     string  `json:"uptime"`
	Goroutines int     `json:"goroutines"`
	HeapAlloc  string  `json:"heap_alloc"`
	ProcessRSS string  `json:"process_rss,omitempty"`
	CPUPercent float64 `json:"cpu_percent"`

	Praesidien int `json:"praesidien"`
	Reviere    int `json:"reviere"`
	Sessions   int `json:"sessions"`
}

var (
	procOnce sync.Once
	proc     *process.Process
)

func selfProcess() *process.Process {
	procOnce.Do(func() {
		proc, _ = process.NewProcess(int32(os.Getpid()))
	})
	return proc
}

func (s *server) StatusHandler(ctx *fasthttp.RequestCtx) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := statusResponse{
		Status:     "ok",
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  humanize.IBytes(memStats.HeapAlloc),
	}

	if p := selfProcess(); p != nil {
		if memInfo, err := p.MemoryInfo(); err == nil && memInfo != nil {
			resp.ProcessRSS = humanize.IBytes(memInfo.RSS)
		}
		if cpuPercent, err := p.CPUPercent(); err == nil {
			resp.CPUPercent = cpuPercent
		}
	}

	if s.deps.Stations != nil {
		resp.Praesidien, resp.Reviere = s.deps.Stations.Counts()
	}
	if s.deps.Sessions != nil {
		resp.Sessions = s.deps.Sessions.Len()
	}

	writeJSON(ctx, http.StatusOK, resp)
}
