// Package profiling wires runtime/pprof and a debug HTTP endpoint into
// gbuf-view. CPU and heap profiles cover one viewer run; the endpoint
// serves expvar metrics at /debug/vars and pprof at /debug/pprof/.
package profiling

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"runtime"
	rpprof "runtime/pprof"
	"sync"
	"time"
)

// ErrRunning is returned by Start on a running profiler.
var ErrRunning = errors.New("profiler already running")

// ErrNotRunning is returned by Stop on a stopped profiler.
var ErrNotRunning = errors.New("profiler not running")

// Config selects what the profiler records.
type Config struct {
	// CPUProfilePath receives a CPU profile covering Start to Stop.
	CPUProfilePath string
	// MemProfilePath receives a heap profile written at Stop.
	MemProfilePath string
	// DebugAddr serves /debug/vars and /debug/pprof/ while running.
	DebugAddr string
}

// Enabled reports whether any output is configured.
func (c Config) Enabled() bool {
	return c.CPUProfilePath != "" || c.MemProfilePath != "" || c.DebugAddr != ""
}

// Profiler records profiles for one run. Safe for concurrent use.
type Profiler struct {
	cfg Config

	mu      sync.Mutex
	running bool
	cpuFile *os.File
	server  *http.Server
	addr    net.Addr
}

// New returns a stopped Profiler.
func New(cfg Config) *Profiler {
	return &Profiler{cfg: cfg}
}

// Start begins CPU profiling and opens the debug endpoint.
func (p *Profiler) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrRunning
	}

	if p.cfg.CPUProfilePath != "" {
		f, err := os.Create(p.cfg.CPUProfilePath)
		if err != nil {
			return fmt.Errorf("create CPU profile: %w", err)
		}
		if err := rpprof.StartCPUProfile(f); err != nil {
			f.Close()
			return fmt.Errorf("start CPU profile: %w", err)
		}
		p.cpuFile = f
	}

	if p.cfg.DebugAddr != "" {
		ln, err := net.Listen("tcp", p.cfg.DebugAddr)
		if err != nil {
			p.stopCPU()
			return fmt.Errorf("debug listener: %w", err)
		}
		p.addr = ln.Addr()
		p.server = &http.Server{Handler: DebugMux(), ReadHeaderTimeout: 5 * time.Second}
		go p.server.Serve(ln)
	}

	p.running = true
	return nil
}

// Stop ends CPU profiling, writes the heap profile and closes the
// debug endpoint. All failures are joined.
func (p *Profiler) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrNotRunning
	}
	p.running = false

	var errs []error
	if err := p.stopCPU(); err != nil {
		errs = append(errs, err)
	}
	if p.cfg.MemProfilePath != "" {
		if err := WriteHeapProfile(p.cfg.MemProfilePath); err != nil {
			errs = append(errs, err)
		}
	}
	if p.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := p.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("debug server: %w", err))
		}
		cancel()
		p.server, p.addr = nil, nil
	}
	return errors.Join(errs...)
}

func (p *Profiler) stopCPU() error {
	if p.cpuFile == nil {
		return nil
	}
	rpprof.StopCPUProfile()
	err := p.cpuFile.Close()
	p.cpuFile = nil
	if err != nil {
		return fmt.Errorf("close CPU profile: %w", err)
	}
	return nil
}

// IsRunning reports whether Start has been called without Stop.
func (p *Profiler) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// DebugAddr returns the bound address of the debug endpoint, or nil.
func (p *Profiler) DebugAddr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addr
}

// DebugMux returns a handler serving expvar and pprof.
func DebugMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// WriteHeapProfile forces a collection and writes a heap profile to path.
func WriteHeapProfile(path string) error {
	runtime.GC()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create heap profile: %w", err)
	}
	if err := rpprof.WriteHeapProfile(f); err != nil {
		f.Close()
		return fmt.Errorf("write heap profile: %w", err)
	}
	return f.Close()
}
