// Package profile controls pprof profiling sessions for CLI runs. Large
// table conversions are CPU and allocation heavy; the profiles gathered
// here feed the usual pprof tooling.
package profile

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/spf13/pflag"
)

// Config holds profiling configuration. A zero-value Config has all
// profiles disabled.
type Config struct {
	// Output paths (empty = disabled).
	CPUProfile  string
	HeapProfile string

	// MemProfileRate configures the allocation sampling rate.
	MemProfileRate int
}

// NewConfig creates a new [Config] with all profiles disabled.
// Use [Config.RegisterFlags] to add CLI flags, or set paths directly.
func NewConfig() *Config {
	return &Config{}
}

// RegisterFlags adds profiling flags to the given [*pflag.FlagSet].
func (c *Config) RegisterFlags(flags *pflag.FlagSet) {
	flags.StringVar(&c.CPUProfile, "cpu-profile", "", "write CPU profile to file")
	flags.StringVar(&c.HeapProfile, "heap-profile", "", "write heap profile to file")
	flags.IntVar(&c.MemProfileRate, "mem-profile-rate", 0, "memory profiling rate (0 = default)")
}

// NewProfiler creates a [Profiler] using this Config.
func (c *Config) NewProfiler() *Profiler {
	return &Profiler{Config: *c}
}

// Profiler controls the lifecycle of one profiling session.
//
// Call [Profiler.Start] before processing and [Profiler.Stop] afterwards
// to write all enabled profiles.
type Profiler struct {
	cpuFile *os.File
	Config
}

// Start configures runtime profiling rates and starts CPU profiling if
// enabled.
func (p *Profiler) Start() error {
	if p.MemProfileRate > 0 {
		runtime.MemProfileRate = p.MemProfileRate
	}

	if p.CPUProfile == "" {
		return nil
	}

	f, err := os.Create(p.CPUProfile) //nolint:gosec // Profile path from CLI flag is expected.
	if err != nil {
		return fmt.Errorf("creating CPU profile: %w", err)
	}

	p.cpuFile = f

	err = pprof.StartCPUProfile(f)
	if err != nil {
		_ = p.cpuFile.Close()
		p.cpuFile = nil

		return fmt.Errorf("starting CPU profile: %w", err)
	}

	return nil
}

// Stop stops CPU profiling and writes the heap profile if enabled.
func (p *Profiler) Stop() error {
	if p.cpuFile != nil {
		pprof.StopCPUProfile()

		err := p.cpuFile.Close()
		if err != nil {
			return fmt.Errorf("closing CPU profile: %w", err)
		}

		p.cpuFile = nil
	}

	if p.HeapProfile == "" {
		return nil
	}

	f, err := os.Create(p.HeapProfile) //nolint:gosec // Profile path from CLI flag is expected.
	if err != nil {
		return fmt.Errorf("creating heap profile: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	runtime.GC()

	err = pprof.Lookup("heap").WriteTo(f, 0)
	if err != nil {
		return fmt.Errorf("writing heap profile: %w", err)
	}

	return nil
}
