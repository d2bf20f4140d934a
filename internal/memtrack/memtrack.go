// Package memtrack samples process and system memory and wraps request
// operations with before/after measurements.
package memtrack

import (
	"math"
	"os"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"inferd/pkg/types"
)

// Sample is one point-in-time memory reading.
type Sample struct {
	ProcessRSSMB      float64
	SystemUsedPercent float64
}

// Sampler reads current memory usage. The OS-backed implementation is
// OSSampler; tests substitute scripted fakes.
type Sampler interface {
	Sample() (Sample, error)
}

// OSSampler reads the current process RSS and system-wide memory via gopsutil.
type OSSampler struct {
	pid int32
}

// NewOSSampler returns a sampler bound to the current process.
func NewOSSampler() *OSSampler {
	return &OSSampler{pid: int32(os.Getpid())}
}

func (s *OSSampler) Sample() (Sample, error) {
	proc, err := process.NewProcess(s.pid)
	if err != nil {
		return Sample{}, err
	}
	mi, err := proc.MemoryInfo()
	if err != nil {
		return Sample{}, err
	}
	vm, err := mem.VirtualMemory()
	if err != nil {
		return Sample{}, err
	}
	return Sample{
		ProcessRSSMB:      Round2(float64(mi.RSS) / (1024 * 1024)),
		SystemUsedPercent: Round2(vm.UsedPercent),
	}, nil
}

// Tracker wraps operations with memory measurements. It holds no state
// beyond the duration of one wrapped call.
type Tracker struct {
	sampler Sampler
}

func New(s Sampler) *Tracker {
	return &Tracker{sampler: s}
}

// Measure returns a single current sample. Sampler failures degrade to a
// zero sample rather than failing the request.
func (t *Tracker) Measure() Sample {
	s, err := t.sampler.Sample()
	if err != nil {
		return Sample{}
	}
	return s
}

// Wrap captures a sample immediately before and after op. The after-sample
// is captured on the failure path too, so diagnostics can accompany errors.
func (t *Tracker) Wrap(op func() error) (before, after Sample, err error) {
	before = t.Measure()
	err = op()
	after = t.Measure()
	return before, after, err
}

// Report assembles the wire-level memory object from samples. The delta is
// included only when a before-sample exists.
func Report(before *Sample, after Sample) types.MemoryReport {
	r := types.MemoryReport{
		ProcessMemoryMB:     after.ProcessRSSMB,
		SystemMemoryPercent: after.SystemUsedPercent,
	}
	if before != nil {
		d := Round2(after.ProcessRSSMB - before.ProcessRSSMB)
		r.MemoryDeltaMB = &d
	}
	return r
}

// Round2 rounds to two decimal places for wire output.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
