package manager

import (
	"errors"

	"github.com/prometheus/procfs"
)

const (
	KiB int64 = 1 << 10
	GiB int64 = 1 << 30
)

// Tier is a coarse bucket of host memory used to size the model runtime.
type Tier string

const (
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
)

// Budget is the resource envelope derived from a Tier.
type Budget struct {
	Tier           Tier
	CeilingBytes   int64 // largest model file accepted
	ContextSize    int   // runtime context window, in tokens
	AvailableBytes int64 // reading the budget was derived from; 0 if unknown
}

// HostMemory reports currently available system memory.
type HostMemory interface {
	AvailableBytes() (int64, error)
}

// BudgetFor maps available memory onto a tier.
func BudgetFor(available int64) Budget {
	switch {
	case available > 8*GiB:
		return Budget{Tier: TierA, CeilingBytes: 4 * GiB, ContextSize: 4096, AvailableBytes: available}
	case available > 4*GiB:
		return Budget{Tier: TierB, CeilingBytes: 2 * GiB, ContextSize: 2048, AvailableBytes: available}
	default:
		return Budget{Tier: TierC, CeilingBytes: 1 * GiB, ContextSize: 1024, AvailableBytes: available}
	}
}

// DetectBudget reads h and returns the matching budget. An unreadable or
// missing reading falls back to the smallest tier.
func DetectBudget(h HostMemory) Budget {
	if h == nil {
		return BudgetFor(0)
	}
	n, err := h.AvailableBytes()
	if err != nil || n <= 0 {
		return BudgetFor(0)
	}
	return BudgetFor(n)
}

// ProcMemory reads MemAvailable from /proc/meminfo.
type ProcMemory struct {
	fs procfs.FS
}

// NewProcMemory opens the proc filesystem at mountPoint (procfs.DefaultMountPoint
// when empty).
func NewProcMemory(mountPoint string) (*ProcMemory, error) {
	if mountPoint == "" {
		mountPoint = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, err
	}
	return &ProcMemory{fs: fs}, nil
}

func (p *ProcMemory) AvailableBytes() (int64, error) {
	mi, err := p.fs.Meminfo()
	if err != nil {
		return 0, err
	}
	if mi.MemAvailable == nil {
		return 0, errors.New("meminfo: MemAvailable not reported")
	}
	return int64(*mi.MemAvailable) * KiB, nil
}

// staticMemory is a fixed reading, used when /proc is unavailable and in tests.
type staticMemory struct {
	n   int64
	err error
}

func (s staticMemory) AvailableBytes() (int64, error) { return s.n, s.err }

// FixedMemory returns a HostMemory that always reports n bytes.
func FixedMemory(n int64) HostMemory { return staticMemory{n: n} }
