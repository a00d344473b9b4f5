// Package platform reports the CPU vendor and feature word the kernel prints at boot.
package platform

import (
	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sys/cpu"
)

// DefaultMemoryKB is reported when no memory size is configured.
const DefaultMemoryKB = 64 * 1024

// Feature bits, at their CPUID leaf 1 EDX positions.
const (
	FeatureFPU  uint32 = 1 << 0
	FeatureTSC  uint32 = 1 << 4
	FeatureCX8  uint32 = 1 << 8
	FeatureCMOV uint32 = 1 << 15
	FeatureMMX  uint32 = 1 << 23
	FeatureSSE  uint32 = 1 << 25
	FeatureSSE2 uint32 = 1 << 26
	FeatureHTT  uint32 = 1 << 28
)

// Info is the hardware description read once at boot.
type Info struct {
	Vendor   string `json:"cpu_vendor"`
	Features uint32 `json:"cpu_features"`
	MemoryKB uint32 `json:"memory_kb"`
}

// Has reports whether every bit of f is set.
func (i Info) Has(f uint32) bool { return i.Features&f == f }

// Probe reads platform facts. Implementations must not block.
type Probe interface {
	Detect() Info
}

// HostProbe reads the running CPU.
type HostProbe struct {
	MemoryKB uint32
}

// NewHostProbe returns a probe reporting memoryKB, or DefaultMemoryKB when zero.
func NewHostProbe(memoryKB uint32) *HostProbe {
	if memoryKB == 0 {
		memoryKB = DefaultMemoryKB
	}
	return &HostProbe{MemoryKB: memoryKB}
}

// Detect returns the vendor identification string (for example "GenuineIntel"; empty
// on non-x86 hosts) and the feature word.
func (p *HostProbe) Detect() Info {
	return Info{
		Vendor:   vendorString(),
		Features: featureWord(),
		MemoryKB: p.MemoryKB,
	}
}

func vendorString() string {
	v := cpuid.CPU.VendorString
	if len(v) > 12 {
		v = v[:12]
	}
	return v
}

// featureWord rebuilds the leaf-1 EDX word from the detected feature set; neither cpuid
// library exposes the raw register. Two bits are approximations: TSC, which has no flag
// of its own, is set for any CPU with RDTSCP or SSE (every SSE part implements TSC), and
// HTT is only set when the CPU also runs more than one thread per core.
func featureWord() uint32 {
	var w uint32
	set := func(ok bool, bit uint32) {
		if ok {
			w |= bit
		}
	}
	set(cpuid.CPU.Supports(cpuid.X87), FeatureFPU)
	set(cpuid.CPU.Supports(cpuid.RDTSCP) || cpuid.CPU.Supports(cpuid.SSE) || cpu.X86.HasSSE2, FeatureTSC)
	set(cpuid.CPU.Supports(cpuid.CMPXCHG8), FeatureCX8)
	set(cpuid.CPU.Supports(cpuid.CMOV), FeatureCMOV)
	set(cpuid.CPU.Supports(cpuid.MMX), FeatureMMX)
	set(cpu.X86.HasSSE2 || cpuid.CPU.Supports(cpuid.SSE), FeatureSSE)
	set(cpu.X86.HasSSE2, FeatureSSE2)
	set(cpuid.CPU.Supports(cpuid.HTT), FeatureHTT)
	return w
}

// StaticProbe returns a fixed Info.
type StaticProbe Info

// Detect returns the fixed Info.
func (p StaticProbe) Detect() Info { return Info(p) }
