package probe

import (
	"context"

	"github.com/chosenoffset/procview/pkg/procview/decode"
)

// CPU is one processor record of /proc/cpuinfo. Keys missing on non-x86
// kernels are optional.
type CPU struct {
	Processor      uint16   `proc:"processor" json:"processor" yaml:"processor"`
	VendorID       string   `proc:"vendor_id,optional" json:"vendor_id" yaml:"vendor_id"`
	Family         uint16   `proc:"cpu family,optional" json:"cpu_family" yaml:"cpu_family"`
	Model          uint64   `proc:"model,optional" json:"model" yaml:"model"`
	ModelName      string   `proc:"model name,optional" json:"model_name" yaml:"model_name"`
	Stepping       uint16   `proc:"stepping,optional" json:"stepping" yaml:"stepping"`
	Microcode      string   `proc:"microcode,optional" json:"microcode" yaml:"microcode"`
	MHz            float32  `proc:"cpu MHz,optional" json:"cpu_mhz" yaml:"cpu_mhz"`
	CacheSize      uint64   `proc:"cache size,optional" json:"cache_size" yaml:"cache_size"`
	PhysicalID     uint16   `proc:"physical id,optional" json:"physical_id" yaml:"physical_id"`
	Siblings       uint16   `proc:"siblings,optional" json:"siblings" yaml:"siblings"`
	CoreID         uint16   `proc:"core id,optional" json:"core_id" yaml:"core_id"`
	Cores          uint16   `proc:"cpu cores,optional" json:"cpu_cores" yaml:"cpu_cores"`
	APICID         uint16   `proc:"apicid,optional" json:"apicid" yaml:"apicid"`
	InitialAPICID  uint16   `proc:"initial apicid,optional" json:"initial_apicid" yaml:"initial_apicid"`
	FPU            bool     `proc:"fpu,optional" json:"fpu" yaml:"fpu"`
	FPUException   bool     `proc:"fpu_exception,optional" json:"fpu_exception" yaml:"fpu_exception"`
	CPUIDLevel     uint16   `proc:"cpuid level,optional" json:"cpuid_level" yaml:"cpuid_level"`
	WP             bool     `proc:"wp,optional" json:"wp" yaml:"wp"`
	Flags          []string `proc:"flags,optional" json:"flags" yaml:"flags"`
	VMXFlags       []string `proc:"vmx flags,optional" json:"vmx_flags,omitempty" yaml:"vmx_flags,omitempty"`
	Bugs           []string `proc:"bugs,optional" json:"bugs" yaml:"bugs"`
	BogoMIPS       float32  `proc:"bogomips,optional" json:"bogomips" yaml:"bogomips"`
	CLFlushSize    uint16   `proc:"clflush size,optional" json:"clflush_size" yaml:"clflush_size"`
	CacheAlignment uint16   `proc:"cache_alignment,optional" json:"cache_alignment" yaml:"cache_alignment"`
	AddressSizes   string   `proc:"address sizes,optional" json:"address_sizes" yaml:"address_sizes"`
	PowerMgmt      string   `proc:"power management,optional" json:"power_management" yaml:"power_management"`
}

// CPUs decodes every processor record of /proc/cpuinfo.
func (fs *FS) CPUs(ctx context.Context) ([]CPU, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := fs.read("proc", "cpuinfo")
	if err != nil {
		return nil, &ProbeError{Probe: "cpu", Err: err}
	}
	cpus, err := decode.Decode[[]CPU]([]byte(text))
	if err != nil {
		return nil, &ProbeError{Probe: "cpu", Path: fs.path("proc", "cpuinfo"), Err: err}
	}
	fs.debug("read cpuinfo", "cpus", len(cpus))
	return cpus, nil
}
