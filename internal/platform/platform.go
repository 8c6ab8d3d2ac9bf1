// Package platform holds the static per-vendor capture profiles. Everything
// that differs between the supported set-top-box SoCs (debugfs paths, CMA
// region naming, buddyinfo layout, optional features) lives here as data so
// the parsers and collectors stay vendor-agnostic.
package platform

import (
	"fmt"
	"os"
	"strings"
)

// Vendor identifies a supported SoC family.
type Vendor string

const (
	VendorAmlogic  Vendor = "amlogic"
	VendorRealtek  Vendor = "realtek"
	VendorBroadcom Vendor = "broadcom"
)

// ParseVendor converts a user-supplied platform name into a Vendor.
// Matching is case-insensitive so "AMLOGIC" (the legacy flag spelling)
// still works.
func ParseVendor(s string) (Vendor, error) {
	switch strings.ToLower(s) {
	case "amlogic":
		return VendorAmlogic, nil
	case "realtek":
		return VendorRealtek, nil
	case "broadcom":
		return VendorBroadcom, nil
	default:
		return "", fmt.Errorf("unsupported platform %q (supported: amlogic, realtek, broadcom)", s)
	}
}

// Paths are the kernel-exposed files each vendor-specific scanner reads.
// They are part of the profile so tests can point a scanner at a synthetic
// tree.
type Paths struct {
	// CmaDir is the debugfs directory containing one subdirectory per CMA
	// region, each with "count" and "used" page-count files.
	CmaDir string

	// GpuMemoryFile is the Mali GPU allocation table (Amlogic and Realtek).
	GpuMemoryFile string

	// DriDir is the DRM debugfs root whose "<tid>-<hex>/client" files carry
	// GPU allocations on Broadcom.
	DriDir string

	// DdrModeFile enables ("1") and disables ("0") DDR bandwidth monitoring.
	DdrModeFile string

	// DdrBandwidthFile reports the measured DDR bandwidth.
	DdrBandwidthFile string

	// BmemFile is Broadcom's BMEM region usage table.
	BmemFile string

	// CgroupMemoryDir is the memory cgroup hierarchy used for per-container
	// usage accounting.
	CgroupMemoryDir string
}

// Profile is the immutable per-vendor configuration selected once at startup.
type Profile struct {
	Vendor Vendor

	// CmaNames maps CMA debugfs directory names to the human-readable pool
	// names from the kernel DTS. A directory with no mapping is reported as
	// malformed input and skipped.
	CmaNames map[string]string

	// BuddyInfoColumns is the expected whitespace-separated column count of a
	// /proc/buddyinfo zone line on this platform. Lines with any other count
	// are skipped.
	BuddyInfoColumns int

	// Capability flags, fixed per vendor.
	SupportsBandwidth bool
	SupportsGPU       bool
	SupportsBMEM      bool

	// PageSize converts page-count metrics to bytes.
	PageSize int

	Paths Paths
}

func defaultPaths() Paths {
	return Paths{
		CmaDir:           "/sys/kernel/debug/cma",
		GpuMemoryFile:    "/sys/kernel/debug/mali0/gpu_memory",
		DriDir:           "/sys/kernel/debug/dri/0",
		DdrModeFile:      "/sys/class/aml_ddr/mode",
		DdrBandwidthFile: "/sys/class/aml_ddr/bandwidth",
		BmemFile:         "/proc/brcm/core",
		CgroupMemoryDir:  "/sys/fs/cgroup/memory",
	}
}

// ProfileFor returns the capture profile for the given vendor.
func ProfileFor(vendor Vendor) Profile {
	p := Profile{
		Vendor:   vendor,
		PageSize: os.Getpagesize(),
		Paths:    defaultPaths(),
	}

	switch vendor {
	case VendorAmlogic:
		// Region names per the Amlogic kernel DTS. These will likely need
		// updating for a different board revision.
		p.CmaNames = map[string]string{
			"cma-0": "secmon_reserved",
			"cma-1": "logo_reserved",
			"cma-2": "codec_mm_cma",
			"cma-3": "ion_cma_reserved",
			"cma-4": "vdin1_cma_reserved",
			"cma-5": "demod_cma_reserved",
			"cma-6": "kernel_reserved",
		}
		p.BuddyInfoColumns = 15
		p.SupportsBandwidth = true
		p.SupportsGPU = true

	case VendorRealtek:
		p.CmaNames = map[string]string{
			"cma-0": "cma-0",
			"cma-1": "cma-1",
			"cma-2": "cma-2",
			"cma-3": "cma-3",
			"cma-4": "cma-4",
			"cma-5": "cma-5",
			"cma-6": "cma-6",
			"cma-7": "cma-7",
			"cma-8": "cma-8",
		}
		p.BuddyInfoColumns = 17
		p.SupportsGPU = true

	case VendorBroadcom:
		p.CmaNames = map[string]string{
			"cma-WiFi@4C0000": "cma-WiFi@4C0000",
			"cma-reserved":    "cma-reserved",
		}
		p.BuddyInfoColumns = 15
		p.SupportsGPU = true
		p.SupportsBMEM = true
	}

	return p
}
