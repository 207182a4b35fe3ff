package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/Dicklesworthstone/activity_monitor/internal/model"
)

// MountFilter decides which mounts count as physical filesystems.
type MountFilter struct {
	DenyFSTypes    map[string]bool
	DenyPathPrefix []string
}

// DefaultMountFilter excludes pseudo and virtual filesystems.
func DefaultMountFilter() MountFilter {
	types := []string{
		"proc", "sysfs", "devpts", "tmpfs", "devtmpfs", "debugfs",
		"cgroup", "cgroup2", "securityfs", "pstore", "bpf", "tracefs",
		"mqueue", "hugetlbfs", "configfs", "fusectl", "autofs", "overlay",
		"squashfs", "nsfs", "ramfs", "binfmt_misc", "efivarfs",
	}
	deny := make(map[string]bool, len(types))
	for _, t := range types {
		deny[t] = true
	}
	return MountFilter{
		DenyFSTypes:    deny,
		DenyPathPrefix: []string{"/sys", "/proc", "/dev", "/run", "/snap"},
	}
}

// Allow reports whether the mount should be listed.
func (f MountFilter) Allow(fstype, mountPoint string) bool {
	if f.DenyFSTypes[fstype] {
		return false
	}
	for _, prefix := range f.DenyPathPrefix {
		if mountPoint == prefix || strings.HasPrefix(mountPoint, prefix+"/") {
			return false
		}
	}
	return true
}

// Disks lists physical mounts with space usage and since-boot read latency.
// A mount whose usage cannot be read is skipped.
func (h *Host) Disks(ctx context.Context) ([]model.Disk, error) {
	parts, err := disk.PartitionsWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("%w: partitions: %v", ErrSourceUnavailable, err)
	}

	var disks []model.Disk
	seen := make(map[string]bool)
	for _, p := range parts {
		if seen[p.Mountpoint] || !h.Filter.Allow(p.Fstype, p.Mountpoint) {
			continue
		}
		seen[p.Mountpoint] = true

		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			h.Logger.Debug("skipping mount", "mount", p.Mountpoint,
				"err", fmt.Errorf("%w: %v", ErrEntryVanished, err))
			continue
		}
		d := model.Disk{
			Device:        p.Device,
			MountPoint:    p.Mountpoint,
			FSType:        p.Fstype,
			TotalKB:       usage.Total / 1024,
			FreeKB:        usage.Free / 1024,
			UsedKB:        usage.Used / 1024,
			ReadLatencyMs: -1,
		}
		d.PercentUsed = percent(d.UsedKB, d.TotalKB)
		disks = append(disks, d)
	}

	counters, err := disk.IOCountersWithContext(ctx)
	if err != nil {
		h.Logger.Debug("disk io counters unavailable", "err", err)
		return disks, nil
	}
	applyIOCounters(disks, counters)
	return disks, nil
}

// applyIOCounters fills latency and op counts for disks whose device name
// matches a diskstats entry.
func applyIOCounters(disks []model.Disk, counters map[string]disk.IOCountersStat) {
	for i := range disks {
		st, ok := counters[kernelName(disks[i].Device)]
		if !ok {
			continue
		}
		if st.ReadCount > 0 {
			disks[i].ReadLatencyMs = float64(st.ReadTime) / float64(st.ReadCount)
		}
		disks[i].IOOpsSinceBoot = st.ReadCount + st.WriteCount
	}
}

// kernelName maps a mount device to its diskstats name. Device-mapper and
// LVM paths are symlinks (/dev/mapper/vg-root -> /dev/dm-0).
func kernelName(device string) string {
	if resolved, err := filepath.EvalSymlinks(device); err == nil {
		return filepath.Base(resolved)
	}
	return filepath.Base(device)
}
