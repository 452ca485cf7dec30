//go:build linux

package fdaudit

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// List returns the open descriptors of the current process by reading
// /proc/self/fd. The descriptor used to read the directory itself is
// omitted. Returns nil if /proc is unavailable.
func List() []Descriptor {
	dir, err := os.Open("/proc/self/fd")
	if err != nil {
		return nil
	}
	defer dir.Close() //nolint:errcheck // best-effort

	self := int(dir.Fd())
	names, err := dir.Readdirnames(-1)
	if err != nil {
		return nil
	}

	out := make([]Descriptor, 0, len(names))
	for _, name := range names {
		fd, err := strconv.Atoi(name)
		if err != nil || fd == self {
			continue
		}
		target, err := os.Readlink(filepath.Join("/proc/self/fd", name))
		if err != nil {
			// Closed between listing and readlink.
			continue
		}
		out = append(out, Descriptor{FD: fd, Target: target})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FD < out[j].FD })
	return out
}

// Lookup returns what fd refers to, or "" if it is not open.
func Lookup(fd int) string {
	target, err := os.Readlink(filepath.Join("/proc/self/fd", strconv.Itoa(fd)))
	if err != nil {
		return ""
	}
	return target
}
