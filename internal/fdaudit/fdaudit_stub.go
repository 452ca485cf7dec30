//go:build !linux

package fdaudit

// List is not supported on this platform.
func List() []Descriptor { return nil }

// Lookup is not supported on this platform.
func Lookup(int) string { return "" }
