/*
Package fdaudit lists the descriptors a process holds open.

The pipeline logs the list right before exec so a leaked handle shows up
next to the descriptor that was meant to be inherited.
*/
package fdaudit

import "fmt"

// Descriptor is one open descriptor and what it refers to.
type Descriptor struct {
	FD     int    `json:"fd"`
	Target string `json:"target"`
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%d->%s", d.FD, d.Target)
}

// Strings renders descriptors compactly for log attributes.
func Strings(ds []Descriptor) []string {
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = d.String()
	}
	return out
}
