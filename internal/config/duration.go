package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration with YAML marshal/unmarshal support.
// It accepts Go duration strings like "90m" or "2h30m", plus a whole number
// of days such as "30d".
type Duration struct {
	time.Duration
}

// ParseDuration parses a Go duration string or a "<n>d" day count.
func ParseDuration(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// UnmarshalYAML parses a duration string from YAML.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string (e.g. \"12h\", \"30d\"): %w", value.Line, err)
	}

	parsed, err := ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", value.Line, s, err)
	}

	d.Duration = parsed
	return nil
}

// MarshalYAML writes the duration as a human-readable string, in days when
// it is a whole number of them.
func (d Duration) MarshalYAML() (any, error) { //nolint:unparam // yaml.Marshaler interface requires error return
	const day = 24 * time.Hour
	if d.Duration > 0 && d.Duration%day == 0 {
		return fmt.Sprintf("%dd", d.Duration/day), nil
	}
	return d.Duration.String(), nil
}
