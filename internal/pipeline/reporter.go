package pipeline

import (
	"fmt"
	"io"
	"log/slog"
)

// Reporter writes the program's diagnostics. Every line is prefixed with the
// program name except the bare usage banner.
type Reporter struct {
	Prog   string
	Out    io.Writer
	Logger *slog.Logger
}

// Usage prints the usage banner.
func (r *Reporter) Usage() {
	fmt.Fprintf(r.Out, "Usage:\n%s [-p prefix] command [arg]...\n", r.Prog)
}

// Warn reports a condition that does not stop the pipeline.
func (r *Reporter) Warn(msg string, err error) {
	fmt.Fprintf(r.Out, "%s: warning: %s: %v\n", r.Prog, msg, err)
	if r.Logger != nil {
		r.Logger.Warn(msg, "error", err)
	}
}

// Fatal reports err. Usage errors are followed by the usage banner.
func (r *Reporter) Fatal(err error) {
	fmt.Fprintf(r.Out, "%s: %v\n", r.Prog, err)
	kind := KindOf(err)
	if r.Logger != nil {
		r.Logger.Error("fatal", "kind", kind.String(), "error", err)
	}
	if kind == KindUsage {
		r.Usage()
	}
}
