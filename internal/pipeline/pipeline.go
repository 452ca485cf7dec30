/*
Package pipeline runs one invocation from backing-store allocation to
process replacement.

The stages run strictly in order and only move forward:

	allocating -> transferring -> splicing -> replacing

Any failure ends the run with an *Error whose Kind selects the exit status.
Nothing is retried: the target has not started yet, so there is nothing
to roll back, and a second attempt could hand the target partial data.
*/
package pipeline

import (
	"errors"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/ushineko/seekpipe/internal/backing"
	"github.com/ushineko/seekpipe/internal/fdaudit"
	"github.com/ushineko/seekpipe/internal/handoff"
	"github.com/ushineko/seekpipe/internal/journal"
	"github.com/ushineko/seekpipe/internal/transfer"
)

// Stage names a step of the pipeline, for logging.
type Stage string

const (
	StageAllocating   Stage = "allocating"
	StageTransferring Stage = "transferring"
	StageSplicing     Stage = "splicing"
	StageReplacing    Stage = "replacing"
)

// Invocation is the parsed command line.
type Invocation struct {
	Prefix  string
	Command []string
}

// Recorder receives one entry per run. *journal.Journal satisfies it.
type Recorder interface {
	Record(e journal.Entry) error
}

// Runner holds everything a run needs. Only Reporter and Engine are
// required; the rest default to the real process resources.
type Runner struct {
	Reporter *Reporter
	Logger   *slog.Logger
	Engine   *transfer.Engine

	// Stdin is the stream to buffer. Defaults to os.Stdin.
	Stdin *os.File
	// Slot receives the backing store. Defaults to handoff.StdinSlot.
	Slot *int
	// Env is passed to the replaced program. Defaults to os.Environ().
	Env []string
	// Exec replaces the process. Defaults to handoff.Exec.
	Exec func(path string, argv, env []string) error

	// Recorder, when set, is given an entry before exec or on failure.
	Recorder Recorder
	// BeforeExec runs right before the process image is replaced, after
	// the last diagnostic that can be logged.
	BeforeExec func()
}

// Run executes the invocation. On success it does not return unless Exec
// was replaced by a stub, in which case it returns nil.
func (r *Runner) Run(inv Invocation) (err error) {
	log := r.logger()
	started := time.Now()
	var res transfer.Result
	recorded := false

	defer func() {
		if err != nil && !recorded {
			r.record(inv, started, res, KindOf(err).String())
		}
	}()

	if len(inv.Command) == 0 {
		return Errorf(KindUsage, "missing command")
	}

	log.Debug("stage", "stage", StageAllocating, "prefix", inv.Prefix)
	store, err := backing.Allocate(inv.Prefix)
	if err != nil {
		return fail(KindCantCreate, "unable to create temp file", err)
	}
	defer func() {
		// Only the slot survives; anything still owned is released.
		if cerr := store.Close(); cerr != nil {
			r.Reporter.Warn("release temp file", cerr)
		}
	}()

	if err := store.Unlink(); err != nil {
		r.Reporter.Warn("unlink of temp file failed", err)
	}
	log.Debug("backing store ready", "path", store.Path, "unlinked", store.Unlinked())

	log.Debug("stage", "stage", StageTransferring)
	res, err = r.Engine.Transfer(store.Writer, r.stdin())
	if err != nil {
		return fail(KindIO, "transfer error", err)
	}
	if err := store.CloseWriter(); err != nil {
		r.Reporter.Warn("unable to close temp file", err)
	}

	log.Debug("stage", "stage", StageSplicing, "slot", r.slot())
	held, err := r.splice(store)
	if err != nil {
		return err
	}
	// A released reader must not be finalized before exec.
	defer runtime.KeepAlive(held)

	log.Debug("stage", "stage", StageReplacing, "command", inv.Command)
	path, err := handoff.LookPath(inv.Command[0])
	if err != nil {
		return &Error{Kind: KindOS, Err: err}
	}

	log.Debug("descriptors before exec", "fds", fdaudit.Strings(fdaudit.List()), "path", path)
	r.record(inv, started, res, journal.OutcomeExec)
	recorded = true
	if r.BeforeExec != nil {
		r.BeforeExec()
	}

	if err := r.exec()(path, inv.Command, r.env()); err != nil {
		return &Error{Kind: KindOS, Err: err}
	}
	return nil
}

// splice overlays the store's reader onto the slot and drops the redundant
// handle. When the reader already is the slot it is returned instead.
func (r *Runner) splice(store *backing.Store) (*os.File, error) {
	slot := r.slot()
	fd := int(store.Reader.Fd())

	if err := handoff.Overlay(fd, slot); err != nil {
		return nil, fail(KindOS, "unable to replace stdin", err)
	}

	if fd == slot {
		return store.ReleaseReader(), nil
	}
	if err := store.CloseReader(); err != nil {
		r.Reporter.Warn("unable to close temp file fd", err)
	}
	return nil, nil
}

func (r *Runner) record(inv Invocation, started time.Time, res transfer.Result, outcome string) {
	if r.Recorder == nil {
		return
	}
	err := r.Recorder.Record(journal.Entry{
		Started: started,
		Prefix:  inv.Prefix,
		Command: strings.Join(inv.Command, " "),
		Backend: res.Backend,
		Bytes:   res.Bytes,
		Elapsed: res.Elapsed,
		Outcome: outcome,
	})
	if err != nil {
		r.Reporter.Warn("journal", err)
	}
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func (r *Runner) stdin() *os.File {
	if r.Stdin != nil {
		return r.Stdin
	}
	return os.Stdin
}

func (r *Runner) slot() int {
	if r.Slot != nil {
		return *r.Slot
	}
	return handoff.StdinSlot
}

func (r *Runner) env() []string {
	if r.Env != nil {
		return r.Env
	}
	return os.Environ()
}

func (r *Runner) exec() func(string, []string, []string) error {
	if r.Exec != nil {
		return r.Exec
	}
	return handoff.Exec
}

// IsUsage reports whether err is a usage error.
func IsUsage(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == KindUsage
}
