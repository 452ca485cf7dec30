/*
Package backing allocates the temporary file that materializes standard
input for the target program.

A store is created under a path prefix with an exclusive create, so two
invocations sharing a prefix can never end up with the same file. The same
path is then opened a second time read-only; that reader is what eventually
lands on the standard-input slot. Once both handles exist the name is no
longer needed and is unlinked, leaving the kernel to reclaim the storage
when the last descriptor goes away.
*/
package backing

import (
	"errors"
	"fmt"
	"os"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// DefaultPrefix is used when neither the config file nor the command line
// names one.
const DefaultPrefix = "/tmp/sp"

const (
	// SuffixLen is the length of the random part appended to the prefix.
	SuffixLen = 6
	// suffixAlphabet mirrors the character set mkstemp draws from.
	suffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// maxAttempts bounds the collision loop.
	maxAttempts = 10000
)

// ErrExhausted is returned when every generated name already existed.
var ErrExhausted = errors.New("backing: unique name space exhausted")

// Store is a freshly created backing file with independent write and read
// handles. A nil handle has been closed or handed off.
type Store struct {
	Path   string
	Writer *os.File
	Reader *os.File

	unlinked bool
}

// Allocate creates a new backing store whose name is prefix followed by
// SuffixLen random characters. A prefix ending in a path separator places
// the file inside that directory.
func Allocate(prefix string) (*Store, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	w, err := createUnique(prefix)
	if err != nil {
		return nil, err
	}

	r, err := os.Open(w.Name())
	if err != nil {
		_ = w.Close()
		_ = os.Remove(w.Name())
		return nil, fmt.Errorf("open %s for reading: %w", w.Name(), err)
	}

	return &Store{Path: w.Name(), Writer: w, Reader: r}, nil
}

// createUnique picks names until an exclusive create succeeds. EEXIST is the
// only error that draws another name.
func createUnique(prefix string) (*os.File, error) {
	for range maxAttempts {
		suffix, err := gonanoid.Generate(suffixAlphabet, SuffixLen)
		if err != nil {
			return nil, fmt.Errorf("generate name suffix: %w", err)
		}

		name := prefix + suffix
		f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			return f, nil
		}
		if errors.Is(err, os.ErrExist) {
			continue
		}
		return nil, fmt.Errorf("create %s: %w", describe(prefix), err)
	}
	return nil, fmt.Errorf("create %s: %w", describe(prefix), ErrExhausted)
}

// describe renders the prefix the way mkstemp templates look in messages.
func describe(prefix string) string {
	return prefix + strings.Repeat("X", SuffixLen)
}

// Unlink removes the store's directory entry. Open handles keep the data
// alive. Calling it again is a no-op.
func (s *Store) Unlink() error {
	if s.unlinked {
		return nil
	}
	if err := os.Remove(s.Path); err != nil {
		return fmt.Errorf("unlink %s: %w", s.Path, err)
	}
	s.unlinked = true
	return nil
}

// Unlinked reports whether the directory entry has been removed.
func (s *Store) Unlinked() bool {
	return s.unlinked
}

// CloseWriter closes the write handle. The store stays readable through
// Reader.
func (s *Store) CloseWriter() error {
	if s.Writer == nil {
		return nil
	}
	w := s.Writer
	s.Writer = nil
	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// CloseReader closes the read handle.
func (s *Store) CloseReader() error {
	if s.Reader == nil {
		return nil
	}
	r := s.Reader
	s.Reader = nil
	if err := r.Close(); err != nil {
		return fmt.Errorf("close reader: %w", err)
	}
	return nil
}

// ReleaseReader gives up ownership of the read handle without closing it.
// Used when the descriptor itself already occupies the slot that will be
// inherited.
func (s *Store) ReleaseReader() *os.File {
	r := s.Reader
	s.Reader = nil
	return r
}

// Close releases every handle the store still owns and removes the name if
// that has not happened yet. It is safe to call more than once.
func (s *Store) Close() error {
	return errors.Join(s.CloseWriter(), s.CloseReader(), s.Unlink())
}
