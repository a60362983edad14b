package lmdbm

import (
	"strings"

	"github.com/pkg/errors"
)

// OpenMode selects how Open treats an existing or missing store.
type OpenMode int

const (
	// ModeReadOnly opens an existing store for reading.
	ModeReadOnly OpenMode = iota
	// ModeReadWrite opens an existing store for reading and writing.
	ModeReadWrite
	// ModeCreate opens a store for reading and writing, creating it if absent.
	ModeCreate
	// ModeRecreate removes any existing store and creates an empty one.
	ModeRecreate
)

// String returns the single-letter flag of the mode.
func (m OpenMode) String() string {
	switch m {
	case ModeReadOnly:
		return "r"
	case ModeReadWrite:
		return "w"
	case ModeCreate:
		return "c"
	case ModeRecreate:
		return "n"
	default:
		return "unknown"
	}
}

// Writable returns true if the mode permits writes.
func (m OpenMode) Writable() bool { return m != ModeReadOnly }

func (m OpenMode) valid() bool { return m >= ModeReadOnly && m <= ModeRecreate }

// ParseMode parses a mode flag: "r", "w", "c" or "n", or the long names
// "read-only", "read-write", "create" and "recreate".
func ParseMode(s string) (OpenMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "r", "read-only":
		return ModeReadOnly, nil
	case "w", "read-write":
		return ModeReadWrite, nil
	case "c", "create":
		return ModeCreate, nil
	case "n", "recreate":
		return ModeRecreate, nil
	default:
		return 0, errors.WithMessagef(ErrInvalidMode, "%q", s)
	}
}

// UnmarshalFlag implements flags.Unmarshaler.
func (m *OpenMode) UnmarshalFlag(value string) error {
	mode, err := ParseMode(value)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *OpenMode) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return m.UnmarshalFlag(s)
}
