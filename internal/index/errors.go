package index

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidID is returned when an id cannot be stored under the active
	// key layout.
	ErrInvalidID = errors.New("invalid id")
	// ErrUniqueTaken is returned when a unique index value is held by another
	// live record.
	ErrUniqueTaken = errors.New("unique value already taken")
	// ErrGroupFull is returned when a multi index group reached MaxGroupSize.
	ErrGroupFull = errors.New("index group is full")
	// ErrCorrupt is returned when a stored value cannot be decoded.
	ErrCorrupt = errors.New("corrupt stored value")
	// ErrPartialWrite matches every *PartialWriteError.
	ErrPartialWrite = errors.New("partial write")
)

// PartialWriteError reports a mutation that failed midway and could not be
// fully compensated. Completed lists the steps that had succeeded before
// Step failed; Rollback holds the undo failures.
type PartialWriteError struct {
	Op        string
	Step      string
	Completed []string
	Cause     error
	Rollback  error
}

func (e *PartialWriteError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": partial write at ")
	b.WriteString(e.Step)
	b.WriteString(": ")
	b.WriteString(e.Cause.Error())
	if len(e.Completed) > 0 {
		b.WriteString(" (completed: ")
		b.WriteString(strings.Join(e.Completed, ", "))
		b.WriteString(")")
	}
	if e.Rollback != nil {
		b.WriteString("; rollback failed: ")
		b.WriteString(e.Rollback.Error())
	}
	return b.String()
}

func (e *PartialWriteError) Unwrap() []error {
	return []error{ErrPartialWrite, e.Cause}
}

// ErrExists is returned when creating a record whose id is already taken.
var ErrExists = errors.New("record already exists")
