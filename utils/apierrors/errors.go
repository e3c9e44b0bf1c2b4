// Package apierrors defines the tagged error taxonomy surfaced at every
// sonora public boundary: AudioTooShort, StoreRead, StoreWrite,
// SchemaMismatch, InvalidConfig, and Cancelled.
// Store-boundary failures are wrapped with github.com/pkg/errors so a
// stack trace survives up to the facade even though the tag itself is a
// plain sentinel comparable with errors.Is.
package apierrors

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Tag identifies a class of failure from the engine's error taxonomy.
type Tag int

const (
	TagAudioTooShort Tag = iota
	TagStoreRead
	TagStoreWrite
	TagSchemaMismatch
	TagInvalidConfig
	TagCancelled
)

func (t Tag) String() string {
	switch t {
	case TagAudioTooShort:
		return "AudioTooShort"
	case TagStoreRead:
		return "StoreRead"
	case TagStoreWrite:
		return "StoreWrite"
	case TagSchemaMismatch:
		return "SchemaMismatch"
	case TagInvalidConfig:
		return "InvalidConfig"
	case TagCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is a tagged, wrapped error. The underlying cause (if any) is
// preserved for errors.Unwrap / errors.Is / errors.As.
type Error struct {
	Tag   Tag
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Tag, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Tag, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, apierrors.AudioTooShort) match any *Error
// sharing the same tag, regardless of message or cause.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Tag == other.Tag
	}
	return false
}

// Sentinel instances for use with errors.Is.
var (
	AudioTooShort  = &Error{Tag: TagAudioTooShort, Msg: "audio shorter than one analysis tile"}
	StoreRead      = &Error{Tag: TagStoreRead, Msg: "store read failed"}
	StoreWrite     = &Error{Tag: TagStoreWrite, Msg: "store write failed"}
	SchemaMismatch = &Error{Tag: TagSchemaMismatch, Msg: "database schema parameters do not match configuration"}
	InvalidConfig  = &Error{Tag: TagInvalidConfig, Msg: "invalid configuration"}
	Cancelled      = &Error{Tag: TagCancelled, Msg: "operation cancelled"}
)

// Wrap builds a new *Error carrying tag, a formatted message, and cause
// wrapped with a stack trace via pkg/errors (nil cause is allowed).
func Wrap(tag Tag, cause error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	var wrapped error
	if cause != nil {
		wrapped = pkgerrors.Wrap(cause, msg)
	}
	return &Error{Tag: tag, Msg: msg, Cause: wrapped}
}

// StoreReadf builds a StoreRead-tagged error wrapping cause.
func StoreReadf(cause error, format string, args ...any) *Error {
	return Wrap(TagStoreRead, cause, format, args...)
}

// StoreWritef builds a StoreWrite-tagged error wrapping cause.
func StoreWritef(cause error, format string, args ...any) *Error {
	return Wrap(TagStoreWrite, cause, format, args...)
}

// InvalidConfigf builds an InvalidConfig-tagged error with no cause.
func InvalidConfigf(format string, args ...any) *Error {
	return Wrap(TagInvalidConfig, nil, format, args...)
}

// SchemaMismatchf builds a SchemaMismatch-tagged error with no cause.
func SchemaMismatchf(format string, args ...any) *Error {
	return Wrap(TagSchemaMismatch, nil, format, args...)
}
