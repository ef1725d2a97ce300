package source

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies source errors.
type Kind int

const (
	// Input errors: the record cannot be resolved; the loader may skip it.
	KindNullOrganism Kind = iota + 1
	KindUnresolvedOrganism
	KindUnresolvedAttribute
	KindDuplicateSequence

	// Resource errors: vocabulary or store access failed.
	KindResolution
	KindResource
	KindCloneLimit

	// State errors: a caller bug.
	KindAlreadyPersisted
	KindAlreadyBatched
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindNullOrganism:
		return "null_organism"
	case KindUnresolvedOrganism:
		return "unresolved_organism"
	case KindUnresolvedAttribute:
		return "unresolved_attribute"
	case KindDuplicateSequence:
		return "duplicate_sequence"
	case KindResolution:
		return "resolution"
	case KindResource:
		return "resource"
	case KindCloneLimit:
		return "clone_limit"
	case KindAlreadyPersisted:
		return "already_persisted"
	case KindAlreadyBatched:
		return "already_batched"
	default:
		return "unknown"
	}
}

// Error is the error type returned by this package. Only the fields that
// apply to Kind are set.
type Error struct {
	Kind        Kind
	Field       Attribute // resolution errors
	Value       string    // offending raw value
	SourceKey   int64     // reconciliation and state errors
	Fingerprint string
	Limit       int // KindCloneLimit
	Err         error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("source: ")
	switch e.Kind {
	case KindNullOrganism:
		b.WriteString("organism is required")
	case KindUnresolvedOrganism:
		fmt.Fprintf(&b, "organism %q could not be resolved", e.Value)
	case KindUnresolvedAttribute:
		if e.Value == "" {
			fmt.Fprintf(&b, "%s is required", e.Field)
		} else {
			fmt.Fprintf(&b, "%s %q could not be resolved", e.Field, e.Value)
		}
	case KindDuplicateSequence:
		fmt.Fprintf(&b, "sequence %s already processed in this run", e.Value)
	case KindResolution:
		fmt.Fprintf(&b, "resolve %s %q", e.Field, e.Value)
	case KindResource:
		b.WriteString("store access failed")
	case KindCloneLimit:
		fmt.Fprintf(&b, "associated clones exceed limit of %d", e.Limit)
	case KindAlreadyPersisted:
		b.WriteString("source is already persisted")
	case KindAlreadyBatched:
		b.WriteString("source is already queued for insert")
	default:
		b.WriteString("unknown error")
	}
	if e.SourceKey != 0 {
		fmt.Fprintf(&b, " (source %d)", e.SourceKey)
	}
	if e.Fingerprint != "" && e.Kind != KindUnresolvedAttribute {
		fmt.Fprintf(&b, " [%s]", e.Fingerprint)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// IsInputError reports a per-record resolution failure.
func IsInputError(err error) bool {
	switch KindOf(err) {
	case KindNullOrganism, KindUnresolvedOrganism, KindUnresolvedAttribute, KindDuplicateSequence:
		return true
	}
	return false
}

// IsResourceError reports a vocabulary, store, or scan-limit failure.
func IsResourceError(err error) bool {
	switch KindOf(err) {
	case KindResolution, KindResource, KindCloneLimit:
		return true
	}
	return false
}

// IsStateError reports a caller bug such as inserting a persisted source.
func IsStateError(err error) bool {
	switch KindOf(err) {
	case KindAlreadyPersisted, KindAlreadyBatched:
		return true
	}
	return false
}

func resourceError(src *MolecularSource, err error) error {
	e := &Error{Kind: KindResource, Err: err}
	if src != nil {
		e.SourceKey = src.Key
		e.Fingerprint = src.Fingerprint()
	}
	return e
}
