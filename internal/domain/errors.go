package domain

import "errors"

// Sentinel errors shared by every stage. Callers wrap them with context via
// fmt.Errorf("...: %w") and match with errors.Is.
var (
	// ErrUnresolvedParameter means a raw parameter name has no canonical mapping.
	ErrUnresolvedParameter = errors.New("unresolved parameter")
	// ErrUnresolvedUnit means a raw unit is not a known variant of the
	// resolved parameter's canonical unit.
	ErrUnresolvedUnit = errors.New("unresolved unit")
	// ErrUnparsableValue means a raw value could not be read as a real number.
	ErrUnparsableValue = errors.New("unparsable value")
	// ErrInvalidIntervalWidth means a bucket width of zero or fewer days was requested.
	ErrInvalidIntervalWidth = errors.New("invalid interval width")
	// ErrInvalidRange means the maximum of a date range precedes its minimum.
	ErrInvalidRange = errors.New("invalid date range")
	// ErrAmbiguousCRS means geometries in one operation carry different or
	// unknown coordinate reference systems.
	ErrAmbiguousCRS = errors.New("ambiguous coordinate reference system")
	// ErrEmptyBoundary means a boundary geometry is missing or has no extent.
	ErrEmptyBoundary = errors.New("empty boundary")
)

// DropReason labels why an observation was excluded from aggregation.
type DropReason string

const (
	DropUnresolvedParameter DropReason = "unresolved_parameter"
	DropUnresolvedUnit      DropReason = "unresolved_unit"
	DropUnparsableValue     DropReason = "unparsable_value"
	DropOutsideBoundary     DropReason = "outside_boundary"
	DropOther               DropReason = "other"
)

// ReasonFor maps a resolution error to its drop reason.
func ReasonFor(err error) DropReason {
	switch {
	case errors.Is(err, ErrUnresolvedParameter):
		return DropUnresolvedParameter
	case errors.Is(err, ErrUnresolvedUnit):
		return DropUnresolvedUnit
	case errors.Is(err, ErrUnparsableValue):
		return DropUnparsableValue
	default:
		return DropOther
	}
}
