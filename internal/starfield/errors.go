package starfield

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParams indicates a tier's structural parameters are unusable.
	ErrInvalidParams = errors.New("invalid structural parameters")
	// ErrUnknownTier indicates a tier outside the closed enum.
	ErrUnknownTier = errors.New("unknown quality tier")
	// ErrShape indicates the four dataset arrays disagree on star count.
	ErrShape = errors.New("dataset shape mismatch")
	// ErrFraction indicates an impostor fraction that is zero, negative or NaN.
	ErrFraction = errors.New("invalid impostor fraction")
)

// ConfigError reports a configuration problem for a specific tier.
type ConfigError struct {
	Tier   Tier
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Tier.Valid() {
		return fmt.Sprintf("tier %s: %s: %v", e.Tier, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ShapeError reports array lengths that violate the 3N/3N/N/N layout.
type ShapeError struct {
	Positions int
	Colors    int
	Sizes     int
	Flickers  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%v: positions=%d colors=%d sizes=%d flickers=%d",
		ErrShape, e.Positions, e.Colors, e.Sizes, e.Flickers)
}

func (e *ShapeError) Unwrap() error { return ErrShape }
