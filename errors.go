package hpet

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOperation is returned for writes the hardware forbids in
	// the device's current state.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrIndexOutOfRange is returned for timer indices the device does not
	// populate.
	ErrIndexOutOfRange = errors.New("timer index out of range")
	// ErrUnsupported is returned when a configuration needs a capability
	// the device or timer lacks.
	ErrUnsupported = errors.New("capability unsupported")
	// ErrNilAddress is returned when constructing a Controller without
	// register memory.
	ErrNilAddress = errors.New("nil register block address")
	// ErrRegionTooSmall is returned when a Region cannot hold the whole
	// register block.
	ErrRegionTooSmall = errors.New("region smaller than register block")
)

// IndexError reports a timer index at or beyond the device's timer count.
type IndexError struct {
	Index int
	Count int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("timer %d out of range: device has %d timers", e.Index, e.Count)
}

func (e *IndexError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}

// Feature names a capability-gated configuration.
type Feature string

const (
	FeatureIOAPICRoute       Feature = "I/O APIC route"
	FeatureFSB               Feature = "FSB interrupt delivery"
	FeaturePeriodic          Feature = "periodic mode"
	FeatureLegacyReplacement Feature = "LegacyReplacement route"
)

// UnsupportedError reports a configuration rejected because a capability
// bit is clear. Timer is -1 for device-wide features.
type UnsupportedError struct {
	Timer   int
	Feature Feature
	// IRQ is the requested I/O APIC input for FeatureIOAPICRoute.
	IRQ uint8
}

func (e *UnsupportedError) Error() string {
	var what string
	if e.Feature == FeatureIOAPICRoute {
		what = fmt.Sprintf("%s to IRQ %d not supported", e.Feature, e.IRQ)
	} else {
		what = fmt.Sprintf("%s not supported", e.Feature)
	}
	if e.Timer < 0 {
		return what
	}
	return fmt.Sprintf("timer %d: %s", e.Timer, what)
}

func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}
