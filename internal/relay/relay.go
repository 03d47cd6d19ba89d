// Package relay drives the water valve relay with a hardware
// abstraction so the coordinator can be tested without a Pi.
package relay

// DefaultPin is the BCM pin wired to relay one of the automation HAT.
const DefaultPin = 13

// Driver actuates the valve relay. All calls are synchronous and fast
// relative to watering durations.
type Driver interface {
	// Activate energizes the relay (valve open).
	Activate() error

	// Deactivate de-energizes the relay (valve closed).
	Deactivate() error

	// IsActive reads back the requested line state.
	IsActive() (bool, error)

	// Close releases GPIO resources, forcing the line low first.
	Close() error
}
