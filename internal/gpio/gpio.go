// Package gpio drives the water pump relay and reads the panel buttons with
// hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Pump switches the water pump.
type Pump interface {
	// Pulse turns the pump on for d, then off. It blocks for d.
	Pulse(d time.Duration) error

	// Close turns the pump off and releases GPIO resources.
	Close() error
}

// Reader reads the two panel buttons.
type Reader interface {
	// Read returns whether button A and button B are held down.
	Read() (a, b bool, err error)

	// Close releases GPIO resources.
	Close() error
}

// Defaults (BCM numbering)
const (
	DefaultChip       = "gpiochip0"
	DefaultPinPump    = 9  // physical pin 21
	DefaultPinButtonA = 15 // physical pin 10
	DefaultPinButtonB = 18 // physical pin 12
)
