// Package sensor provides soil moisture readings with hardware abstraction.
// The serial implementation reads percentages printed one per line by a
// microcontroller. The fake implementation allows testing without hardware.
package sensor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnavailable is returned when no reading can be obtained.
var ErrUnavailable = errors.New("sensor: moisture reading unavailable")

// Source reads soil moisture.
type Source interface {
	// Read returns the moisture percentage in 0..100.
	// Returns an error wrapping ErrUnavailable if there is no sensor or
	// the sensor cannot be read.
	Read() (int, error)

	// Close releases the sensor.
	Close() error
}

// ParseReading converts one line of sensor output into a percentage,
// clamped to 0..100.
func ParseReading(line string) (int, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, fmt.Errorf("%w: empty line", ErrUnavailable)
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("%w: bad reading %q", ErrUnavailable, line)
	}
	return Clamp(n), nil
}

// Clamp forces a percentage into 0..100.
func Clamp(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// NoneSource is used when no sensor is attached. Every read fails.
type NoneSource struct{}

// Read always returns ErrUnavailable.
func (NoneSource) Read() (int, error) {
	return 0, ErrUnavailable
}

// Close is a no-op.
func (NoneSource) Close() error {
	return nil
}
