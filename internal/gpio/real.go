//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealPump drives the pump relay via the Linux GPIO character device.
type RealPump struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealPump requests pin on chip as an output, initially off.
func NewRealPump(chip string, pin int) (*RealPump, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := c.RequestLine(pin, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("plant-nanny"))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request pump pin %d: %w", pin, err)
	}

	return &RealPump{chip: c, line: line}, nil
}

// Pulse drives the pin high for d. The pin is driven low again even if
// raising it reported an error.
func (p *RealPump) Pulse(d time.Duration) error {
	onErr := p.line.SetValue(1)
	if onErr == nil {
		time.Sleep(d)
	}
	if err := p.line.SetValue(0); err != nil {
		return errors.Join(onErr, fmt.Errorf("pump off: %w", err))
	}
	if onErr != nil {
		return fmt.Errorf("pump on: %w", onErr)
	}
	return nil
}

// Close turns the pump off and releases GPIO resources.
// Reconfigures the pin to input with pull-down (matching Pi boot defaults)
// before closing so the relay stays off across reboots.
func (p *RealPump) Close() error {
	var errs []error

	if p.line != nil {
		if err := p.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("pump off: %w", err))
		}
		if err := p.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure pump pin: %w", err))
		}
		if err := p.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pump pin: %w", err))
		}
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealReader reads the panel buttons via the Linux GPIO character device.
type RealReader struct {
	chip *gpiocdev.Chip
	a    *gpiocdev.Line
	b    *gpiocdev.Line
}

// NewRealReader requests pinA and pinB on chip as inputs with pull-down.
// The buttons pull their line high when pressed.
func NewRealReader(chip string, pinA, pinB int) (*RealReader, error) {
	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	aLine, err := c.RequestLine(pinA, gpiocdev.AsInput, gpiocdev.WithPullDown, gpiocdev.WithConsumer("plant-nanny"))
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("request button A pin %d: %w", pinA, err)
	}

	bLine, err := c.RequestLine(pinB, gpiocdev.AsInput, gpiocdev.WithPullDown, gpiocdev.WithConsumer("plant-nanny"))
	if err != nil {
		aLine.Close()
		c.Close()
		return nil, fmt.Errorf("request button B pin %d: %w", pinB, err)
	}

	return &RealReader{chip: c, a: aLine, b: bLine}, nil
}

// Read returns true for each button whose line reads high.
func (r *RealReader) Read() (bool, bool, error) {
	aRaw, err := r.a.Value()
	if err != nil {
		return false, false, fmt.Errorf("read button A: %w", err)
	}
	bRaw, err := r.b.Value()
	if err != nil {
		return false, false, fmt.Errorf("read button B: %w", err)
	}
	return aRaw == 1, bRaw == 1, nil
}

// Close releases the button lines, leaving them as inputs with pull-down.
func (r *RealReader) Close() error {
	var errs []error

	for _, l := range []struct {
		name string
		line *gpiocdev.Line
	}{{"A", r.a}, {"B", r.b}} {
		if l.line == nil {
			continue
		}
		if err := l.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure button %s pin: %w", l.name, err))
		}
		if err := l.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button %s pin: %w", l.name, err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
