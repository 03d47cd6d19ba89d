//go:build linux

package relay

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealDriver drives the relay through the Linux GPIO character device.
type RealDriver struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealDriver requests the relay line as an output, initially low
// (valve closed) so a process restart never opens the valve by itself.
func NewRealDriver(chipName string, pin int) (*RealDriver, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request relay pin %d: %w", pin, err)
	}

	return &RealDriver{chip: chip, line: line}, nil
}

func (d *RealDriver) Activate() error {
	if err := d.line.SetValue(1); err != nil {
		return fmt.Errorf("set relay high: %w", err)
	}
	return nil
}

func (d *RealDriver) Deactivate() error {
	if err := d.line.SetValue(0); err != nil {
		return fmt.Errorf("set relay low: %w", err)
	}
	return nil
}

func (d *RealDriver) IsActive() (bool, error) {
	v, err := d.line.Value()
	if err != nil {
		return false, fmt.Errorf("read relay pin: %w", err)
	}
	return v != 0, nil
}

// Close forces the line low before releasing it so the valve cannot be
// left open across restarts.
func (d *RealDriver) Close() error {
	var errs []error
	if d.line != nil {
		if err := d.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("force relay low: %w", err))
		}
		if err := d.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relay line: %w", err))
		}
	}
	if d.chip != nil {
		if err := d.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
