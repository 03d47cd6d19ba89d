//go:build !linux

package relay

import "errors"

// RealDriver is not available off-device.
type RealDriver struct{}

func NewRealDriver(chipName string, pin int) (*RealDriver, error) {
	return nil, errors.New("relay: gpio requires linux")
}

func (d *RealDriver) Activate() error {
	return errors.New("relay: not supported")
}

func (d *RealDriver) Deactivate() error {
	return errors.New("relay: not supported")
}

func (d *RealDriver) IsActive() (bool, error) {
	return false, errors.New("relay: not supported")
}

func (d *RealDriver) Close() error {
	return nil
}
