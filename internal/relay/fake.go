package relay

import "sync"

// FakeDriver is a test double that records actuations in memory.
type FakeDriver struct {
	mu sync.Mutex

	active bool

	// StickOn, if set, makes Deactivate leave the reported state on.
	// Simulates a stuck relay for runaway tests.
	StickOn bool

	// ActivateErr and DeactivateErr are returned by the respective calls.
	ActivateErr   error
	DeactivateErr error

	// Activations and Deactivations count calls.
	Activations   int
	Deactivations int

	Closed bool
}

func NewFakeDriver() *FakeDriver { return &FakeDriver{} }

func (f *FakeDriver) Activate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Activations++
	if f.ActivateErr != nil {
		return f.ActivateErr
	}
	f.active = true
	return nil
}

func (f *FakeDriver) Deactivate() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Deactivations++
	if f.DeactivateErr != nil {
		return f.DeactivateErr
	}
	if !f.StickOn {
		f.active = false
	}
	return nil
}

func (f *FakeDriver) IsActive() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, nil
}

func (f *FakeDriver) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	f.active = false
	return nil
}
