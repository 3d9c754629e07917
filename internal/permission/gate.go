// Package permission abstracts the platform microphone authorization check
// behind a single capability interface. Desktop targets without a prompt API
// treat an available input device as granted; targets with a real
// authorization dialog supply their own ports.PermissionGate implementation
// at build time instead of branching at runtime.
package permission

import (
	"context"

	"github.com/gordonklaus/portaudio"

	"sttbridge/internal/domain"
)

// DeviceGate reports microphone permission from input-device availability.
// The probe initializes PortAudio only for the duration of the check.
type DeviceGate struct{}

func NewDeviceGate() *DeviceGate {
	return &DeviceGate{}
}

func (g *DeviceGate) Status(_ context.Context) domain.PermissionStatus {
	if err := portaudio.Initialize(); err != nil {
		return domain.PermissionDenied
	}
	defer func() { _ = portaudio.Terminate() }()

	device, err := portaudio.DefaultInputDevice()
	if err != nil || device == nil || device.MaxInputChannels <= 0 {
		return domain.PermissionDenied
	}
	return domain.PermissionGranted
}

func (g *DeviceGate) Request(ctx context.Context) (bool, error) {
	return g.Status(ctx) == domain.PermissionGranted, nil
}

// StaticGate is a fixed-answer gate for tests and headless configurations.
type StaticGate struct {
	Result domain.PermissionStatus

	// GrantOnRequest flips an undetermined gate to granted when Request is
	// called, mimicking a user accepting the prompt.
	GrantOnRequest bool
}

func (g *StaticGate) Status(_ context.Context) domain.PermissionStatus {
	return g.Result
}

func (g *StaticGate) Request(_ context.Context) (bool, error) {
	if g.Result == domain.PermissionUndetermined && g.GrantOnRequest {
		g.Result = domain.PermissionGranted
	}
	return g.Result == domain.PermissionGranted, nil
}
