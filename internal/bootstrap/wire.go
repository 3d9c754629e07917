// Package bootstrap assembles the runtime dependency graph.
package bootstrap

import (
	"fmt"

	"github.com/samber/do/v2"

	"sttbridge/internal/audio"
	"sttbridge/internal/config"
	"sttbridge/internal/domain"
	"sttbridge/internal/models"
	"sttbridge/internal/permission"
	"sttbridge/internal/ports"
	"sttbridge/internal/providers/deepgram"
	"sttbridge/internal/providers/google"
	"sttbridge/internal/usecase"
)

// Backend couples streaming transcription with its model catalog; every
// provider implements the pair.
type Backend interface {
	ports.TranscriptionProvider
	ports.ModelCatalog
}

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Config     config.Config
}

// Build loads configuration and wires the full backend graph.
func Build(sink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return BuildWith(cfg, sink)
}

// BuildWith wires the backend graph for an already-loaded configuration.
func BuildWith(cfg config.Config, sink ports.EventSink) (Services, error) {
	injector := newInjector(cfg, sink)
	controller, err := do.Invoke[*usecase.SessionController](injector)
	if err != nil {
		return Services{}, fmt.Errorf("assemble session controller: %w", err)
	}
	return Services{Controller: controller, Config: cfg}, nil
}

func newInjector(cfg config.Config, sink ports.EventSink) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, sink)

	do.Provide(injector, func(i do.Injector) (ports.AudioCapture, error) {
		c := do.MustInvoke[config.Config](i)
		switch c.Audio.Backend {
		case "ffmpeg":
			return audio.NewFFMPEGCapture(c.Audio.FFMPEGCommand), nil
		default:
			return audio.NewPortAudioCapture(), nil
		}
	})

	do.Provide(injector, func(i do.Injector) (Backend, error) {
		c := do.MustInvoke[config.Config](i)
		switch c.Provider {
		case "google":
			return google.NewProvider(google.Config{
				ProjectID:       c.Google.ProjectID,
				CredentialsJSON: c.Google.CredentialsJSON,
				Location:        c.Google.Location,
				Model:           c.Google.Model,
			}), nil
		default:
			return deepgram.NewProvider(deepgram.Config{
				APIKey:      c.Deepgram.APIKey,
				APIBaseURL:  c.Deepgram.APIBaseURL,
				Model:       c.Deepgram.Model,
				SmartFormat: c.Deepgram.SmartFormat,
			}), nil
		}
	})

	do.Provide(injector, func(i do.Injector) (ports.PermissionGate, error) {
		c := do.MustInvoke[config.Config](i)
		// The device probe needs PortAudio; a piped capture backend has
		// no probe, so authorization is assumed there.
		if c.Audio.Backend == "ffmpeg" {
			return &permission.StaticGate{Result: domain.PermissionGranted}, nil
		}
		return permission.NewDeviceGate(), nil
	})

	do.Provide(injector, func(i do.Injector) (*models.Manager, error) {
		c := do.MustInvoke[config.Config](i)
		overlay, err := models.LoadOverlay(c.LocalesFile)
		if err != nil {
			return nil, err
		}
		backend := do.MustInvoke[Backend](i)
		return models.NewManager(backend, c.Session.ModelInstallTimeout, overlay), nil
	})

	do.Provide(injector, func(i do.Injector) (*usecase.SessionController, error) {
		c := do.MustInvoke[config.Config](i)
		return usecase.NewSessionController(
			do.MustInvoke[ports.AudioCapture](i),
			do.MustInvoke[Backend](i),
			do.MustInvoke[*models.Manager](i),
			do.MustInvoke[ports.PermissionGate](i),
			do.MustInvoke[ports.EventSink](i),
			usecase.Config{
				DefaultLocale: c.DefaultLocale,
				Audio: ports.AudioConfig{
					SampleRate:      c.Audio.SampleRate,
					Channels:        c.Audio.Channels,
					FramesPerBuffer: c.Audio.FramesPerBuffer,
					InputFormat:     c.Audio.InputFormat,
					InputDevice:     c.Audio.InputDevice,
				},
				DrainTimeout: c.Session.DrainTimeout,
			},
		), nil
	})

	return injector
}
