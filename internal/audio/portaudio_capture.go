package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/gordonklaus/portaudio"

	"sttbridge/internal/domain"
	"sttbridge/internal/ports"
)

// PortAudioCapture streams microphone PCM audio through PortAudio. It is the
// default capture backend; each session initializes PortAudio on start and
// terminates it on stop so the host audio state is restored between sessions.
type PortAudioCapture struct{}

func NewPortAudioCapture() *PortAudioCapture {
	return &PortAudioCapture{}
}

func (c *PortAudioCapture) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.FramesPerBuffer < 256 {
		cfg.FramesPerBuffer = 4096
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	device, err := resolveInputDevice(cfg.InputDevice)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}
	if device.MaxInputChannels <= 0 {
		_ = portaudio.Terminate()
		return nil, domain.ErrNoAudioInput
	}
	if cfg.Channels > device.MaxInputChannels {
		cfg.Channels = device.MaxInputChannels
	}

	buffer := make([]float32, cfg.FramesPerBuffer*cfg.Channels)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: cfg.Channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.FramesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, buffer)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}

	session := &portAudioSession{
		stream: stream,
		format: ports.AudioFormat{
			SampleRate: cfg.SampleRate,
			Channels:   cfg.Channels,
			Encoding:   EncodingF32LE,
		},
		buffers: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
	go session.captureLoop(ctx, buffer)

	return session, nil
}

func resolveInputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" || name == "default" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, domain.ErrNoAudioInput
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate audio devices: %w", err)
	}
	for _, dev := range devices {
		if dev.Name == name && dev.MaxInputChannels > 0 {
			return dev, nil
		}
	}
	return nil, fmt.Errorf("audio input device not found: %s", name)
}

type portAudioSession struct {
	stream *portaudio.Stream
	format ports.AudioFormat

	buffers chan []byte
	done    chan struct{}

	leftover []byte

	stopOnce sync.Once
	stopErr  error
}

func (s *portAudioSession) Format() ports.AudioFormat { return s.format }

// captureLoop reads fixed-size buffers from the stream and hands them off
// without blocking: when the consumer falls behind, the buffer is dropped.
func (s *portAudioSession) captureLoop(ctx context.Context, buffer []float32) {
	defer close(s.buffers)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		default:
		}

		if err := s.stream.Read(); err != nil {
			// overflow just means missed frames; anything else ends capture
			if err == portaudio.InputOverflowed {
				continue
			}
			return
		}

		chunk := make([]byte, len(buffer)*4)
		for i, v := range buffer {
			binary.LittleEndian.PutUint32(chunk[i*4:], math.Float32bits(v))
		}

		select {
		case s.buffers <- chunk:
		case <-s.done:
			return
		default:
			// consumer behind, drop
		}
	}
}

func (s *portAudioSession) Read(p []byte) (int, error) {
	if len(s.leftover) > 0 {
		n := copy(p, s.leftover)
		s.leftover = s.leftover[n:]
		return n, nil
	}

	select {
	case chunk, ok := <-s.buffers:
		if !ok {
			return 0, io.EOF
		}
		n := copy(p, chunk)
		if n < len(chunk) {
			s.leftover = chunk[n:]
		}
		return n, nil
	case <-s.done:
		return 0, io.EOF
	}
}

func (s *portAudioSession) Close() error {
	return s.Stop()
}

func (s *portAudioSession) Stop() error {
	s.stopOnce.Do(func() {
		close(s.done)
		if err := s.stream.Stop(); err != nil {
			s.stopErr = fmt.Errorf("failed to stop audio stream: %w", err)
		}
		if err := s.stream.Close(); err != nil && s.stopErr == nil {
			s.stopErr = fmt.Errorf("failed to close audio stream: %w", err)
		}
		if err := portaudio.Terminate(); err != nil && s.stopErr == nil {
			s.stopErr = fmt.Errorf("failed to terminate portaudio: %w", err)
		}
	})
	return s.stopErr
}
