// Package google implements streaming transcription against the Cloud
// Speech v2 bidirectional gRPC API.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"sttbridge/internal/domain"
	"sttbridge/internal/ports"
)

const speechAPIEndpointPort = 443

// Config controls Cloud Speech settings.
type Config struct {
	ProjectID       string
	CredentialsJSON string
	Location        string
	Model           string
}

// Provider implements ports.TranscriptionProvider and ports.ModelCatalog
// for Cloud Speech v2. Recognition models are hosted, so the installed set
// mirrors the supported set.
type Provider struct {
	cfg Config
}

func NewProvider(cfg Config) *Provider {
	if cfg.Location == "" {
		cfg.Location = "global"
	}
	if cfg.Model == "" {
		cfg.Model = "latest_long"
	}
	return &Provider{cfg: cfg}
}

func (p *Provider) StartStreaming(ctx context.Context, cfg ports.StreamingConfig) (ports.StreamingSession, error) {
	if p.cfg.ProjectID == "" {
		return nil, errors.New("GOOGLE_CLOUD_PROJECT_ID is not configured")
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(p.cfg.CredentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}

	opts := []option.ClientOption{option.WithAuthCredentials(creds)}
	if p.cfg.Location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", p.cfg.Location, speechAPIEndpointPort)))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("open recognize stream: %w", err)
	}

	recognizer := fmt.Sprintf("projects/%s/locations/%s/recognizers/_", p.cfg.ProjectID, p.cfg.Location)
	configReq := &speechpb.StreamingRecognizeRequest{
		Recognizer: recognizer,
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Model:         p.cfg.Model,
					LanguageCodes: []string{cfg.Locale},
					DecodingConfig: &speechpb.RecognitionConfig_ExplicitDecodingConfig{
						ExplicitDecodingConfig: &speechpb.ExplicitDecodingConfig{
							Encoding:          speechpb.ExplicitDecodingConfig_LINEAR16,
							SampleRateHertz:   int32(cfg.SampleRate),
							AudioChannelCount: int32(cfg.Channels),
						},
					},
					Features: &speechpb.RecognitionFeatures{},
				},
				StreamingFeatures: &speechpb.StreamingRecognitionFeatures{
					InterimResults: cfg.InterimResults,
				},
			},
		},
	}
	if err := stream.Send(configReq); err != nil {
		_ = stream.CloseSend()
		_ = client.Close()
		return nil, fmt.Errorf("send streaming config: %w", err)
	}
	slog.Info("cloud speech stream initialized", "session_id", cfg.SessionID, "locale", cfg.Locale, "location", p.cfg.Location, "model", p.cfg.Model)

	session := &streamingSession{
		stream: stream,
		client: client,
		events: make(chan domain.TranscriptEvent, 64),
		done:   make(chan struct{}),
	}
	go session.readLoop()

	return session, nil
}

type streamingSession struct {
	client *speech.Client

	sendMu     sync.Mutex
	stream     speechpb.Speech_StreamingRecognizeClient
	sendClosed bool

	events chan domain.TranscriptEvent
	done   chan struct{}

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

func (s *streamingSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.sendClosed {
		return io.ErrClosedPipe
	}
	req := &speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{Audio: chunk},
	}
	if err := s.stream.Send(req); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

func (s *streamingSession) CloseSend() error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if s.sendClosed {
		return nil
	}
	s.sendClosed = true
	return s.stream.CloseSend()
}

func (s *streamingSession) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *streamingSession) Wait() error {
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *streamingSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.CloseSend()
		_ = s.client.Close()
	})
	return s.Wait()
}

func (s *streamingSession) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *streamingSession) readLoop() {
	defer func() {
		close(s.events)
		close(s.done)
		_ = s.client.Close()
	}()

	for {
		resp, err := s.stream.Recv()
		if err != nil {
			if !isGracefulStreamEnd(err) {
				s.setErr(fmt.Errorf("receive recognition result: %w", err))
			}
			return
		}

		for _, result := range resp.GetResults() {
			if len(result.GetAlternatives()) == 0 {
				continue
			}
			text := strings.TrimSpace(result.GetAlternatives()[0].GetTranscript())
			if text == "" {
				continue
			}
			event := domain.TranscriptEvent{Text: text, Kind: domain.TranscriptKindVolatile}
			if result.GetIsFinal() {
				event.Kind = domain.TranscriptKindFinal
			}
			s.emit(event)
		}
	}
}

// emit blocks until the consumer takes the event. The consumer drains the
// channel until it closes, and close happens only after the receive loop
// returns, so the send always completes. A non-blocking send would lose
// finalized text whenever the consumer lags.
func (s *streamingSession) emit(event domain.TranscriptEvent) {
	s.events <- event
}

func isGracefulStreamEnd(err error) bool {
	if err == io.EOF {
		return true
	}
	if st, ok := status.FromError(err); ok && st.Code() == codes.Canceled {
		return true
	}
	return strings.Contains(err.Error(), "context canceled")
}
