package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sttbridge"
	"sttbridge/internal/bootstrap"
)

const stopDrainBudget = 10 * time.Second

var (
	listenLocale string
	finalsOnly   bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Capture the microphone and stream transcripts until interrupted",
	Long: `Starts a transcription session and prints one JSON event per line on
stdout: transcript snapshots, status changes, recognition errors, and sound
levels. Ctrl-C stops the session gracefully, finishing in-flight results.`,
	RunE: func(cobraCmd *cobra.Command, _ []string) error {
		return runListen(cobraCmd.Context(), listenLocale, !finalsOnly)
	},
}

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().StringVarP(&listenLocale, "locale", "l", "", "locale id, e.g. en-US (default from STT_DEFAULT_LOCALE)")
	listenCmd.Flags().BoolVar(&finalsOnly, "finals-only", false, "suppress interim transcript events")
}

func runListen(ctx context.Context, locale string, interim bool) error {
	bridge := sttbridge.NewBridge()
	services, err := bootstrap.Build(bridge)
	if err != nil {
		return err
	}
	bridge.Bind(services.Controller)

	printer := newEventPrinter(os.Stdout)
	bridge.SetTranscriptHandler(func(payload string) { printer.print("textRecognition", json.RawMessage(payload)) })
	bridge.SetStatusHandler(func(status string) { printer.print("notifyStatus", status) })
	bridge.SetErrorHandler(func(payload string) { printer.print("notifyError", json.RawMessage(payload)) })
	bridge.SetSoundLevelHandler(func(db float64) { printer.print("soundLevelChange", db) })

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if ok, err := bridge.HandleMethod(ctx, sttbridge.MethodInitialize, nil); err != nil || ok != true {
		if err != nil {
			return err
		}
		return errors.New("speech recognition is unavailable")
	}

	args, err := json.Marshal(map[string]any{"localeId": locale, "partialResults": interim})
	if err != nil {
		return err
	}
	if ok, err := bridge.HandleMethod(ctx, sttbridge.MethodListen, args); err != nil || ok != true {
		if err != nil {
			return err
		}
		return errors.New("could not start listening")
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopDrainBudget)
	defer cancel()
	if _, err := bridge.HandleMethod(stopCtx, sttbridge.MethodStop, nil); err != nil {
		return err
	}
	return nil
}

// eventPrinter writes one JSON event per line, serialized so concurrent
// handler calls never interleave output.
type eventPrinter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newEventPrinter(out *os.File) *eventPrinter {
	return &eventPrinter{enc: json.NewEncoder(out)}
}

func (p *eventPrinter) print(event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.enc.Encode(map[string]any{"event": event, "payload": payload})
}
