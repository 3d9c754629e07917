package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "sttbridge",
	Short: "Streaming speech-to-text session bridge",
	Long: `sttbridge captures microphone audio, streams it to a transcription
engine, and emits partial and final transcripts as JSON events.

Configuration comes from environment variables: STT_PROVIDER selects the
engine (deepgram or google), STT_AUDIO_BACKEND the capture path (portaudio
or ffmpeg).`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
