package cli

import (
	"github.com/spf13/cobra"

	"github.com/mikemuryn/VoiceNotes/config"
	"github.com/mikemuryn/VoiceNotes/internal/app"
	"github.com/mikemuryn/VoiceNotes/internal/version"
)

type Dependencies struct {
	App    *app.App
	Config *config.Config
}

func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "voicenotes",
		Short: "Transcribe audio locally; optionally align, diarize, and summarize",
		Long:  "A CLI tool that transcribes audio with Whisper, refines word timestamps and speaker labels with WhisperX, and can generate an AI summary.",
	}

	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(version.Full() + "\n")

	rootCmd.AddCommand(NewRunCmd(deps))
	rootCmd.AddCommand(NewListCmd(deps))
	rootCmd.AddCommand(NewDoctorCmd(deps))

	return rootCmd
}
