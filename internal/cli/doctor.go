package cli

import (
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/mikemuryn/VoiceNotes/internal/output"
)

func NewDoctorCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := output.NewFormatter(os.Stdout)
			ok := true

			python := deps.Config.Python
			if python == "" {
				python = "python3"
			}
			if _, err := exec.LookPath(python); err != nil {
				f.SetupCheck("python", false, python+" not found. Install python3 with whisperx")
				ok = false
			} else {
				f.SetupCheck("python", true, python)
			}

			if deps.Config.HFToken != "" {
				f.SetupCheck("HuggingFace token", true, "configured (needed for --diarize)")
			} else {
				f.SetupCheck("HuggingFace token", false, "not set. Set HUGGINGFACE_TOKEN or add huggingface_token to config")
			}

			if deps.Config.OpenAIKey != "" {
				f.SetupCheck("OpenAI API key", true, "configured (needed for --summarize)")
			} else {
				f.SetupCheck("OpenAI API key", false, "not set. Set OPENAI_API_KEY or add openai_api_key to config")
			}

			f.SetupCheck("Data directory", true, deps.Config.DataDir)

			if ok {
				f.Success("\nReady to transcribe. Missing credentials only disable their optional stages.")
			} else {
				f.Warning("\nSome prerequisites are missing.")
			}
			return nil
		},
	}
}
