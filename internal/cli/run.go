package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mikemuryn/VoiceNotes/internal/app"
	"github.com/mikemuryn/VoiceNotes/internal/domain/pipeline"
	"github.com/mikemuryn/VoiceNotes/internal/output"
	"github.com/mikemuryn/VoiceNotes/internal/store"
	"github.com/mikemuryn/VoiceNotes/internal/writer"
)

func NewRunCmd(deps *Dependencies) *cobra.Command {
	var (
		model        string
		device       string
		language     string
		prompt       string
		align        bool
		diarize      bool
		minSpeakers  int
		maxSpeakers  int
		doSummarize  bool
		summaryModel string
		outDir       string
	)

	cmd := &cobra.Command{
		Use:   "run <audio-file>",
		Short: "Transcribe an audio or video file",
		Long:  "Run the transcription pipeline on a file.\nOptional stages (--align, --diarize, --summarize) that cannot run degrade the output instead of aborting.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := output.NewFormatter(os.Stdout)

			audioPath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			req := pipeline.Request{
				AudioPath:        audioPath,
				OutDir:           outDir,
				Model:            model,
				Device:           device,
				Language:         language,
				Prompt:           prompt,
				Align:            align,
				Diarize:          diarize,
				Summarize:        doSummarize,
				MinSpeakers:      optionalInt(minSpeakers),
				MaxSpeakers:      optionalInt(maxSpeakers),
				SummaryModel:     summaryModel,
				DiarizationToken: deps.Config.HFToken,
				SummaryAPIKey:    deps.Config.OpenAIKey,
				WordSpanEpsilon:  deps.Config.WordSpanEpsilon,
				StageTimeout:     deps.Config.StageTimeout,
				Retry:            app.Retry(deps.Config),
			}
			if req.Model == "" {
				req.Model = deps.Config.Model
			}
			if req.Device == "" {
				req.Device = deps.Config.Device
			}
			if req.SummaryModel == "" {
				req.SummaryModel = deps.Config.SummaryModel
			}
			if req.OutDir == "" {
				req.OutDir = writer.DefaultOutputDir(audioPath)
			}

			return runPipeline(deps, req, formatter)
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "Whisper model (default from config, \"small\")")
	cmd.Flags().StringVar(&device, "device", "", "Device: cpu or cuda (default from config)")
	cmd.Flags().StringVar(&language, "language", "", "Language code, e.g. en (default: auto-detect)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Initial prompt for Whisper")
	cmd.Flags().BoolVar(&align, "align", false, "Run WhisperX alignment for word-level timestamps")
	cmd.Flags().BoolVar(&diarize, "diarize", false, "Run diarization and output transcript_by_speaker.txt")
	cmd.Flags().IntVar(&minSpeakers, "min-speakers", 0, "Minimum number of speakers")
	cmd.Flags().IntVar(&maxSpeakers, "max-speakers", 0, "Maximum number of speakers")
	cmd.Flags().BoolVar(&doSummarize, "summarize", false, "Generate summary.md using the completion API")
	cmd.Flags().StringVar(&summaryModel, "summary-model", "", "Completion model for the summary")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: audio file's directory)")

	return cmd
}

func runPipeline(deps *Dependencies, req pipeline.Request, formatter *output.Formatter) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	formatter.Input(req.AudioPath)
	formatter.OutputDir(req.OutDir)

	controller := deps.App.Controller(req.Model, req.Device)
	controller.OnStageStart = formatter.StageStart

	started := time.Now()
	res, err := controller.Run(ctx, req)
	if err != nil {
		return err
	}

	if res.Language != "" {
		formatter.DetectedLanguage(res.Language)
	}

	if err := writer.WriteDocuments(req.OutDir, res.Documents, formatter.Wrote); err != nil {
		return err
	}

	for _, stage := range res.Degradations() {
		formatter.StageProblem(stage, res.Stages[stage])
	}

	run := &store.Run{
		ID:        uuid.NewString(),
		AudioPath: req.AudioPath,
		OutDir:    req.OutDir,
		Model:     req.Model,
		Device:    req.Device,
		Language:  res.Language,
		Stages:    res.Stages,
		Duration:  time.Since(started),
		CreatedAt: started,
	}
	if err := deps.App.Runs.Save(run); err != nil {
		// Run history is a convenience; the documents are already on disk.
		formatter.Warning("could not record run history: " + err.Error())
	}

	formatter.RunComplete(req.OutDir, time.Since(started))
	return nil
}

func optionalInt(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}
