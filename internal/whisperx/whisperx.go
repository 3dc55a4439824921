// Package whisperx shells out to a bundled python helper that drives the
// whisperx models for transcription, alignment and diarization. The helper is
// embedded in the binary and written to a temp file per invocation; results
// come back as JSON on stdout.
package whisperx

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mikemuryn/VoiceNotes/internal/domain/pipeline"
	"github.com/mikemuryn/VoiceNotes/internal/domain/transcript"
)

//go:embed assets/voicenotes_helper.py
var helperScript []byte

// Runner invokes the python helper. Python defaults to python3 on PATH.
type Runner struct {
	Python string
	Device string
}

func (r *Runner) run(ctx context.Context, subcommand string, args []string, stdin []byte, extraEnv []string, out any) error {
	dir := os.TempDir()
	scriptPath := filepath.Join(dir, "voicenotes_helper.py")
	if err := os.WriteFile(scriptPath, helperScript, 0o755); err != nil {
		return fmt.Errorf("writing helper script: %w", err)
	}
	defer os.Remove(scriptPath)

	python := r.Python
	if python == "" {
		python = "python3"
	}
	device := r.Device
	if device == "" {
		device = "cpu"
	}

	cmdArgs := append([]string{scriptPath, subcommand, "--device", device}, args...)
	cmd := exec.CommandContext(ctx, python, cmdArgs...)
	cmd.Env = append(os.Environ(), extraEnv...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("whisperx %s: %s", subcommand, lastLine(msg))
	}
	if err := json.Unmarshal(stdout, out); err != nil {
		return fmt.Errorf("parsing whisperx %s output: %w", subcommand, err)
	}
	return nil
}

// lastLine keeps error output readable; python tracebacks put the actual
// error on the final line.
func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// Transcriber runs the speech-to-text pass.
type Transcriber struct {
	Runner
	Model string
}

func (t *Transcriber) Transcribe(ctx context.Context, audioPath, language, prompt string) (*pipeline.TranscribeResult, error) {
	args := []string{"--audio", audioPath, "--model", t.Model}
	if language != "" {
		args = append(args, "--language", language)
	}
	if prompt != "" {
		args = append(args, "--prompt", prompt)
	}
	var out struct {
		Text     string               `json:"text"`
		Language string               `json:"language"`
		Segments []transcript.Segment `json:"segments"`
	}
	if err := t.run(ctx, "transcribe", args, nil, nil, &out); err != nil {
		return nil, err
	}
	for i := range out.Segments {
		out.Segments[i].Text = strings.TrimSpace(out.Segments[i].Text)
	}
	return &pipeline.TranscribeResult{
		Text:     strings.TrimSpace(out.Text),
		Language: out.Language,
		Segments: out.Segments,
	}, nil
}

// Aligner refines segments with per-word timing. The input segments are
// passed to the helper on stdin.
type Aligner struct {
	Runner
}

func (a *Aligner) Align(ctx context.Context, audioPath string, segments []transcript.Segment, language string) ([]transcript.Segment, error) {
	if len(segments) == 0 {
		return nil, nil
	}
	stdin, err := json.Marshal(segments)
	if err != nil {
		return nil, fmt.Errorf("encoding segments: %w", err)
	}
	args := []string{"--audio", audioPath, "--language", language}
	var out struct {
		Segments []transcript.Segment `json:"segments"`
	}
	if err := a.run(ctx, "align", args, stdin, nil, &out); err != nil {
		return nil, err
	}
	for i := range out.Segments {
		out.Segments[i].Text = strings.TrimSpace(out.Segments[i].Text)
	}
	return out.Segments, nil
}

// Diarizer produces speaker turns. The HuggingFace token is handed to the
// helper through the environment, never on the command line.
type Diarizer struct {
	Runner
	Token string
}

func (d *Diarizer) Diarize(ctx context.Context, audioPath string, minSpeakers, maxSpeakers *int) ([]transcript.Turn, error) {
	args := []string{"--audio", audioPath}
	if minSpeakers != nil {
		args = append(args, "--min-speakers", strconv.Itoa(*minSpeakers))
	}
	if maxSpeakers != nil {
		args = append(args, "--max-speakers", strconv.Itoa(*maxSpeakers))
	}
	var out struct {
		Turns []transcript.Turn `json:"turns"`
	}
	env := []string{"HUGGINGFACE_TOKEN=" + d.Token}
	if err := d.run(ctx, "diarize", args, nil, env, &out); err != nil {
		return nil, err
	}
	return out.Turns, nil
}
