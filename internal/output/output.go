package output

import (
	"fmt"
	"io"
	"time"

	"github.com/mikemuryn/VoiceNotes/internal/domain/pipeline"
)

type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) Input(path string) {
	fmt.Fprintf(f.w, "🎙️  Input: %s\n", path)
}

func (f *Formatter) OutputDir(dir string) {
	fmt.Fprintf(f.w, "📁 Output dir: %s\n", dir)
}

func (f *Formatter) StageStart(stage pipeline.Stage) {
	switch stage {
	case pipeline.StageTranscribe:
		fmt.Fprintf(f.w, "📝 Transcribing audio...\n")
	case pipeline.StageAlign:
		fmt.Fprintf(f.w, "🔤 Aligning word timestamps...\n")
	case pipeline.StageDiarize:
		fmt.Fprintf(f.w, "🗣️  Diarizing speakers...\n")
	case pipeline.StageSummarize:
		fmt.Fprintf(f.w, "🤖 Generating summary...\n")
	}
}

func (f *Formatter) DetectedLanguage(lang string) {
	fmt.Fprintf(f.w, "🌐 Detected language: %s\n", lang)
}

func (f *Formatter) Wrote(path string) {
	fmt.Fprintf(f.w, "✅ Wrote: %s\n", path)
}

func (f *Formatter) StageProblem(stage pipeline.Stage, status pipeline.StageStatus) {
	fmt.Fprintf(f.w, "⚠️  Stage %s %s: %s\n", stage, status.State, status.Reason)
}

func (f *Formatter) RunComplete(dir string, duration time.Duration) {
	fmt.Fprintf(f.w, "\n📁 Done in %s: %s\n", formatDuration(duration), dir)
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "❌ %s\n", msg)
}

func (f *Formatter) Info(msg string) {
	fmt.Fprintf(f.w, "ℹ️  %s\n", msg)
}

func (f *Formatter) Success(msg string) {
	fmt.Fprintf(f.w, "✅ %s\n", msg)
}

func (f *Formatter) Warning(msg string) {
	fmt.Fprintf(f.w, "⚠️  %s\n", msg)
}

func (f *Formatter) RunListHeader() {
	fmt.Fprintf(f.w, "📼 Recent runs:\n\n")
}

func (f *Formatter) RunListItem(createdAt time.Time, audioPath, language string, degraded []pipeline.Stage) {
	status := "✅"
	if len(degraded) > 0 {
		status = "⚠️ "
	}
	line := fmt.Sprintf("  %s %s %s", status, createdAt.Format("2006-01-02 15:04"), audioPath)
	if language != "" {
		line += " (" + language + ")"
	}
	fmt.Fprintf(f.w, "%s\n", line)
}

func (f *Formatter) SetupCheck(name string, ok bool, detail string) {
	if ok {
		fmt.Fprintf(f.w, "  ✅ %s: %s\n", name, detail)
	} else {
		fmt.Fprintf(f.w, "  ❌ %s: %s\n", name, detail)
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
