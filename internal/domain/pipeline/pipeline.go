// Package pipeline sequences the transcription stages and decides, per stage,
// between aborting the run and degrading to the best available output.
//
// Transcription is mandatory; alignment, diarization and summarization are
// optional and their failures are captured in the per-stage status record
// instead of propagating. Speaker assignment and document building always run.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mikemuryn/VoiceNotes/internal/domain/transcript"
)

// Stage identifies one step of the pipeline.
type Stage string

const (
	StageTranscribe Stage = "transcribe"
	StageAlign      Stage = "align"
	StageDiarize    Stage = "diarize"
	StageAssign     Stage = "assign"
	StageBuild      Stage = "build"
	StageSummarize  Stage = "summarize"
)

// Stages lists every stage in execution order.
var Stages = []Stage{StageTranscribe, StageAlign, StageDiarize, StageAssign, StageBuild, StageSummarize}

// State is the outcome of one stage.
type State string

const (
	StateRan      State = "ran"
	StateSkipped  State = "skipped"
	StateDegraded State = "degraded"
	StateFailed   State = "failed"
)

// StageStatus records how a stage ended. Reason is set for degraded and
// failed stages.
type StageStatus struct {
	State  State
	Reason string
}

// TranscribeResult is the output of the transcription collaborator.
type TranscribeResult struct {
	Text     string
	Language string
	Segments []transcript.Segment
}

// Transcriber converts audio into timestamped text segments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language, prompt string) (*TranscribeResult, error)
}

// Aligner refines segments with word-level timing. It requires a language.
type Aligner interface {
	Align(ctx context.Context, audioPath string, segments []transcript.Segment, language string) ([]transcript.Segment, error)
}

// Diarizer produces speaker turns for the audio.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string, minSpeakers, maxSpeakers *int) ([]transcript.Turn, error)
}

// Summarizer turns the finished transcript text into a markdown summary.
type Summarizer interface {
	Summarize(ctx context.Context, transcriptText, model string) (string, error)
}

// RetryPolicy bounds retries of transient summarization failures.
type RetryPolicy struct {
	Attempts   int
	BaseDelay  time.Duration
	Multiplier float64
}

// DefaultRetryPolicy retries three times with exponential backoff.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, BaseDelay: time.Second, Multiplier: 2}

// Request is the immutable configuration for one run. Credentials are
// resolved by the caller before the run starts; stages never consult the
// environment themselves.
type Request struct {
	AudioPath string
	OutDir    string

	Model    string
	Device   string
	Language string
	Prompt   string

	Align     bool
	Diarize   bool
	Summarize bool

	MinSpeakers *int
	MaxSpeakers *int

	SummaryModel     string
	DiarizationToken string
	SummaryAPIKey    string

	WordSpanEpsilon float64
	StageTimeout    time.Duration
	Retry           RetryPolicy
}

// Validate rejects malformed requests before any stage runs.
func (r *Request) Validate() error {
	if r.AudioPath == "" {
		return &ConfigError{Reason: "audio path is required"}
	}
	if fi, err := os.Stat(r.AudioPath); err != nil {
		return &InputError{Path: r.AudioPath, Err: err}
	} else if fi.IsDir() {
		return &InputError{Path: r.AudioPath, Err: fmt.Errorf("is a directory")}
	}
	if r.Device != "" && r.Device != "cpu" && r.Device != "cuda" {
		return &ConfigError{Reason: fmt.Sprintf("invalid device %q: must be cpu or cuda", r.Device)}
	}
	if r.MinSpeakers != nil && *r.MinSpeakers < 1 {
		return &ConfigError{Reason: "min-speakers must be at least 1"}
	}
	if r.MaxSpeakers != nil && *r.MaxSpeakers < 1 {
		return &ConfigError{Reason: "max-speakers must be at least 1"}
	}
	if r.MinSpeakers != nil && r.MaxSpeakers != nil && *r.MinSpeakers > *r.MaxSpeakers {
		return &ConfigError{Reason: "min-speakers cannot be greater than max-speakers"}
	}
	return nil
}

// Document names written to the output directory.
const (
	DocTranscript       = "transcript.txt"
	DocSegments         = "segments.json"
	DocAlignedSegments  = "aligned_segments.json"
	DocDiarizedSegments = "diarized_segments.json"
	DocBySpeaker        = "transcript_by_speaker.txt"
	DocSummary          = "summary.md"
)

// Document is one produced output, not yet written to disk.
type Document struct {
	Name string
	Data []byte
}

// Result carries every document produced by completed stages plus the
// per-stage status record. A degraded run still holds all documents that the
// available data could produce.
type Result struct {
	Language  string
	Documents []Document
	Stages    map[Stage]StageStatus
}

// Degradations returns the stages that were requested but failed or degraded,
// in execution order.
func (r *Result) Degradations() []Stage {
	var out []Stage
	for _, s := range Stages {
		if st := r.Stages[s]; st.State == StateFailed || st.State == StateDegraded {
			out = append(out, s)
		}
	}
	return out
}

// Controller runs the stage sequence. Collaborators for optional stages may
// be nil only if those stages are never requested.
type Controller struct {
	Transcriber Transcriber
	Aligner     Aligner
	Diarizer    Diarizer
	Summarizer  Summarizer

	// OnStageStart, when set, is called before each stage executes.
	OnStageStart func(Stage)

	// Sleep is used between summary retries. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Run executes the pipeline for one request. It returns an error only for
// fatal outcomes: an invalid request, a transcription failure, an internal
// invariant violation, or cancellation. Optional-stage failures are recorded
// in the result and the run continues with the best available data.
func (c *Controller) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	res := &Result{Stages: make(map[Stage]StageStatus, len(Stages))}

	tr, err := c.transcribe(ctx, req)
	if err != nil {
		return nil, err
	}
	res.Stages[StageTranscribe] = StageStatus{State: StateRan}
	res.Language = req.Language
	if res.Language == "" {
		res.Language = tr.Language
	}

	segments := c.align(ctx, req, res, tr.Segments)
	turns := c.diarize(ctx, req, res)

	// Assignment runs even with zero turns so the output shape stays uniform;
	// it only counts as degraded when diarization was wanted but yielded nothing.
	fused := transcript.FuseSpeakers(segments, turns)
	if req.Diarize && len(turns) == 0 {
		res.Stages[StageAssign] = StageStatus{State: StateDegraded, Reason: "no diarization turns; speakers unassigned"}
	} else {
		res.Stages[StageAssign] = StageStatus{State: StateRan}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := c.build(req, res, tr, segments, fused); err != nil {
		return nil, err
	}

	c.summarize(ctx, req, res, tr)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Controller) transcribe(ctx context.Context, req Request) (*TranscribeResult, error) {
	c.stageStart(StageTranscribe)
	sctx, cancel := c.stageContext(ctx, req)
	defer cancel()
	tr, err := c.Transcriber.Transcribe(sctx, req.AudioPath, req.Language, req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("transcription: %w", err)
	}
	return tr, nil
}

// align runs the optional alignment stage. On any failure the run degrades to
// the unaligned segments, so downstream consumers lose word-level timing but
// nothing else.
func (c *Controller) align(ctx context.Context, req Request, res *Result, segments []transcript.Segment) []transcript.Segment {
	if !req.Align {
		res.Stages[StageAlign] = StageStatus{State: StateSkipped}
		return segments
	}
	if res.Language == "" {
		res.Stages[StageAlign] = StageStatus{
			State:  StateFailed,
			Reason: "alignment needs a language: pass --language or let transcription detect it",
		}
		return segments
	}
	c.stageStart(StageAlign)
	sctx, cancel := c.stageContext(ctx, req)
	defer cancel()
	aligned, err := c.Aligner.Align(sctx, req.AudioPath, segments, res.Language)
	if err != nil {
		res.Stages[StageAlign] = StageStatus{State: StateFailed, Reason: err.Error()}
		return segments
	}
	res.Stages[StageAlign] = StageStatus{State: StateRan}
	return aligned
}

func (c *Controller) diarize(ctx context.Context, req Request, res *Result) []transcript.Turn {
	if !req.Diarize {
		res.Stages[StageDiarize] = StageStatus{State: StateSkipped}
		return nil
	}
	if req.DiarizationToken == "" {
		res.Stages[StageDiarize] = StageStatus{State: StateFailed, Reason: "missing credential: set HUGGINGFACE_TOKEN"}
		return nil
	}
	c.stageStart(StageDiarize)
	sctx, cancel := c.stageContext(ctx, req)
	defer cancel()
	turns, err := c.Diarizer.Diarize(sctx, req.AudioPath, req.MinSpeakers, req.MaxSpeakers)
	if err != nil {
		res.Stages[StageDiarize] = StageStatus{State: StateFailed, Reason: err.Error()}
		return nil
	}
	res.Stages[StageDiarize] = StageStatus{State: StateRan}
	return turns
}

// build derives every document the available data allows. The diarized views
// are produced whenever diarization was requested, so a degraded run still
// shows its unassigned speakers explicitly instead of silently omitting files.
func (c *Controller) build(req Request, res *Result, tr *TranscribeResult, segments []transcript.Segment, fused []transcript.FusedSegment) error {
	c.stageStart(StageBuild)
	if err := transcript.ValidateFused(fused, req.WordSpanEpsilon); err != nil {
		return &InvariantError{Stage: StageBuild, Reason: err.Error()}
	}

	text := tr.Text
	if text == "" {
		text = transcript.PlainText(tr.Segments)
	}
	res.Documents = append(res.Documents, Document{Name: DocTranscript, Data: []byte(text)})

	raw, err := transcript.MarshalSegments(tr.Segments)
	if err != nil {
		return &InvariantError{Stage: StageBuild, Reason: err.Error()}
	}
	res.Documents = append(res.Documents, Document{Name: DocSegments, Data: raw})

	if res.Stages[StageAlign].State == StateRan {
		aligned, err := transcript.MarshalSegments(segments)
		if err != nil {
			return &InvariantError{Stage: StageBuild, Reason: err.Error()}
		}
		res.Documents = append(res.Documents, Document{Name: DocAlignedSegments, Data: aligned})
	}

	if req.Diarize {
		diarized, err := transcript.MarshalFused(fused)
		if err != nil {
			return &InvariantError{Stage: StageBuild, Reason: err.Error()}
		}
		res.Documents = append(res.Documents, Document{Name: DocDiarizedSegments, Data: diarized})

		bySpeaker := transcript.SpeakerText(transcript.SpeakerBlocks(fused))
		res.Documents = append(res.Documents, Document{Name: DocBySpeaker, Data: []byte(bySpeaker)})
	}

	res.Stages[StageBuild] = StageStatus{State: StateRan}
	return nil
}

func (c *Controller) summarize(ctx context.Context, req Request, res *Result, tr *TranscribeResult) {
	if !req.Summarize {
		res.Stages[StageSummarize] = StageStatus{State: StateSkipped}
		return
	}
	if req.SummaryAPIKey == "" {
		res.Stages[StageSummarize] = StageStatus{State: StateFailed, Reason: "missing credential: set OPENAI_API_KEY"}
		return
	}
	c.stageStart(StageSummarize)

	text := tr.Text
	if text == "" {
		text = transcript.PlainText(tr.Segments)
	}

	policy := req.Retry
	if policy.Attempts <= 0 {
		policy = DefaultRetryPolicy
	}
	sleep := c.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	delay := policy.BaseDelay
	for attempt := 0; attempt < policy.Attempts; attempt++ {
		if attempt > 0 {
			sleep(delay)
			delay = time.Duration(float64(delay) * policy.Multiplier)
		}
		sctx, cancel := c.stageContext(ctx, req)
		summary, err := c.Summarizer.Summarize(sctx, text, req.SummaryModel)
		cancel()
		if err == nil {
			res.Documents = append(res.Documents, Document{Name: DocSummary, Data: []byte(summary)})
			res.Stages[StageSummarize] = StageStatus{State: StateRan}
			return
		}
		lastErr = err
		if ctx.Err() != nil || !IsTransient(err) {
			break
		}
	}
	res.Stages[StageSummarize] = StageStatus{State: StateFailed, Reason: lastErr.Error()}
}

func (c *Controller) stageStart(s Stage) {
	if c.OnStageStart != nil {
		c.OnStageStart(s)
	}
}

func (c *Controller) stageContext(ctx context.Context, req Request) (context.Context, context.CancelFunc) {
	if req.StageTimeout > 0 {
		return context.WithTimeout(ctx, req.StageTimeout)
	}
	return context.WithCancel(ctx)
}
