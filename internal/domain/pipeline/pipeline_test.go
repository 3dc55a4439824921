package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikemuryn/VoiceNotes/internal/domain/transcript"
)

type fakeTranscriber struct {
	res *TranscribeResult
	err error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audioPath, language, prompt string) (*TranscribeResult, error) {
	return f.res, f.err
}

type fakeAligner struct {
	segments []transcript.Segment
	err      error
	called   bool
	language string
}

func (f *fakeAligner) Align(ctx context.Context, audioPath string, segments []transcript.Segment, language string) ([]transcript.Segment, error) {
	f.called = true
	f.language = language
	return f.segments, f.err
}

type fakeDiarizer struct {
	turns  []transcript.Turn
	err    error
	called bool
}

func (f *fakeDiarizer) Diarize(ctx context.Context, audioPath string, minSpeakers, maxSpeakers *int) ([]transcript.Turn, error) {
	f.called = true
	return f.turns, f.err
}

type fakeSummarizer struct {
	errs    []error
	summary string
	calls   int
}

func (f *fakeSummarizer) Summarize(ctx context.Context, transcriptText, model string) (string, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return f.summary, nil
}

type transientErr struct{ msg string }

func (e *transientErr) Error() string   { return e.msg }
func (e *transientErr) Transient() bool { return true }

func baseSegments() []transcript.Segment {
	return []transcript.Segment{
		{Start: 0, End: 2, Text: "Hello there."},
		{Start: 2, End: 4, Text: "General Kenobi."},
	}
}

func baseTranscriber() *fakeTranscriber {
	return &fakeTranscriber{res: &TranscribeResult{
		Text:     "Hello there. General Kenobi.",
		Language: "en",
		Segments: baseSegments(),
	}}
}

func testRequest(t *testing.T) Request {
	t.Helper()
	audio := filepath.Join(t.TempDir(), "note.wav")
	if err := os.WriteFile(audio, []byte("riff"), 0o644); err != nil {
		t.Fatal(err)
	}
	return Request{AudioPath: audio, Model: "small", Device: "cpu"}
}

func docNames(res *Result) []string {
	names := make([]string, len(res.Documents))
	for i, d := range res.Documents {
		names[i] = d.Name
	}
	return names
}

func findDoc(t *testing.T, res *Result, name string) Document {
	t.Helper()
	for _, d := range res.Documents {
		if d.Name == name {
			return d
		}
	}
	t.Fatalf("document %s not produced; have %v", name, docNames(res))
	return Document{}
}

func TestRunMinimal(t *testing.T) {
	c := &Controller{Transcriber: baseTranscriber()}
	res, err := c.Run(context.Background(), testRequest(t))
	if err != nil {
		t.Fatal(err)
	}

	if got := res.Stages[StageTranscribe].State; got != StateRan {
		t.Errorf("transcribe state = %s", got)
	}
	for _, s := range []Stage{StageAlign, StageDiarize, StageSummarize} {
		if got := res.Stages[s].State; got != StateSkipped {
			t.Errorf("%s state = %s, want skipped", s, got)
		}
	}
	if got := res.Stages[StageAssign].State; got != StateRan {
		t.Errorf("assign state = %s", got)
	}
	if got := res.Stages[StageBuild].State; got != StateRan {
		t.Errorf("build state = %s", got)
	}
	if res.Language != "en" {
		t.Errorf("language = %q", res.Language)
	}

	doc := findDoc(t, res, DocTranscript)
	if string(doc.Data) != "Hello there. General Kenobi." {
		t.Errorf("transcript = %q", doc.Data)
	}
	findDoc(t, res, DocSegments)
	if len(res.Documents) != 2 {
		t.Errorf("unexpected documents: %v", docNames(res))
	}
}

func TestRunTranscribeFailureIsFatal(t *testing.T) {
	c := &Controller{Transcriber: &fakeTranscriber{err: fmt.Errorf("model exploded")}}
	if _, err := c.Run(context.Background(), testRequest(t)); err == nil {
		t.Fatal("expected fatal error")
	}
}

func TestRunDiarizeWithoutCredentialDegrades(t *testing.T) {
	diarizer := &fakeDiarizer{}
	c := &Controller{Transcriber: baseTranscriber(), Diarizer: diarizer}
	req := testRequest(t)
	req.Diarize = true // no DiarizationToken

	res, err := c.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("degradation must not abort: %v", err)
	}
	if diarizer.called {
		t.Error("diarizer must not run without a credential")
	}
	st := res.Stages[StageDiarize]
	if st.State != StateFailed || st.Reason == "" {
		t.Errorf("diarize status = %+v, want failed with reason", st)
	}

	// The speaker views are still produced, with explicit unknowns.
	diarized := findDoc(t, res, DocDiarizedSegments)
	if want := []byte(`"speaker": null`); !containsBytes(diarized.Data, want) {
		t.Errorf("diarized dump should carry null speakers:\n%s", diarized.Data)
	}
	bySpeaker := findDoc(t, res, DocBySpeaker)
	if want := transcript.UnknownSpeaker + ":"; !containsBytes(bySpeaker.Data, []byte(want)) {
		t.Errorf("by-speaker view = %q, want %q prefix", bySpeaker.Data, want)
	}
}

func TestRunDiarizeAssignsSpeakers(t *testing.T) {
	diarizer := &fakeDiarizer{turns: []transcript.Turn{
		{Start: 0, End: 2, Speaker: "SPEAKER_00"},
		{Start: 2, End: 4, Speaker: "SPEAKER_01"},
	}}
	c := &Controller{Transcriber: baseTranscriber(), Diarizer: diarizer}
	req := testRequest(t)
	req.Diarize = true
	req.DiarizationToken = "hf_token"

	res, err := c.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Stages[StageDiarize].State; got != StateRan {
		t.Errorf("diarize state = %s", got)
	}
	if got := res.Stages[StageAssign].State; got != StateRan {
		t.Errorf("assign state = %s", got)
	}
	bySpeaker := findDoc(t, res, DocBySpeaker)
	want := "SPEAKER_00: Hello there.\nSPEAKER_01: General Kenobi."
	if string(bySpeaker.Data) != want {
		t.Errorf("by-speaker view = %q, want %q", bySpeaker.Data, want)
	}
}

func TestRunAlignWithoutLanguageDegrades(t *testing.T) {
	aligner := &fakeAligner{}
	tr := baseTranscriber()
	tr.res.Language = "" // detection failed, no flag
	c := &Controller{Transcriber: tr, Aligner: aligner}
	req := testRequest(t)
	req.Align = true

	res, err := c.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("degradation must not abort: %v", err)
	}
	if aligner.called {
		t.Error("aligner must not run without a language")
	}
	if st := res.Stages[StageAlign]; st.State != StateFailed || st.Reason == "" {
		t.Errorf("align status = %+v", st)
	}
	for _, d := range res.Documents {
		if d.Name == DocAlignedSegments {
			t.Error("aligned dump produced without alignment")
		}
	}
}

func TestRunAlignProducesWordLevelDump(t *testing.T) {
	aligned := baseSegments()
	aligned[0].Words = []transcript.Word{
		{Start: 0, End: 0.8, Text: "Hello"},
		{Start: 0.9, End: 2, Text: "there."},
	}
	aligner := &fakeAligner{segments: aligned}
	c := &Controller{Transcriber: baseTranscriber(), Aligner: aligner}
	req := testRequest(t)
	req.Align = true

	res, err := c.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if aligner.language != "en" {
		t.Errorf("aligner got language %q, want detected en", aligner.language)
	}
	doc := findDoc(t, res, DocAlignedSegments)
	if !containsBytes(doc.Data, []byte(`"words"`)) {
		t.Errorf("aligned dump has no words:\n%s", doc.Data)
	}
}

func TestRunAlignFailureFallsBackToSegments(t *testing.T) {
	aligner := &fakeAligner{err: fmt.Errorf("alignment model missing")}
	diarizer := &fakeDiarizer{turns: []transcript.Turn{{Start: 0, End: 4, Speaker: "A"}}}
	c := &Controller{Transcriber: baseTranscriber(), Aligner: aligner, Diarizer: diarizer}
	req := testRequest(t)
	req.Align = true
	req.Diarize = true
	req.DiarizationToken = "hf_token"

	res, err := c.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if st := res.Stages[StageAlign]; st.State != StateFailed {
		t.Errorf("align status = %+v", st)
	}
	// Diarization still assigns at segment granularity.
	if got := res.Stages[StageAssign].State; got != StateRan {
		t.Errorf("assign state = %s", got)
	}
	bySpeaker := findDoc(t, res, DocBySpeaker)
	if !containsBytes(bySpeaker.Data, []byte("A:")) {
		t.Errorf("by-speaker view = %q", bySpeaker.Data)
	}
}

func TestRunSummarizeMissingKeyDegrades(t *testing.T) {
	summarizer := &fakeSummarizer{summary: "## Summary"}
	c := &Controller{Transcriber: baseTranscriber(), Summarizer: summarizer}
	req := testRequest(t)
	req.Summarize = true // no SummaryAPIKey

	res, err := c.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("degradation must not abort: %v", err)
	}
	if summarizer.calls != 0 {
		t.Error("summarizer must not run without a credential")
	}
	if st := res.Stages[StageSummarize]; st.State != StateFailed {
		t.Errorf("summarize status = %+v", st)
	}
}

func TestRunSummarizeRetriesTransientErrors(t *testing.T) {
	summarizer := &fakeSummarizer{
		errs:    []error{&transientErr{msg: "rate limited"}, &transientErr{msg: "rate limited"}},
		summary: "## Summary",
	}
	var delays []time.Duration
	c := &Controller{
		Transcriber: baseTranscriber(),
		Summarizer:  summarizer,
		Sleep:       func(d time.Duration) { delays = append(delays, d) },
	}
	req := testRequest(t)
	req.Summarize = true
	req.SummaryAPIKey = "sk-test"
	req.SummaryModel = "gpt-4o-mini"
	req.Retry = RetryPolicy{Attempts: 3, BaseDelay: 100 * time.Millisecond, Multiplier: 2}

	res, err := c.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if summarizer.calls != 3 {
		t.Errorf("summarizer called %d times, want 3", summarizer.calls)
	}
	if len(delays) != 2 || delays[0] != 100*time.Millisecond || delays[1] != 200*time.Millisecond {
		t.Errorf("backoff delays = %v", delays)
	}
	if got := res.Stages[StageSummarize].State; got != StateRan {
		t.Errorf("summarize state = %s", got)
	}
	doc := findDoc(t, res, DocSummary)
	if string(doc.Data) != "## Summary" {
		t.Errorf("summary = %q", doc.Data)
	}
}

func TestRunSummarizeExhaustedRetriesDegrade(t *testing.T) {
	summarizer := &fakeSummarizer{errs: []error{
		&transientErr{msg: "boom"}, &transientErr{msg: "boom"}, &transientErr{msg: "boom"},
	}}
	c := &Controller{
		Transcriber: baseTranscriber(),
		Summarizer:  summarizer,
		Sleep:       func(time.Duration) {},
	}
	req := testRequest(t)
	req.Summarize = true
	req.SummaryAPIKey = "sk-test"
	req.Retry = RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}

	res, err := c.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("exhausted retries must not abort: %v", err)
	}
	if summarizer.calls != 3 {
		t.Errorf("summarizer called %d times, want 3", summarizer.calls)
	}
	if st := res.Stages[StageSummarize]; st.State != StateFailed || st.Reason == "" {
		t.Errorf("summarize status = %+v", st)
	}
	// Earlier documents remain valid output.
	findDoc(t, res, DocTranscript)
}

func TestRunSummarizeDoesNotRetryPermanentErrors(t *testing.T) {
	summarizer := &fakeSummarizer{errs: []error{fmt.Errorf("invalid model")}}
	c := &Controller{
		Transcriber: baseTranscriber(),
		Summarizer:  summarizer,
		Sleep:       func(time.Duration) { t.Error("must not sleep on permanent error") },
	}
	req := testRequest(t)
	req.Summarize = true
	req.SummaryAPIKey = "sk-test"

	res, err := c.Run(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if summarizer.calls != 1 {
		t.Errorf("summarizer called %d times, want 1", summarizer.calls)
	}
	if st := res.Stages[StageSummarize]; st.State != StateFailed {
		t.Errorf("summarize status = %+v", st)
	}
}

func TestRunMalformedSegmentsAreFatal(t *testing.T) {
	tr := &fakeTranscriber{res: &TranscribeResult{
		Text:     "broken",
		Segments: []transcript.Segment{{Start: 5, End: 1, Text: "broken"}},
	}}
	c := &Controller{Transcriber: tr}
	_, err := c.Run(context.Background(), testRequest(t))
	var invariant *InvariantError
	if !errors.As(err, &invariant) {
		t.Fatalf("err = %v, want InvariantError", err)
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tr := &fakeTranscriber{res: &TranscribeResult{Text: "x", Segments: baseSegments()}}
	c := &Controller{Transcriber: tr}
	cancel()
	if _, err := c.Run(ctx, testRequest(t)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestRequestValidate(t *testing.T) {
	one, three := 1, 3

	req := testRequest(t)
	if err := req.Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}

	missing := req
	missing.AudioPath = filepath.Join(t.TempDir(), "nope.wav")
	var inputErr *InputError
	if err := missing.Validate(); !errors.As(err, &inputErr) {
		t.Errorf("missing audio: err = %v, want InputError", err)
	}

	badDevice := req
	badDevice.Device = "tpu"
	var cfgErr *ConfigError
	if err := badDevice.Validate(); !errors.As(err, &cfgErr) {
		t.Errorf("bad device: err = %v, want ConfigError", err)
	}

	swapped := req
	swapped.MinSpeakers = &three
	swapped.MaxSpeakers = &one
	if err := swapped.Validate(); !errors.As(err, &cfgErr) {
		t.Errorf("min > max: err = %v, want ConfigError", err)
	}

	bounded := req
	bounded.MinSpeakers = &one
	bounded.MaxSpeakers = &three
	if err := bounded.Validate(); err != nil {
		t.Errorf("min <= max rejected: %v", err)
	}
}

func containsBytes(haystack, needle []byte) bool {
	return bytes.Contains(haystack, needle)
}
