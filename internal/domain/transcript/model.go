package transcript

import "fmt"

// Word is a sub-span of a Segment with its own timing, produced by alignment.
type Word struct {
	Start float64  `json:"start"`
	End   float64  `json:"end"`
	Text  string   `json:"text"`
	Score *float64 `json:"score,omitempty"`
}

// Segment is a transcribed span of speech. Words is empty until alignment runs.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Turn is a time span attributed to one speaker by diarization. Turns may have
// gaps between them (silence) and may rarely overlap (cross-talk).
type Turn struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

// FusedSegment is a Segment with an assigned speaker. Speaker is nil when
// diarization was not run or no turn could be matched.
type FusedSegment struct {
	Segment
	Speaker *string `json:"speaker"`
}

// Span is a plain time interval, the unit of speaker assignment.
type Span struct {
	Start float64
	End   float64
}

// Validate checks the structural invariants of a segment sequence: segments
// are chronological and non-overlapping, every span has end >= start, and word
// spans are non-decreasing and stay within their parent segment. Alignment
// models may slightly overrun segment bounds; epsilon is the tolerated
// overrun in seconds.
func Validate(segments []Segment, epsilon float64) error {
	for i, seg := range segments {
		if seg.End < seg.Start {
			return fmt.Errorf("segment %d: end %.3f before start %.3f", i, seg.End, seg.Start)
		}
		if i > 0 && seg.Start < segments[i-1].End {
			return fmt.Errorf("segment %d: overlaps previous segment (start %.3f < previous end %.3f)", i, seg.Start, segments[i-1].End)
		}
		prevStart := seg.Start
		for j, w := range seg.Words {
			if w.End < w.Start {
				return fmt.Errorf("segment %d word %d: end %.3f before start %.3f", i, j, w.End, w.Start)
			}
			if w.Start < prevStart {
				return fmt.Errorf("segment %d word %d: starts before previous word", i, j)
			}
			if w.Start < seg.Start-epsilon || w.End > seg.End+epsilon {
				return fmt.Errorf("segment %d word %d: span [%.3f, %.3f] outside segment [%.3f, %.3f]", i, j, w.Start, w.End, seg.Start, seg.End)
			}
			prevStart = w.Start
		}
	}
	return nil
}

// ValidateFused checks the same invariants over a fused sequence.
func ValidateFused(fused []FusedSegment, epsilon float64) error {
	segments := make([]Segment, len(fused))
	for i, f := range fused {
		segments[i] = f.Segment
	}
	return Validate(segments, epsilon)
}
