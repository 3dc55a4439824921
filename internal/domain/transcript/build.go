package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// UnknownSpeaker labels unattributed runs in the speaker-grouped view. The
// underlying Speaker field stays nil; the label exists only in that rendering.
const UnknownSpeaker = "UNKNOWN"

// Block is a run of consecutive segments attributed to one speaker.
type Block struct {
	Start   float64
	End     float64
	Speaker string
	Text    string
}

// PlainText joins segment texts in order with single spaces, skipping
// segments whose text is blank.
func PlainText(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// MarshalSegments serializes segments with the fixed key order
// start, end, text, words. Output is byte-identical for identical input.
func MarshalSegments(segments []Segment) ([]byte, error) {
	return marshalIndent(segments)
}

// MarshalFused serializes fused segments with the fixed key order
// start, end, text, words, speaker. Speaker is null when unassigned.
func MarshalFused(fused []FusedSegment) ([]byte, error) {
	return marshalIndent(fused)
}

func marshalIndent(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("serializing segments: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// SpeakerBlocks groups consecutive fused segments by speaker. A change of
// speaker, including a transition to or from an unassigned segment, starts a
// new block. Unassigned runs are rendered under the UNKNOWN label.
func SpeakerBlocks(fused []FusedSegment) []Block {
	var blocks []Block
	for _, f := range fused {
		label := UnknownSpeaker
		if f.Speaker != nil {
			label = *f.Speaker
		}
		text := strings.TrimSpace(f.Text)
		if n := len(blocks); n > 0 && blocks[n-1].Speaker == label {
			blocks[n-1].End = f.End
			if text != "" {
				if blocks[n-1].Text != "" {
					blocks[n-1].Text += " "
				}
				blocks[n-1].Text += text
			}
			continue
		}
		blocks = append(blocks, Block{Start: f.Start, End: f.End, Speaker: label, Text: text})
	}
	return blocks
}

// SpeakerText renders blocks as a readable transcript, one block per line.
func SpeakerText(blocks []Block) string {
	lines := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Text == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", b.Speaker, b.Text))
	}
	return strings.Join(lines, "\n")
}
