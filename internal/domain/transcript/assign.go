package transcript

import "math"

// Assign attaches a speaker label to every unit by maximum overlap with the
// diarization turns. Units with no overlapping turn fall back to the nearest
// turn by boundary distance. The result always has one entry per unit; entries
// are nil only when turns is empty.
//
// Ties on overlap (and on distance in the fallback) resolve to the turn with
// the earlier start, then to the lexicographically smaller speaker label, so
// the assignment is reproducible regardless of how the diarizer ordered its
// output.
func Assign(units []Span, turns []Turn) []*string {
	labels := make([]*string, len(units))
	if len(turns) == 0 {
		return labels
	}
	for i, u := range units {
		labels[i] = assignOne(u, turns)
	}
	return labels
}

func assignOne(u Span, turns []Turn) *string {
	best := -1
	bestOverlap := 0.0
	for i, t := range turns {
		ov := overlap(u, t)
		if ov <= 0 {
			continue
		}
		if best < 0 || ov > bestOverlap || (ov == bestOverlap && turnLess(t, turns[best])) {
			best = i
			bestOverlap = ov
		}
	}
	if best < 0 {
		// Unit sits entirely in a diarization gap: take the nearest turn.
		bestDist := math.Inf(1)
		for i, t := range turns {
			d := gap(u, t)
			if best < 0 || d < bestDist || (d == bestDist && turnLess(t, turns[best])) {
				best = i
				bestDist = d
			}
		}
	}
	speaker := turns[best].Speaker
	return &speaker
}

func overlap(u Span, t Turn) float64 {
	return math.Max(0, math.Min(u.End, t.End)-math.Max(u.Start, t.Start))
}

func gap(u Span, t Turn) float64 {
	return math.Min(math.Abs(u.Start-t.End), math.Abs(t.Start-u.End))
}

func turnLess(a, b Turn) bool {
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	return a.Speaker < b.Speaker
}

// FuseSpeakers labels every segment with a speaker. Segments carrying
// word-level timing are assigned word by word and take the duration-weighted
// majority label of their words; segments without words are assigned as a
// single span. With no turns every speaker is nil.
func FuseSpeakers(segments []Segment, turns []Turn) []FusedSegment {
	fused := make([]FusedSegment, len(segments))
	for i, seg := range segments {
		fused[i] = FusedSegment{Segment: seg}
		if len(seg.Words) == 0 {
			labels := Assign([]Span{{Start: seg.Start, End: seg.End}}, turns)
			fused[i].Speaker = labels[0]
			continue
		}
		units := make([]Span, len(seg.Words))
		for j, w := range seg.Words {
			units[j] = Span{Start: w.Start, End: w.End}
		}
		labels := Assign(units, turns)
		fused[i].Speaker = majorityLabel(seg.Words, labels)
	}
	return fused
}

// majorityLabel picks the label with the largest summed word duration. When
// durations tie, the earliest word carrying a tied label wins.
func majorityLabel(words []Word, labels []*string) *string {
	weights := make(map[string]float64)
	for i, l := range labels {
		if l == nil {
			continue
		}
		weights[*l] += words[i].End - words[i].Start
	}
	if len(weights) == 0 {
		return nil
	}
	max := math.Inf(-1)
	for _, w := range weights {
		if w > max {
			max = w
		}
	}
	for i, l := range labels {
		if l != nil && weights[*l] == max {
			speaker := *labels[i]
			return &speaker
		}
	}
	return nil
}
