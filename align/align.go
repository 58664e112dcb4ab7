// Package align assigns a diarization label to each transcript segment.
//
// For every segment the first rule that applies wins:
//
//  1. the first turn (in input order) containing the segment midpoint,
//     bounds inclusive;
//  2. the first turn overlapping the segment, max(starts) < min(ends);
//  3. the turn nearest by min(|s.start-t.end|, |s.end-t.start|), ties
//     going to the earlier turn;
//  4. recording.UnknownSpeaker when there are no turns.
//
// Assign is pure: inputs are never modified and equal inputs always give
// equal outputs.
package align

import (
	"math"

	"github.com/kbukum/remworker/recording"
)

// Assign returns a labeled copy of segments.
func Assign(segments []recording.Segment, turns []recording.Turn) []recording.LabeledSegment {
	out := make([]recording.LabeledSegment, len(segments))
	for i, s := range segments {
		out[i] = recording.LabeledSegment{Segment: s, Label: Label(s, turns)}
	}
	return out
}

// Label picks the label for a single segment.
func Label(s recording.Segment, turns []recording.Turn) string {
	if len(turns) == 0 {
		return recording.UnknownSpeaker
	}
	if t, ok := containing(s.Midpoint(), turns); ok {
		return t.Label
	}
	if t, ok := overlapping(s, turns); ok {
		return t.Label
	}
	return nearest(s, turns).Label
}

func containing(mid float64, turns []recording.Turn) (recording.Turn, bool) {
	for _, t := range turns {
		if t.Start <= mid && mid <= t.End {
			return t, true
		}
	}
	return recording.Turn{}, false
}

func overlapping(s recording.Segment, turns []recording.Turn) (recording.Turn, bool) {
	for _, t := range turns {
		if math.Max(s.Start, t.Start) < math.Min(s.End, t.End) {
			return t, true
		}
	}
	return recording.Turn{}, false
}

func nearest(s recording.Segment, turns []recording.Turn) recording.Turn {
	best := turns[0]
	bestDist := distance(s, best)
	for _, t := range turns[1:] {
		if d := distance(s, t); d < bestDist {
			best, bestDist = t, d
		}
	}
	return best
}

func distance(s recording.Segment, t recording.Turn) float64 {
	return math.Min(math.Abs(s.Start-t.End), math.Abs(s.End-t.Start))
}
