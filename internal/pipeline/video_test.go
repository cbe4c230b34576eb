package pipeline

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neurolearn/backend/internal/models"
	"github.com/neurolearn/backend/internal/transcription"
)

func makeSegments(n int) []models.TranscriptSegment {
	out := make([]models.TranscriptSegment, n)
	for i := range out {
		out[i] = models.TranscriptSegment{
			StartTime: float64(i * 10),
			EndTime:   float64(i*10 + 9),
			Text:      fmt.Sprintf("segment %d", i),
		}
	}
	return out
}

func TestKeyMomentsSpreadsAcrossTranscript(t *testing.T) {
	stamps := keyMoments(makeSegments(20), 200)
	require.Len(t, stamps, maxKeyMoments)
	require.Equal(t, 0.0, stamps[0].TimeSeconds)
	require.Equal(t, 40.0, stamps[1].TimeSeconds)
	require.Equal(t, 160.0, stamps[4].TimeSeconds)
	require.Equal(t, "segment 0", stamps[0].Label)
}

func TestKeyMomentsFewerSegmentsThanMax(t *testing.T) {
	stamps := keyMoments(makeSegments(2), 100)
	require.Len(t, stamps, 2)
	require.Equal(t, 0.0, stamps[0].TimeSeconds)
	require.Equal(t, 10.0, stamps[1].TimeSeconds)
}

func TestKeyMomentsEmpty(t *testing.T) {
	require.Nil(t, keyMoments(nil, 100))
}

func TestKeyMomentsTruncatesLongLabels(t *testing.T) {
	segs := []models.TranscriptSegment{{StartTime: 5, Text: strings.Repeat("x", 200)}}
	stamps := keyMoments(segs, 100)
	require.Len(t, stamps, 1)
	require.Equal(t, 80, len([]rune(stamps[0].Label)))
}

func TestKeyMomentsDropsOutOfRangeStarts(t *testing.T) {
	segs := []models.TranscriptSegment{
		{StartTime: 5, Text: "in range"},
		{StartTime: 500, Text: "beyond duration"},
	}
	stamps := keyMoments(segs, 100)
	for _, s := range stamps {
		require.LessOrEqual(t, s.TimeSeconds, 100.0)
	}
}

func TestSegmentsFromResultVerbose(t *testing.T) {
	conf := 0.92
	r := &transcription.Result{
		Text:       "full text",
		Confidence: &conf,
		Segments: []transcription.Segment{
			{Start: 0, End: 5, Text: " first "},
			{Start: 5, End: 10, Text: "   "},
			{Start: 10, End: 15, Text: "third"},
		},
	}
	segs := segmentsFromResult(r)
	require.Len(t, segs, 2)
	require.Equal(t, "first", segs[0].Text)
	require.Equal(t, "third", segs[1].Text)
	require.Equal(t, &conf, segs[0].Confidence)
}

func TestSegmentsFromResultFallbackSingleSegment(t *testing.T) {
	r := &transcription.Result{Text: " only text ", Duration: 42}
	segs := segmentsFromResult(r)
	require.Len(t, segs, 1)
	require.Equal(t, 0.0, segs[0].StartTime)
	require.Equal(t, 42.0, segs[0].EndTime)
	require.Equal(t, "only text", segs[0].Text)
}

func TestSegmentsFromResultEmpty(t *testing.T) {
	require.Nil(t, segmentsFromResult(&transcription.Result{Text: "  "}))
}

func TestJoinSegments(t *testing.T) {
	require.Equal(t, "a b c", joinSegments([]models.TranscriptSegment{
		{Text: "a"}, {Text: "b"}, {Text: "c"},
	}))
	require.Equal(t, "", joinSegments(nil))
}
