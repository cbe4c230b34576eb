package pipeline

import (
	"strconv"
	"strings"

	"github.com/neurolearn/backend/internal/models"
)

// ParseVTT converts WebVTT subtitle text into transcript segments. Cue
// settings after the timing line, voice tags and the WEBVTT header are
// dropped. Malformed cues are skipped.
func ParseVTT(raw string) []models.TranscriptSegment {
	var segments []models.TranscriptSegment
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])
		if !strings.Contains(line, "-->") {
			i++
			continue
		}

		parts := strings.SplitN(line, "-->", 2)
		start, okStart := parseVTTTime(strings.TrimSpace(parts[0]))
		endField := strings.Fields(strings.TrimSpace(parts[1]))
		if len(endField) == 0 {
			i++
			continue
		}
		end, okEnd := parseVTTTime(endField[0])
		if !okStart || !okEnd {
			i++
			continue
		}

		var text []string
		i++
		for i < len(lines) {
			t := strings.TrimSpace(lines[i])
			if t == "" {
				break
			}
			text = append(text, stripVTTTags(t))
			i++
		}
		joined := strings.TrimSpace(strings.Join(text, " "))
		if joined != "" {
			segments = append(segments, models.TranscriptSegment{
				StartTime: start,
				EndTime:   end,
				Text:      joined,
			})
		}
	}
	return segments
}

// parseVTTTime parses "HH:MM:SS.mmm" or "MM:SS.mmm" into seconds.
func parseVTTTime(s string) (float64, bool) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, false
	}
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, false
		}
		total = total*60 + v
	}
	return total, true
}

// stripVTTTags removes inline markup like <v Speaker> and <c> spans.
func stripVTTTags(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch r {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}
