package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleVTT = `WEBVTT
Kind: captions
Language: en

00:00:01.000 --> 00:00:04.500
Welcome to the course.

00:00:04.500 --> 00:00:08.000 align:start position:0%
<v Instructor>Today we cover <c.colorCCCCCC>data structures</c>.

00:01:10.250 --> 00:01:15.000
Second minute
continues here.
`

func TestParseVTT(t *testing.T) {
	segments := ParseVTT(sampleVTT)
	require.Len(t, segments, 3)

	require.Equal(t, 1.0, segments[0].StartTime)
	require.Equal(t, 4.5, segments[0].EndTime)
	require.Equal(t, "Welcome to the course.", segments[0].Text)

	// Cue settings after the end time and inline tags are stripped.
	require.Equal(t, 4.5, segments[1].StartTime)
	require.Equal(t, 8.0, segments[1].EndTime)
	require.Equal(t, "Today we cover data structures.", segments[1].Text)

	// Multi-line cue text is joined with a space.
	require.Equal(t, 70.25, segments[2].StartTime)
	require.Equal(t, "Second minute continues here.", segments[2].Text)
}

func TestParseVTTCRLFAndEmpty(t *testing.T) {
	crlf := "WEBVTT\r\n\r\n00:05.000 --> 00:07.000\r\nshort form timing\r\n"
	segments := ParseVTT(crlf)
	require.Len(t, segments, 1)
	require.Equal(t, 5.0, segments[0].StartTime)
	require.Equal(t, "short form timing", segments[0].Text)

	require.Empty(t, ParseVTT(""))
	require.Empty(t, ParseVTT("WEBVTT\n\nno cues here\n"))
}

func TestParseVTTSkipsMalformedCues(t *testing.T) {
	raw := `WEBVTT

bogus --> alsobogus
dropped text

00:00:02.000 -->
no end time

00:00:03.000 --> 00:00:05.000
kept
`
	segments := ParseVTT(raw)
	require.Len(t, segments, 1)
	require.Equal(t, "kept", segments[0].Text)
}

func TestParseVTTTime(t *testing.T) {
	v, ok := parseVTTTime("00:00:01.500")
	require.True(t, ok)
	require.Equal(t, 1.5, v)

	v, ok = parseVTTTime("01:02:03.250")
	require.True(t, ok)
	require.Equal(t, 3723.25, v)

	v, ok = parseVTTTime("02:30.000")
	require.True(t, ok)
	require.Equal(t, 150.0, v)

	_, ok = parseVTTTime("90")
	require.False(t, ok)
	_, ok = parseVTTTime("1:2:3:4")
	require.False(t, ok)
	_, ok = parseVTTTime("aa:bb")
	require.False(t, ok)
}

func TestStripVTTTags(t *testing.T) {
	require.Equal(t, "hello world", stripVTTTags("<v Speaker>hello <b>world</b>"))
	require.Equal(t, "plain", stripVTTTags("plain"))
	require.Equal(t, "", stripVTTTags("<c.color>"))
}
