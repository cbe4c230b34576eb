package documents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkTextShortInputSingleChunk(t *testing.T) {
	chunks := ChunkText("hello world", 1000, 200)
	require.Equal(t, []string{"hello world"}, chunks)
}

func TestChunkTextEmptyAndWhitespace(t *testing.T) {
	require.Nil(t, ChunkText("", 100, 20))
	require.Nil(t, ChunkText("   \n\t  ", 100, 20))
}

func TestChunkTextOverlap(t *testing.T) {
	text := strings.Repeat("a", 250)
	chunks := ChunkText(text, 100, 20)

	// Steps of 80 runes: starts at 0, 80, 160, 240.
	require.Len(t, chunks, 4)
	require.Len(t, chunks[0], 100)
	require.Len(t, chunks[1], 100)
	require.Len(t, chunks[2], 90)
	require.Len(t, chunks[3], 10)
}

func TestChunkTextAdjacentChunksShareOverlap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("segment")
	}
	chunks := ChunkText(b.String(), 100, 20)
	require.Greater(t, len(chunks), 1)

	// The last 20 runes of chunk N are the first 20 of chunk N+1.
	first := []rune(chunks[0])
	second := []rune(chunks[1])
	require.Equal(t, string(first[80:]), string(second[:20]))
}

func TestChunkTextCountsRunesNotBytes(t *testing.T) {
	text := strings.Repeat("日", 150)
	chunks := ChunkText(text, 100, 0)
	require.Len(t, chunks, 2)
	require.Equal(t, 100, len([]rune(chunks[0])))
	require.Equal(t, 50, len([]rune(chunks[1])))
}

func TestChunkTextFallbackDefaults(t *testing.T) {
	text := strings.Repeat("b", DefaultChunkSize+100)
	require.Equal(t, ChunkText(text, 0, -1), ChunkText(text, DefaultChunkSize, DefaultChunkOverlap))

	// Overlap >= size falls back rather than looping forever.
	chunks := ChunkText(strings.Repeat("c", 400), 100, 100)
	require.NotEmpty(t, chunks)
}
