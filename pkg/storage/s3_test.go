package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateMediaType(t *testing.T) {
	require.True(t, ValidateMediaType("video/mp4", "lecture.mp4"))
	require.True(t, ValidateMediaType("VIDEO/MP4", "lecture.bin"))
	require.True(t, ValidateMediaType("", "lecture.MOV"))
	require.True(t, ValidateMediaType("application/octet-stream", "audio.wav"))
	require.False(t, ValidateMediaType("application/pdf", "doc.pdf"))
	require.False(t, ValidateMediaType("", ""))
}

func TestValidateDocumentType(t *testing.T) {
	require.True(t, ValidateDocumentType("notes.docx"))
	require.True(t, ValidateDocumentType("notes.TXT"))
	require.True(t, ValidateDocumentType("readme.md"))
	require.False(t, ValidateDocumentType("sheet.xlsx"))
	require.False(t, ValidateDocumentType("noextension"))
}

func TestContentTypeForFilename(t *testing.T) {
	require.Equal(t, "video/mp4", ContentTypeForFilename("clip.mp4"))
	require.Equal(t, "audio/mpeg", ContentTypeForFilename("track.MP3"))
	require.Equal(t, "application/octet-stream", ContentTypeForFilename("mystery.xyz"))
}

func TestObjectKeys(t *testing.T) {
	require.Equal(t, "videos/vid-1/source.mp4", VideoKey("vid-1", "source.mp4"))
	require.Equal(t, "frames/vid-1/frame_001.jpg", FrameKey("vid-1", "frame_001.jpg"))
	require.Equal(t, "documents/doc-1/notes.docx", DocumentKey("doc-1", "notes.docx"))

	// Path components in the filename are stripped.
	require.Equal(t, "videos/vid-1/evil.mp4", VideoKey("vid-1", "../../evil.mp4"))
}
