package videos

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newStoragelessHandler() *Handler {
	return NewHandler(nil, nil, nil, nil, nil, "", zap.NewNop())
}

func TestUploadWithoutStorageReturns500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newStoragelessHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/videos/upload", nil)

	h.Upload(c)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "S3 not configured")
}

func TestExtractFramesWithoutStorageReturns500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newStoragelessHandler()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/videos/abc/frames/extract", nil)

	h.ExtractFrames(c)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Contains(t, w.Body.String(), "S3 not configured")
}
