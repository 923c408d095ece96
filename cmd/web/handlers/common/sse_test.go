package common

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func TestEventStreamWritesDataFrames(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	stream := NewEventStream(c)
	require.NoError(t, stream.Send(map[string]string{"type": "content", "content": "hi"}))
	require.NoError(t, stream.Send(map[string]string{"type": "complete"}))

	require.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
	require.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	body := rec.Body.String()
	require.Contains(t, body, "data: {\"content\":\"hi\",\"type\":\"content\"}\n\n")
	require.Contains(t, body, "data: {\"type\":\"complete\"}\n\n")
}
