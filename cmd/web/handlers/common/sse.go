package common

import (
	"encoding/json"
	"fmt"

	"github.com/labstack/echo/v4"
)

// EventStream writes JSON-bodied server-sent events over an echo response.
// X-Accel-Buffering disables proxy buffering so tokens reach the client as
// they are generated.
type EventStream struct {
	resp *echo.Response
}

func NewEventStream(c echo.Context) *EventStream {
	h := c.Response().Header()
	h.Set(echo.HeaderContentType, "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(200)
	return &EventStream{resp: c.Response()}
}

// Send writes one data frame and flushes it immediately.
func (s *EventStream) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal sse event: %w", err)
	}
	if _, err := fmt.Fprintf(s.resp, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write sse event: %w", err)
	}
	s.resp.Flush()
	return nil
}
