package server

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"poe-router/internal/assembler"
)

// writeChatStream relays frames as server-sent events. Headers are sent with
// the first frame, so a failure before any output still gets a regular JSON
// error response. After that, a failure is reported in-band followed by the
// terminal sentinel.
func writeChatStream(c echo.Context, frames iter.Seq2[assembler.Frame, error]) error {
	res := c.Response()
	started := false

	for frame, err := range frames {
		if err != nil {
			if !started {
				return toHTTPError(err)
			}
			slog.Warn("backend stream failed mid-response", "uri", c.Request().RequestURI, "err", err)
			writeStreamError(res, err)
			return nil
		}

		if !started {
			startStream(res)
			started = true
		}

		payload, err := frame.Payload()
		if err != nil {
			slog.Error("failed to encode stream frame", "err", err)
			writeStreamError(res, err)
			return nil
		}
		if err := writeSSEData(res, payload); err != nil {
			slog.Debug("client went away", "err", err)
			return nil
		}
		res.Flush()
	}

	if !started {
		startStream(res)
		_ = writeSSEData(res, []byte("[DONE]"))
		res.Flush()
	}
	return nil
}

func startStream(res *echo.Response) {
	header := res.Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
}

func writeStreamError(res *echo.Response, err error) {
	data, marshalErr := json.Marshal(newErrorBody(toHTTPError(err)))
	if marshalErr == nil {
		_ = writeSSEData(res, data)
	}
	_ = writeSSEData(res, []byte("[DONE]"))
	res.Flush()
}

func writeSSEData(w io.Writer, payload []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
		return fmt.Errorf("write SSE data: %w", err)
	}
	return nil
}
