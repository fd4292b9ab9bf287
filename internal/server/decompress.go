package server

import (
	"net/http"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/labstack/echo/v4"
)

// decompressZstd inflates request bodies sent with Content-Encoding: zstd.
// Gzip is handled by echo's own Decompress middleware.
func decompressZstd() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !strings.EqualFold(strings.TrimSpace(req.Header.Get(echo.HeaderContentEncoding)), "zstd") {
				return next(c)
			}

			zr, err := zstd.NewReader(req.Body)
			if err != nil {
				return requestError{
					Status:  http.StatusBadRequest,
					Message: "invalid zstd body",
					Type:    "invalid_request_error",
				}
			}
			defer zr.Close()

			req.Body = zr.IOReadCloser()
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)
			req.ContentLength = -1
			return next(c)
		}
	}
}
