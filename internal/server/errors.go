package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"poe-router/internal/provider"
	"poe-router/internal/translator"
)

type requestError struct {
	Status  int
	Message string
	Type    string
	Code    string
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}

func newErrorBody(reqErr requestError) errorBody {
	return errorBody{Error: errorDetail{
		Message: reqErr.Message,
		Type:    reqErr.Type,
		Code:    reqErr.Code,
	}}
}

func writeError(c echo.Context, reqErr requestError) error {
	return c.JSON(reqErr.Status, newErrorBody(reqErr))
}

func openAIErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		slog.Warn("error after response was committed", "uri", c.Request().RequestURI, "err", err)
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = writeError(c, reqErr)
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		errType := "invalid_request_error"
		if he.Code >= http.StatusInternalServerError {
			errType = "server_error"
		}
		_ = writeError(c, requestError{Status: he.Code, Message: fmt.Sprint(he.Message), Type: errType})
		return
	}

	slog.Error("unhandled error", "uri", c.Request().RequestURI, "err", err)
	_ = writeError(c, requestError{
		Status:  http.StatusInternalServerError,
		Message: "internal server error",
		Type:    "server_error",
	})
}

// toHTTPError maps pipeline failures onto OpenAI-style error responses.
func toHTTPError(err error) requestError {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	if errors.Is(err, translator.ErrInvalidRole) {
		return requestError{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
			Type:    "invalid_request_error",
		}
	}
	if errors.Is(err, provider.ErrUnknownModel) {
		return requestError{
			Status:  http.StatusNotFound,
			Message: err.Error(),
			Type:    "invalid_request_error",
			Code:    "model_not_found",
		}
	}
	if errors.Is(err, provider.ErrMissingAPIKey) {
		return requestError{
			Status:  http.StatusUnauthorized,
			Message: err.Error(),
			Type:    "authentication_error",
		}
	}

	var backendErr *provider.BackendError
	if errors.As(err, &backendErr) {
		switch backendErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return requestError{
				Status:  http.StatusUnauthorized,
				Message: backendErr.Message,
				Type:    "authentication_error",
			}
		case http.StatusTooManyRequests:
			return requestError{
				Status:  http.StatusTooManyRequests,
				Message: backendErr.Message,
				Type:    "rate_limit_error",
			}
		}
		return requestError{
			Status:  http.StatusBadGateway,
			Message: backendErr.Message,
			Type:    "upstream_error",
		}
	}

	if errors.Is(err, context.Canceled) {
		return requestError{
			Status:  http.StatusBadGateway,
			Message: "request cancelled",
			Type:    "upstream_error",
		}
	}

	slog.Error("upstream request failed", "err", err)
	return requestError{
		Status:  http.StatusBadGateway,
		Message: "upstream provider error",
		Type:    "upstream_error",
	}
}
