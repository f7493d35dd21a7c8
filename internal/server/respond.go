package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotstats/internal/services"
	"github.com/desertthunder/spotstats/internal/shared"
	"github.com/desertthunder/spotstats/internal/web"
)

// errorBody is the JSON shape of every API error.
type errorBody struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}

// writeJSON encodes v as the response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := shared.MarshalJSON(v, false)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Status: status, Error: message})
}

// faultStatus maps an aggregation error to a response status and the message
// shown to the user.
//
// Upstream faults keep their status when it is an error status, anything else
// becomes 502. A deadline becomes 504.
func faultStatus(err error) (int, string) {
	var fault *services.APIFault
	switch {
	case errors.As(err, &fault):
		status := fault.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		msg := fault.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		return status, msg
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Spotify did not respond in time"
	default:
		return http.StatusBadGateway, "Spotify request failed"
	}
}

// setRetryAfter copies a rate-limit hint from an upstream fault.
func setRetryAfter(w http.ResponseWriter, err error) {
	var fault *services.APIFault
	if errors.As(err, &fault) && fault.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(fault.RetryAfter.Seconds())))
	}
}

// renderError renders the error page, logging template failures.
func renderError(w http.ResponseWriter, pages *web.Renderer, logger *log.Logger, status int, title, message string) {
	page := web.ErrorPage{Status: status, Title: title, Message: message}
	if err := pages.RenderHTTP(w, status, web.PageError, page); err != nil {
		logger.Error("failed to render error page", "error", err)
	}
}
