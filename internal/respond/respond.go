// Package respond writes the JSON envelopes shared by the HTTP layer.
package respond

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/formwise/authcore"
)

const maxBodyBytes = 1 << 20

type envelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
}

type errorEnvelope struct {
	StatusCode int                   `json:"statusCode"`
	Message    string                `json:"message"`
	Reason     string                `json:"reason"`
	Errors     []authcore.FieldError `json:"errors"`
}

// JSON writes a success envelope.
func JSON(w http.ResponseWriter, status int, message string, data any) {
	if message == "" {
		message = http.StatusText(status)
	}
	write(w, status, envelope{StatusCode: status, Message: message, Data: data})
}

// Error writes the error envelope for err. Server-side failures are logged
// with the request logger; their causes never reach the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	typed := authcore.AsError(err)
	if typed.Status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Str("reason", typed.Reason).Msg("request failed")
	}

	fields := typed.Fields
	if fields == nil {
		fields = []authcore.FieldError{}
	}
	write(w, typed.Status, errorEnvelope{
		StatusCode: typed.Status,
		Message:    typed.Message,
		Reason:     typed.Reason,
		Errors:     fields,
	})
}

// Decode reads a JSON body into dst. Malformed or oversized bodies become
// authcore.ErrBadRequest.
func Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return authcore.ErrBadRequest.WithMessage("request body required")
	}
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return authcore.ErrBadRequest.WithMessage("request body required")
		}
		return authcore.ErrBadRequest.WithMessage("malformed request body")
	}
	return nil
}

func write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
