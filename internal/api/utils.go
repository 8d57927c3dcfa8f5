package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"recon-backend/pkg/api"

	"github.com/gorilla/schema"
)

// codedError carries the status code and the message shown to the client.
// The wrapped error is only logged.
type codedError struct {
	err     error
	code    int
	message string
}

func (e *codedError) Error() string {
	if e.err == nil {
		return e.message
	}
	return e.message + ": " + e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(code int, message string, err error) error {
	return &codedError{err: err, code: code, message: message}
}

func CodedErrorf(code int, format string, args ...any) error {
	return &codedError{code: code, message: fmt.Sprintf(format, args...)}
}

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

func ParseRequestQueryParams[T any](r *http.Request) (T, error) {
	var data T
	if err := queryDecoder.Decode(&data, r.URL.Query()); err != nil {
		slog.Error("error decoding query params", "error", err)
		return data, err
	}
	return data, nil
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, message := http.StatusInternalServerError, "Internal server error"

	var cerr *codedError
	if errors.As(err, &cerr) {
		code, message = cerr.code, cerr.message
	}

	if code >= http.StatusInternalServerError {
		slog.Error("internal server error received in endpoint", "path", r.URL.Path, "error", err)
	} else {
		slog.Info("request rejected", "path", r.URL.Path, "status", code, "error", err)
	}

	writeJson(w, code, api.ErrorResponse{Error: message})
}

func RestHandler(handler func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		if res == nil {
			res = struct{}{}
		}

		WriteJsonResponse(w, res)
	}
}

// RestStreamHandler copies the reader returned by handler to the response as
// an octet stream.
func RestStreamHandler(handler func(r *http.Request) (io.ReadCloser, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := handler(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		defer body.Close()

		w.Header().Set("Content-Type", "application/octet-stream")
		w.WriteHeader(http.StatusOK)

		if _, err := io.Copy(w, body); err != nil {
			// Headers are already sent, the client sees a truncated body.
			slog.Error("error streaming response body", "path", r.URL.Path, "error", err)
		}
	}
}

func WriteJsonResponse(w http.ResponseWriter, data interface{}) {
	writeJson(w, http.StatusOK, data)
}

func writeJson(w http.ResponseWriter, code int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		slog.Error("error serializing response body", "error", err)
		http.Error(w, fmt.Sprintf("error serializing response body: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(append(body, '\n')); err != nil {
		slog.Error("error writing response body", "error", err)
	}
}

// limitBody caps the request body. Reads past the limit fail with
// *http.MaxBytesError.
func limitBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
