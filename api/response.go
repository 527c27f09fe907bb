package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/danceflow/danceflow/core"
)

// MaxBodyBytes caps JSON request bodies
const MaxBodyBytes = 1 << 20

// Envelope is the shape of every JSON response
type Envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Details []core.FieldIssue `json:"details,omitempty"`
}

// writeJSON marshals v as JSON and writes it with the given status code
func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

// WriteData writes a success envelope around data
func WriteData(w http.ResponseWriter, status int, data any) {
	_ = writeJSON(w, status, Envelope{Success: true, Data: data})
}

// WriteError writes the failure envelope for err. Internal causes are logged
// and replaced by a generic message.
func WriteError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	e := core.AsError(err)
	if e.Kind == core.KindInternal && log != nil {
		log.WithError(e.Err).WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"request_id": middleware.GetReqID(r.Context()),
		}).Error("request failed")
	}
	_ = writeJSON(w, e.Status(), Envelope{
		Success: false,
		Error:   e.Message,
		Details: e.Details,
	})
}

// ReadBody reads a JSON request body up to MaxBodyBytes
func ReadBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, core.Validation(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		}
		return nil, core.Validation("could not read request body")
	}
	return body, nil
}

// DecodeBody reads and decodes a JSON request body into v
func DecodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := ReadBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return core.Validation("request body is not valid JSON", core.FieldIssue{Path: "", Message: err.Error()})
	}
	return nil
}

// NotFoundHandler answers unknown routes with the standard envelope
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusNotFound, Envelope{Success: false, Error: "route not found"})
}

// MethodNotAllowedHandler answers unsupported methods with the standard envelope
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	_ = writeJSON(w, http.StatusMethodNotAllowed, Envelope{Success: false, Error: "method not allowed"})
}
