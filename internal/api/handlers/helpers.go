package handlers

import (
	"assignment-wizard-service/internal/api/dto"
	"assignment-wizard-service/internal/platform/obs"
	"assignment-wizard-service/internal/ports"
	"assignment-wizard-service/internal/services"
	"assignment-wizard-service/internal/wizard"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obs.Logger(r.Context()).Warn("encode failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, dto.ErrorResponse{Error: msg})
}

// decodeBody reads exactly one JSON object into v. An empty body leaves v as is.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errors.New("invalid json body")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain only one JSON object")
	}
	return nil
}

// statusFor maps controller errors to HTTP status codes.
func statusFor(err error) int {
	var verr *wizard.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ports.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrSuperseded),
		errors.Is(err, services.ErrStaleResult),
		errors.Is(err, services.ErrSaveInProgress):
		return http.StatusConflict
	case errors.Is(err, services.ErrBackend):
		return http.StatusBadGateway
	case errors.Is(err, wizard.ErrUnknownAction):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeResult answers with the session view, or with the error and whatever
// view and notifications the failed call still produced.
func writeResult(w http.ResponseWriter, r *http.Request, okStatus int, res services.Result, err error) {
	if err == nil {
		writeJSON(w, r, okStatus, dto.NewSessionResponse(res))
		return
	}

	status := statusFor(err)
	body := dto.ErrorResponse{Error: err.Error()}

	var verr *wizard.ValidationError
	if errors.As(err, &verr) {
		body.Error = verr.Message
		body.Field = verr.Field
	}
	if status == http.StatusInternalServerError {
		obs.Logger(r.Context()).Error("request failed", zap.Error(err))
		body.Error = "internal error"
	}
	if res.SessionID != "" {
		view := res.View
		body.SessionID = res.SessionID
		body.Session = &view
		body.Notifications = res.Notifications
	}
	writeJSON(w, r, status, body)
}
