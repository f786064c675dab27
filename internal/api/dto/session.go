package dto

import (
	"assignment-wizard-service/internal/domain"
	"assignment-wizard-service/internal/services"
	"assignment-wizard-service/internal/wizard"
)

type FetchRecipientsRequest struct {
	Page    int    `json:"page"`
	PerPage int    `json:"per_page"`
	Search  string `json:"search"`
}

type FetchCouriersRequest struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

type SessionResponse struct {
	SessionID     string                  `json:"session_id,omitempty"`
	Session       *wizard.SessionView     `json:"session,omitempty"`
	Notifications []services.Notification `json:"notifications"`
	Created       []domain.Assignment     `json:"created,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	// Field is set for validation failures.
	Field         string                  `json:"field,omitempty"`
	SessionID     string                  `json:"session_id,omitempty"`
	Session       *wizard.SessionView     `json:"session,omitempty"`
	Notifications []services.Notification `json:"notifications,omitempty"`
}

func NewSessionResponse(res services.Result) SessionResponse {
	out := SessionResponse{
		SessionID:     res.SessionID,
		Notifications: res.Notifications,
		Created:       res.Created,
	}
	if out.Notifications == nil {
		out.Notifications = []services.Notification{}
	}
	if res.SessionID != "" {
		view := res.View
		out.Session = &view
	}
	return out
}
