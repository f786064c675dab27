package handlers

import (
	"assignment-wizard-service/internal/api/dto"
	"assignment-wizard-service/internal/services"
	"assignment-wizard-service/internal/wizard"
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

const (
	defaultPerPage = 10
	maxPerPage     = 100
	maxActionBytes = 1 << 20
)

// Wizard is the session controller as seen by the HTTP layer.
type Wizard interface {
	Create(ctx context.Context) (services.Result, error)
	Get(ctx context.Context, id string) (services.Result, error)
	Cancel(ctx context.Context, id string) error
	Dispatch(ctx context.Context, id string, a wizard.Action) (services.Result, error)
	Next(ctx context.Context, id string) (services.Result, error)
	Back(ctx context.Context, id string) (services.Result, error)
	AddGroup(ctx context.Context, id string) (services.Result, error)
	FetchRecipients(ctx context.Context, id string, page, perPage int, search string) (services.Result, error)
	FetchCouriers(ctx context.Context, id string, page, perPage int) (services.Result, error)
	Optimize(ctx context.Context, id string) (services.Result, error)
	Save(ctx context.Context, id string) (services.Result, error)
}

type SessionHandler struct {
	Wizard Wizard
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	res, err := h.Wizard.Create(r.Context())
	writeResult(w, r, http.StatusCreated, res, err)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, err := h.Wizard.Get(r.Context(), sessionID(r))
	writeResult(w, r, http.StatusOK, res, err)
}

func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.Wizard.Cancel(r.Context(), sessionID(r)); err != nil {
		writeResult(w, r, http.StatusOK, services.Result{}, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Dispatch applies one reducer action, posted as {"type": "...", ...}.
func (h *SessionHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxActionBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "could not read body")
		return
	}

	action, err := wizard.DecodeAction(body)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Wizard.Dispatch(r.Context(), sessionID(r), action)
	writeResult(w, r, http.StatusOK, res, err)
}

func (h *SessionHandler) Next(w http.ResponseWriter, r *http.Request) {
	res, err := h.Wizard.Next(r.Context(), sessionID(r))
	writeResult(w, r, http.StatusOK, res, err)
}

func (h *SessionHandler) Back(w http.ResponseWriter, r *http.Request) {
	res, err := h.Wizard.Back(r.Context(), sessionID(r))
	writeResult(w, r, http.StatusOK, res, err)
}

func (h *SessionHandler) AddGroup(w http.ResponseWriter, r *http.Request) {
	res, err := h.Wizard.AddGroup(r.Context(), sessionID(r))
	writeResult(w, r, http.StatusCreated, res, err)
}

func pageParams(page, perPage int) (int, int, bool) {
	if page == 0 {
		page = 1
	}
	if perPage == 0 {
		perPage = defaultPerPage
	}
	if page < 1 || perPage < 1 || perPage > maxPerPage {
		return 0, 0, false
	}
	return page, perPage, true
}

func (h *SessionHandler) FetchRecipients(w http.ResponseWriter, r *http.Request) {
	var req dto.FetchRecipientsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	page, perPage, ok := pageParams(req.Page, req.PerPage)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "page must be >= 1 and per_page between 1 and 100")
		return
	}

	res, err := h.Wizard.FetchRecipients(r.Context(), sessionID(r), page, perPage, req.Search)
	writeResult(w, r, http.StatusOK, res, err)
}

func (h *SessionHandler) FetchCouriers(w http.ResponseWriter, r *http.Request) {
	var req dto.FetchCouriersRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	page, perPage, ok := pageParams(req.Page, req.PerPage)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "page must be >= 1 and per_page between 1 and 100")
		return
	}

	res, err := h.Wizard.FetchCouriers(r.Context(), sessionID(r), page, perPage)
	writeResult(w, r, http.StatusOK, res, err)
}

func (h *SessionHandler) Optimize(w http.ResponseWriter, r *http.Request) {
	res, err := h.Wizard.Optimize(r.Context(), sessionID(r))
	writeResult(w, r, http.StatusOK, res, err)
}

func (h *SessionHandler) Save(w http.ResponseWriter, r *http.Request) {
	res, err := h.Wizard.Save(r.Context(), sessionID(r))
	writeResult(w, r, http.StatusCreated, res, err)
}
