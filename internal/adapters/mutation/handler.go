package mutation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pepplus/internal/core"
	"pepplus/pkg/domain"
)

const maxRequestBytes = 1 << 20

// Reader is the read-gateway contract served by GET /api/v1/entities/{entity}.
type Reader interface {
	ListCurrent(ctx context.Context, entity domain.EntityType) ([]domain.StoredRow, error)
}

// Handler serves the mutation protocol and the current-row listing.
//
//	POST /api/v1/mutations           envelope request, always 200 with a Response
//	GET  /api/v1/entities/{entity}   current rows of one entity type
type Handler struct {
	envelope *Envelope
	reader   Reader
	auth     *Authenticator
	router   chi.Router
}

// NewHandler wires the routes. reader may be nil to disable listing.
func NewHandler(envelope *Envelope, reader Reader, auth *Authenticator) *Handler {
	h := &Handler{envelope: envelope, reader: reader, auth: auth}
	r := chi.NewRouter()
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.Route("/api/v1", func(api chi.Router) {
		api.Post("/mutations", h.handleMutation)
		if reader != nil {
			api.Get("/entities/{entity}", h.handleList)
		}
	})
	h.router = r
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) handleMutation(w http.ResponseWriter, r *http.Request) {
	principal, err := h.auth.FromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var req Request
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.envelope.Execute(r.Context(), principal, req))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if _, err := h.auth.FromRequest(r); err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	entity, ok := domain.ParseEntityType(chi.URLParam(r, "entity"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown entity type")
		return
	}
	rows, err := h.reader.ListCurrent(r.Context(), entity)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrUnknownEntity) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	if rows == nil {
		rows = []domain.StoredRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entity": entity, "rows": rows})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
