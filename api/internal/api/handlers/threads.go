package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/irgordon/threadvault/api/internal/core/domain"
)

type ThreadSummary struct {
	ID    string `json:"id"`
	Posts int    `json:"posts"`
}

type ThreadResponse struct {
	ID    string        `json:"id"`
	Posts []domain.Post `json:"posts"`
}

// ThreadHandler serves read-only views over the published state.
type ThreadHandler struct {
	State domain.StateProvider
}

func NewThreadHandler(state domain.StateProvider) *ThreadHandler {
	return &ThreadHandler{State: state}
}

func (h *ThreadHandler) unlocked(w http.ResponseWriter, r *http.Request) (*domain.AppState, bool) {
	app := h.State.State()
	if app == nil {
		HandleError(w, r, domain.ErrLocked)
		return nil, false
	}
	return app, true
}

// List handles GET /api/v1/threads
func (h *ThreadHandler) List(w http.ResponseWriter, r *http.Request) {
	app, ok := h.unlocked(w, r)
	if !ok {
		return
	}

	ids := app.Threads.IDs()
	out := make([]ThreadSummary, 0, len(ids))
	for _, id := range ids {
		out = append(out, ThreadSummary{ID: id, Posts: len(app.Threads[id])})
	}
	writeJSON(w, http.StatusOK, out)
}

// Get handles GET /api/v1/threads/{id}
func (h *ThreadHandler) Get(w http.ResponseWriter, r *http.Request) {
	app, ok := h.unlocked(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	posts, err := app.Thread(id)
	if err != nil {
		HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ThreadResponse{ID: id, Posts: posts})
}

// Annotations handles GET /api/v1/annotations
func (h *ThreadHandler) Annotations(w http.ResponseWriter, r *http.Request) {
	app, ok := h.unlocked(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, app.Annotations)
}
