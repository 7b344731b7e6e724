package reports

import (
	"context"
	"net/http"

	"github.com/de-tools/policy-atlas/pkg/adapters"
	"github.com/de-tools/policy-atlas/pkg/handlers"
	"github.com/de-tools/policy-atlas/pkg/models/api"
	"github.com/de-tools/policy-atlas/pkg/models/domain"
	"github.com/go-chi/chi/v5"
)

type Service interface {
	List(ctx context.Context) ([]domain.ReportEntry, error)
	Get(ctx context.Context, reportID string) (domain.ScoredReport, error)
	Delete(ctx context.Context, reportID string) error
	Remediate(ctx context.Context, reportID string) (domain.ScoredReport, error)
}

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.List(r.Context())
	if err != nil {
		handlers.WriteError(w, r, err, "failed to list reports")
		return
	}

	response := make([]api.ReportListItem, 0, len(entries))
	for _, e := range entries {
		response = append(response, adapters.MapReportEntryDomainToApi(e))
	}
	handlers.WriteJSON(w, r, http.StatusOK, response)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handlers.WriteError(w, r, err, "failed to load report")
		return
	}
	handlers.WriteJSON(w, r, http.StatusOK, report)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handlers.WriteError(w, r, err, "failed to delete report")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Remediate(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.Remediate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handlers.WriteError(w, r, err, "failed to remediate report")
		return
	}
	handlers.WriteJSON(w, r, http.StatusOK, report)
}
