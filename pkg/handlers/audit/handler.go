package audit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/de-tools/policy-atlas/pkg/handlers"
	"github.com/de-tools/policy-atlas/pkg/models/api"
	"github.com/de-tools/policy-atlas/pkg/models/domain"
	auditsvc "github.com/de-tools/policy-atlas/pkg/services/audit"
)

const (
	// MaxPlanSize bounds an uploaded plan document.
	MaxPlanSize = 32 << 20

	formFileField = "file"
	healthStatus  = "Audit Engine is running"
)

type Auditor interface {
	Run(ctx context.Context, plan *domain.Plan, opts auditsvc.Options) (*domain.ScoredReport, error)
}

type Handler struct {
	auditor     Auditor
	defaults    auditsvc.Options
	maxPlanSize int64
}

// NewHandler serves audits with defaults applied to options the request
// does not set.
func NewHandler(auditor Auditor, defaults auditsvc.Options) *Handler {
	return &Handler{
		auditor:     auditor,
		defaults:    defaults,
		maxPlanSize: MaxPlanSize,
	}
}

// Audit accepts a plan as a JSON body or as the "file" part of a multipart
// form. Query parameters owner, tags (comma separated) and provider override
// the configured defaults.
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	data, source, err := readPlan(w, r, h.maxPlanSize)
	if err != nil {
		handlers.WriteError(w, r, err, "failed to read plan")
		return
	}

	plan, err := auditsvc.ParsePlan(data, source)
	if err != nil {
		handlers.WriteError(w, r, err, "failed to parse plan")
		return
	}

	report, err := h.auditor.Run(r.Context(), plan, h.options(r))
	if err != nil {
		handlers.WriteError(w, r, err, "audit failed")
		return
	}

	handlers.WriteJSON(w, r, http.StatusOK, report)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, r, http.StatusOK, api.HealthResponse{Status: healthStatus})
}

func (h *Handler) options(r *http.Request) auditsvc.Options {
	opts := h.defaults
	q := r.URL.Query()
	if owner := q.Get("owner"); owner != "" {
		opts.Owner = owner
	}
	if provider := q.Get("provider"); provider != "" {
		opts.Provider = provider
	}
	if tags := q.Get("tags"); tags != "" {
		opts.Tags = splitTags(tags)
	}
	return opts
}

func readPlan(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile(formFileField)
		if err != nil {
			return nil, "", bodyError(fmt.Errorf("multipart field %q: %w", formFileField, err))
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return nil, "", bodyError(err)
		}
		return data, header.Filename, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, "", bodyError(err)
	}
	return data, r.URL.Query().Get("source"), nil
}

// bodyError classifies a failed body read. Hitting the size limit is reported
// separately from a malformed upload.
func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fmt.Errorf("%w: plan exceeds %d bytes", handlers.ErrPayloadTooLarge, maxErr.Limit)
	}
	return fmt.Errorf("%w: %v", auditsvc.ErrInvalidInput, err)
}

func splitTags(raw string) []string {
	tags := make([]string, 0)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
