package policies

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/de-tools/policy-atlas/pkg/adapters"
	"github.com/de-tools/policy-atlas/pkg/handlers"
	"github.com/de-tools/policy-atlas/pkg/models/api"
	"github.com/de-tools/policy-atlas/pkg/models/domain"
	"github.com/de-tools/policy-atlas/pkg/services/rules"
	"github.com/go-chi/chi/v5"
)

// MaxPolicySize bounds an uploaded policy file.
const MaxPolicySize = 1 << 20

type Catalog interface {
	List(ctx context.Context, provider string, q rules.Query) (rules.Page, error)
	Read(ctx context.Context, provider, name string) (domain.PolicyFile, []byte, error)
	Save(ctx context.Context, provider, name string, content []byte) error
	Delete(ctx context.Context, provider, name string) error
}

type Handler struct {
	catalog Catalog
}

func NewHandler(catalog Catalog) *Handler {
	return &Handler{
		catalog: catalog,
	}
}

// List serves one page of a provider's policies. Query parameters: filter
// (resource type), control, sort (name|rules|modified), order (asc|desc), page.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	q, err := parseQuery(r)
	if err != nil {
		handlers.WriteError(w, r, err, "invalid policy query")
		return
	}

	page, err := h.catalog.List(r.Context(), provider, q)
	if err != nil {
		handlers.WriteError(w, r, err, "failed to list policies")
		return
	}
	handlers.WriteJSON(w, r, http.StatusOK, adapters.MapPolicyPageToApi(provider, page))
}

// Get serves a policy with its metadata, or the bare rego source when the
// client accepts text/plain only.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	name := chi.URLParam(r, "name")

	file, content, err := h.catalog.Read(r.Context(), provider, name)
	if err != nil {
		handlers.WriteError(w, r, err, "failed to read policy")
		return
	}

	if r.Header.Get("Accept") == "text/plain" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(content)
		return
	}
	handlers.WriteJSON(w, r, http.StatusOK, adapters.MapPolicyDetailToApi(file, content))
}

// Put stores a policy. The body is either raw rego or a JSON api.PolicyUpload.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	name := chi.URLParam(r, "name")

	content, err := readPolicy(w, r)
	if err != nil {
		handlers.WriteError(w, r, err, "failed to read policy body")
		return
	}

	if err := h.catalog.Save(r.Context(), provider, name, content); err != nil {
		handlers.WriteError(w, r, err, "failed to save policy")
		return
	}

	file, stored, err := h.catalog.Read(r.Context(), provider, name)
	if err != nil {
		handlers.WriteError(w, r, err, "failed to read saved policy")
		return
	}
	handlers.WriteJSON(w, r, http.StatusCreated, adapters.MapPolicyDetailToApi(file, stored))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	name := chi.URLParam(r, "name")

	if err := h.catalog.Delete(r.Context(), provider, name); err != nil {
		handlers.WriteError(w, r, err, "failed to delete policy")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseQuery(r *http.Request) (rules.Query, error) {
	values := r.URL.Query()
	q := rules.Query{
		ResourceType: values.Get("filter"),
		Control:      values.Get("control"),
		Sort:         rules.SortByName,
		Page:         1,
	}

	switch sort := rules.SortKey(strings.ToLower(values.Get("sort"))); sort {
	case "":
	case rules.SortByName, rules.SortByRules, rules.SortByModified:
		q.Sort = sort
	default:
		return q, fmt.Errorf("%w: unknown sort key %q", rules.ErrInvalidPolicy, sort)
	}

	switch strings.ToLower(values.Get("order")) {
	case "", "asc":
	case "desc":
		q.Desc = true
	default:
		return q, fmt.Errorf("%w: order must be asc or desc", rules.ErrInvalidPolicy)
	}

	if raw := values.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return q, fmt.Errorf("%w: page must be a positive integer", rules.ErrInvalidPolicy)
		}
		q.Page = page
	}
	return q, nil
}

func readPolicy(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxPolicySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rules.ErrInvalidPolicy, err)
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return body, nil
	}

	var upload api.PolicyUpload
	if err := json.Unmarshal(body, &upload); err != nil {
		return nil, fmt.Errorf("%w: %v", rules.ErrInvalidPolicy, err)
	}
	return []byte(upload.Content), nil
}
