package rules

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/de-tools/policy-atlas/pkg/models/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

const (
	PolicyExtension = ".rego"
	PageSize        = 10
)

var SupportedProviders = []string{"aws", "azure", "gcp"}

var (
	ErrUnsupportedProvider = errors.New("unsupported provider")
	ErrInvalidPolicy       = errors.New("invalid policy")
	ErrNotFound            = errors.New("policy not found")
)

type SortKey string

const (
	SortByName     SortKey = "name"
	SortByRules    SortKey = "rules"
	SortByModified SortKey = "modified"
)

// Query selects a page of a provider's policies. Filters are case-insensitive
// substrings; Page is 1-based.
type Query struct {
	ResourceType string
	Control      string
	Sort         SortKey
	Desc         bool
	Page         int
}

type Page struct {
	Items      []domain.PolicyFile
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

// Catalog manages the policy files under root/<provider>/.
type Catalog struct {
	fs   afero.Fs
	root string
}

func NewCatalog(fs afero.Fs, root string) *Catalog {
	return &Catalog{fs: fs, root: root}
}

func (c *Catalog) Root() string {
	return c.root
}

func (c *Catalog) List(ctx context.Context, provider string, q Query) (Page, error) {
	dir, err := c.providerDir(provider)
	if err != nil {
		return Page{}, err
	}

	infos, err := afero.ReadDir(c.fs, dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			infos = nil
		} else {
			return Page{}, fmt.Errorf("list policies for %s: %w", provider, err)
		}
	}

	files := make([]domain.PolicyFile, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), PolicyExtension) {
			continue
		}
		content, err := afero.ReadFile(c.fs, filepath.Join(dir, info.Name()))
		if err != nil {
			zerolog.Ctx(ctx).Warn().
				Err(err).
				Str("provider", provider).
				Str("policy", info.Name()).
				Msg("failed to read policy file")
			continue
		}
		file := domain.PolicyFile{
			Provider: provider,
			Name:     info.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
			Metadata: Extract(string(content)),
		}
		if q.matches(file) {
			files = append(files, file)
		}
	}

	sortPolicies(files, q.Sort, q.Desc)
	return paginate(files, q.Page), nil
}

func (c *Catalog) Read(_ context.Context, provider, name string) (domain.PolicyFile, []byte, error) {
	p, err := c.policyPath(provider, name)
	if err != nil {
		return domain.PolicyFile{}, nil, err
	}

	info, err := c.fs.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.PolicyFile{}, nil, fmt.Errorf("%w: %s/%s", ErrNotFound, provider, name)
		}
		return domain.PolicyFile{}, nil, fmt.Errorf("stat policy: %w", err)
	}

	content, err := afero.ReadFile(c.fs, p)
	if err != nil {
		return domain.PolicyFile{}, nil, fmt.Errorf("read policy: %w", err)
	}

	return domain.PolicyFile{
		Provider: provider,
		Name:     name,
		Size:     info.Size(),
		Modified: info.ModTime(),
		Metadata: Extract(string(content)),
	}, content, nil
}

func (c *Catalog) Save(_ context.Context, provider, name string, content []byte) error {
	if len(strings.TrimSpace(string(content))) == 0 {
		return fmt.Errorf("%w: content is empty", ErrInvalidPolicy)
	}
	p, err := c.policyPath(provider, name)
	if err != nil {
		return err
	}
	if err := c.fs.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create policy directory: %w", err)
	}
	if err := afero.WriteFile(c.fs, p, content, 0o644); err != nil {
		return fmt.Errorf("write policy: %w", err)
	}
	return nil
}

func (c *Catalog) Delete(_ context.Context, provider, name string) error {
	p, err := c.policyPath(provider, name)
	if err != nil {
		return err
	}
	exists, err := afero.Exists(c.fs, p)
	if err != nil {
		return fmt.Errorf("stat policy: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s/%s", ErrNotFound, provider, name)
	}
	if err := c.fs.Remove(p); err != nil {
		return fmt.Errorf("delete policy: %w", err)
	}
	return nil
}

func (c *Catalog) providerDir(provider string) (string, error) {
	if !slices.Contains(SupportedProviders, provider) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
	return filepath.Join(c.root, provider), nil
}

func (c *Catalog) policyPath(provider, name string) (string, error) {
	dir, err := c.providerDir(provider)
	if err != nil {
		return "", err
	}
	if name == "" || path.Base(name) != name || filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: bad file name %q", ErrInvalidPolicy, name)
	}
	if !strings.HasSuffix(name, PolicyExtension) {
		return "", fmt.Errorf("%w: %q must end with %s", ErrInvalidPolicy, name, PolicyExtension)
	}
	return filepath.Join(dir, name), nil
}

func (q Query) matches(f domain.PolicyFile) bool {
	if q.ResourceType != "" &&
		!strings.Contains(strings.ToLower(f.Metadata.ResourceType), strings.ToLower(q.ResourceType)) {
		return false
	}
	if q.Control == "" {
		return true
	}
	needle := strings.ToLower(q.Control)
	for _, c := range f.Metadata.ComplianceControls {
		if strings.Contains(strings.ToLower(c), needle) {
			return true
		}
	}
	return false
}

func sortPolicies(files []domain.PolicyFile, key SortKey, desc bool) {
	less := func(a, b domain.PolicyFile) bool {
		switch key {
		case SortByRules:
			if a.Metadata.RuleCount != b.Metadata.RuleCount {
				return a.Metadata.RuleCount < b.Metadata.RuleCount
			}
		case SortByModified:
			if !a.Modified.Equal(b.Modified) {
				return a.Modified.Before(b.Modified)
			}
		}
		return a.Name < b.Name
	}
	sort.SliceStable(files, func(i, j int) bool {
		if desc {
			return less(files[j], files[i])
		}
		return less(files[i], files[j])
	})
}

func paginate(files []domain.PolicyFile, page int) Page {
	if page < 1 {
		page = 1
	}
	total := len(files)
	totalPages := (total + PageSize - 1) / PageSize

	start := (page - 1) * PageSize
	if start > total {
		start = total
	}
	end := start + PageSize
	if end > total {
		end = total
	}

	return Page{
		Items:      files[start:end],
		Page:       page,
		PageSize:   PageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}
