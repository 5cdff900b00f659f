package metric

import (
	"context"
	"fmt"
	"strings"
)

// CatalogProvider is the view of the metric catalog the rule engine
// consumes. Both the HTTP surface and the executor read through it, so
// user-authored custom metrics automatically become usable in conditions.
type CatalogProvider interface {
	Catalog(ctx context.Context) ([]Definition, error)
	Lookup(ctx context.Context, key string) (*Definition, error)
}

type CatalogService interface {
	CatalogProvider
	CreateCustom(ctx context.Context, m *CustomMetric) error
	DeleteCustom(ctx context.Context, id string) error
}

type CatalogServiceImpl struct {
	Repo CustomMetricRepository
}

func NewCatalogService(repo CustomMetricRepository) CatalogService {
	return &CatalogServiceImpl{Repo: repo}
}

// Catalog returns built-in definitions plus every stored custom metric,
// common metrics first.
func (s *CatalogServiceImpl) Catalog(ctx context.Context) ([]Definition, error) {
	defs := builtinCatalog()

	customs, err := s.Repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range customs {
		defs = append(defs, customs[i].Definition())
	}

	sortCatalog(defs)
	return defs, nil
}

// Lookup resolves a metric key (including legacy aliases and custom keys)
// to its definition. Unknown keys return nil, not an error: a rule
// referencing a deleted custom metric must evaluate to 0, not abort a run.
func (s *CatalogServiceImpl) Lookup(ctx context.Context, key string) (*Definition, error) {
	key = canonicalKey(key)

	if isCustomKey(key) {
		id := strings.TrimPrefix(key, customKeyPrefix)
		m, err := s.Repo.GetByID(ctx, id)
		if err != nil || m == nil {
			return nil, err
		}
		def := m.Definition()
		return &def, nil
	}

	for _, def := range builtinCatalog() {
		if def.Key == key {
			d := def
			return &d, nil
		}
	}
	return nil, nil
}

func (s *CatalogServiceImpl) CreateCustom(ctx context.Context, m *CustomMetric) error {
	if strings.TrimSpace(m.Label) == "" {
		return fmt.Errorf("label is required")
	}
	if err := CheckFormula(m.Formula); err != nil {
		return err
	}
	if m.Format == "" {
		m.Format = FormatNumber2
	}
	return s.Repo.Create(ctx, m)
}

func (s *CatalogServiceImpl) DeleteCustom(ctx context.Context, id string) error {
	return s.Repo.Delete(ctx, id)
}
