// Package rulepack loads and caches the declarative sources of a tax pack:
// rule sets, rate tables, form mappings, validation specs and form
// definitions. A pack is a directory tree addressed by URL, so the same
// loader serves local packs (file://), test fixtures (mem://) and any other
// storage the afs service supports.
//
// Pack layout:
//
//	<pack>/rules/*.rules.yaml
//	<pack>/rates/*.json
//	<pack>/mappings/*.mapping.yaml
//	<pack>/validations/*.yaml
//	<pack>/forms/*.form.yaml
package rulepack

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"gopkg.in/yaml.v3"

	"github.com/jgtolentino/TaxPulse-PH-Pack/internal/domain"
)

const (
	rulesDir       = "rules"
	ratesDir       = "rates"
	mappingsDir    = "mappings"
	validationsDir = "validations"
	formsDir       = "forms"

	ruleFileSuffix = ".rules.yaml"
)

// Loader owns the pack caches for the lifetime of a process or session.
// Each load is idempotent: the first call for a file key parses the source,
// every subsequent call returns the cached structure without re-reading.
// Loaded structures are shared and must be treated as read-only.
type Loader struct {
	baseURL string
	fs      afs.Service

	mu          sync.RWMutex
	rules       map[string][]domain.Rule
	rates       map[string]*domain.RateTable
	mappings    map[string]*domain.FormMapping
	validations map[string]*domain.ValidationSpec
	forms       map[string]map[string]any
}

// New creates a loader for the tax pack at the given base URL
// (e.g. "file:///opt/packs/ph" or "mem://localhost/pack").
func New(packURL string) *Loader {
	l := &Loader{
		baseURL: packURL,
		fs:      afs.New(),
	}
	l.resetCaches()
	return l
}

func (l *Loader) resetCaches() {
	l.rules = make(map[string][]domain.Rule)
	l.rates = make(map[string]*domain.RateTable)
	l.mappings = make(map[string]*domain.FormMapping)
	l.validations = make(map[string]*domain.ValidationSpec)
	l.forms = make(map[string]map[string]any)
}

// ClearCache atomically invalidates every cache, forcing the next load of
// each file to re-read its source. Intended for test isolation and
// hot-reload scenarios.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetCaches()
}

// read fetches one pack file, mapping absence to domain.ErrNotFound.
func (l *Loader) read(ctx context.Context, dir, name string) ([]byte, error) {
	fileURL := url.Join(l.baseURL, dir, name)
	ok, err := l.fs.Exists(ctx, fileURL)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", fileURL, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, fileURL)
	}
	data, err := l.fs.DownloadWithURL(ctx, fileURL)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fileURL, err)
	}
	return data, nil
}

// LoadRules loads one rule file (e.g. "vat.rules.yaml"), sorted by
// descending priority. The sort is stable: rules with equal priority keep
// their file order, which matters for the aggregation pass.
func (l *Loader) LoadRules(ctx context.Context, name string) ([]domain.Rule, error) {
	l.mu.RLock()
	cached, ok := l.rules[name]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.rules[name]; ok {
		return cached, nil
	}

	data, err := l.read(ctx, rulesDir, name)
	if err != nil {
		return nil, err
	}

	var file struct {
		Rules []domain.Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing rule file %s: %w", name, err)
	}

	sort.SliceStable(file.Rules, func(i, j int) bool {
		return file.Rules[i].Priority > file.Rules[j].Priority
	})

	l.rules[name] = file.Rules
	return file.Rules, nil
}

// LoadAllRules loads every "*.rules.yaml" under the pack's rules directory,
// keyed by file name. A pack without a rules directory yields an empty map.
func (l *Loader) LoadAllRules(ctx context.Context) (map[string][]domain.Rule, error) {
	rulesURL := url.Join(l.baseURL, rulesDir)
	ok, err := l.fs.Exists(ctx, rulesURL)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", rulesURL, err)
	}
	all := make(map[string][]domain.Rule)
	if !ok {
		return all, nil
	}

	objects, err := l.fs.List(ctx, rulesURL)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", rulesURL, err)
	}
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ruleFileSuffix) {
			continue
		}
		ruleSet, err := l.LoadRules(ctx, object.Name())
		if err != nil {
			return nil, err
		}
		all[object.Name()] = ruleSet
	}
	return all, nil
}

// LoadRates loads a JSON rate table (e.g. "ph_rates_2025.json").
func (l *Loader) LoadRates(ctx context.Context, name string) (*domain.RateTable, error) {
	l.mu.RLock()
	cached, ok := l.rates[name]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.rates[name]; ok {
		return cached, nil
	}

	data, err := l.read(ctx, ratesDir, name)
	if err != nil {
		return nil, err
	}

	rates := &domain.RateTable{}
	if err := json.Unmarshal(data, rates); err != nil {
		return nil, fmt.Errorf("parsing rates file %s: %w", name, err)
	}

	l.rates[name] = rates
	return rates, nil
}

// LoadMapping loads a form mapping (e.g. "vat_2550Q.mapping.yaml"),
// preserving section and line order and rejecting duplicate line ids.
func (l *Loader) LoadMapping(ctx context.Context, name string) (*domain.FormMapping, error) {
	l.mu.RLock()
	cached, ok := l.mappings[name]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.mappings[name]; ok {
		return cached, nil
	}

	data, err := l.read(ctx, mappingsDir, name)
	if err != nil {
		return nil, err
	}

	mapping := &domain.FormMapping{}
	if err := yaml.Unmarshal(data, mapping); err != nil {
		return nil, fmt.Errorf("parsing mapping file %s: %w", name, err)
	}
	if err := mapping.Validate(); err != nil {
		return nil, fmt.Errorf("mapping file %s: %w", name, err)
	}

	l.mappings[name] = mapping
	return mapping, nil
}

// LoadValidations loads a validation spec (e.g. "core_validations.yaml").
// Checks are exposed verbatim for the external validation component.
func (l *Loader) LoadValidations(ctx context.Context, name string) (*domain.ValidationSpec, error) {
	l.mu.RLock()
	cached, ok := l.validations[name]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.validations[name]; ok {
		return cached, nil
	}

	data, err := l.read(ctx, validationsDir, name)
	if err != nil {
		return nil, err
	}

	var file struct {
		Validations domain.ValidationSpec `yaml:"validations"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing validation file %s: %w", name, err)
	}

	spec := &file.Validations
	l.validations[name] = spec
	return spec, nil
}

// LoadForm loads a form definition (e.g. "bir_2550Q_2025.form.yaml") as an
// untyped document; the engine does not interpret form definitions, it only
// supplies them to the reporting collaborator.
func (l *Loader) LoadForm(ctx context.Context, name string) (map[string]any, error) {
	l.mu.RLock()
	cached, ok := l.forms[name]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.forms[name]; ok {
		return cached, nil
	}

	data, err := l.read(ctx, formsDir, name)
	if err != nil {
		return nil, err
	}

	form := make(map[string]any)
	if err := yaml.Unmarshal(data, &form); err != nil {
		return nil, fmt.Errorf("parsing form file %s: %w", name, err)
	}

	l.forms[name] = form
	return form, nil
}

// GetRateValue resolves a rate code against a loaded rate table. The
// resolution is total: unmatched codes yield 0.0, never an error.
func (l *Loader) GetRateValue(code string, rates *domain.RateTable) float64 {
	return rates.Lookup(code)
}
