package codes

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"firewatch-cloud/internal/observability/metrics"
)

// ErrRegistryUnavailable indicates the backing code table could not be
// loaded. The registry stays usable in raw-code passthrough mode.
var ErrRegistryUnavailable = errors.New("codes: registry unavailable")

// CommonCode is one row of the dynamic status-code table. Code values
// are stable identifiers; names are admin-editable display labels.
type CommonCode struct {
	Code      string
	Name      string
	GroupCode string
	Status    string

	// Severity is the maintained classification. HasSeverity is false
	// for legacy rows that predate the severity column; those fall back
	// to keyword matching on the name.
	Severity    Severity
	HasSeverity bool
}

// CodeRepository loads the full code table.
type CodeRepository interface {
	ListAll(ctx context.Context) ([]CommonCode, error)
}

// Classification is the outcome of classifying one status code.
type Classification struct {
	Severity Severity
	// Degraded marks keyword-fallback results for codes without a
	// maintained severity. Renaming such a code can silently change
	// its class, so consumers may want to surface this.
	Degraded bool
}

// Keywords drives the fallback substring classification of resolved names.
type Keywords struct {
	Fire      []string
	Fault     []string
	Recovered []string
}

// DefaultKeywords returns the observed keyword table.
func DefaultKeywords() Keywords {
	return Keywords{
		Fire:      []string{"화재"},
		Fault:     []string{"고장", "단선", "오류"},
		Recovered: []string{"해소", "정상", "복구"},
	}
}

// Registry is the in-memory code map consulted by classification and
// display. It is loaded once per session and safe for concurrent reads.
type Registry struct {
	mu         sync.RWMutex
	names      map[string]string
	severities map[string]Severity
	keywords   Keywords
	logger     *log.Logger
	loaded     bool
}

// RegistryOption customizes the registry.
type RegistryOption func(*Registry)

// WithKeywords overrides the fallback keyword table.
func WithKeywords(keywords Keywords) RegistryOption {
	return func(r *Registry) {
		r.keywords = keywords
	}
}

// WithSeedCodes pre-populates the registry before Load runs.
func WithSeedCodes(seed []CommonCode) RegistryOption {
	return func(r *Registry) {
		r.merge(seed)
	}
}

// NewRegistry constructs a registry.
func NewRegistry(logger *log.Logger, opts ...RegistryOption) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	registry := &Registry{
		names:      make(map[string]string),
		severities: make(map[string]Severity),
		keywords:   DefaultKeywords(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(registry)
	}
	return registry
}

// Load fetches the entire code table. On failure the registry keeps any
// seeded entries and resolves unknown codes to themselves; callers log
// the returned ErrRegistryUnavailable and continue.
func (r *Registry) Load(ctx context.Context, repo CodeRepository) error {
	if r == nil {
		return errors.New("codes: nil registry")
	}
	if repo == nil {
		return fmt.Errorf("codes: nil repository: %w", ErrRegistryUnavailable)
	}
	rows, err := repo.ListAll(ctx)
	if err != nil {
		r.logger.Printf("codes: load failed, falling back to raw-code passthrough: %v", err)
		metrics.IncRegistryLoad(metrics.ResultError)
		return fmt.Errorf("codes: load: %v: %w", err, ErrRegistryUnavailable)
	}
	metrics.IncRegistryLoad(metrics.ResultSuccess)
	r.merge(rows)
	r.mu.Lock()
	r.loaded = true
	r.mu.Unlock()
	return nil
}

// Loaded reports whether a full table load succeeded this session.
func (r *Registry) Loaded() bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Resolve returns the display name for a code, or the code itself when
// absent. Unregistered codes legitimately precede their registration,
// so this is a defined fallback, not an error.
func (r *Registry) Resolve(code string) string {
	if r == nil || code == "" {
		return code
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name, ok := r.names[code]; ok && name != "" {
		return name
	}
	return code
}

// Classify determines the severity class of a status code. Codes with a
// maintained severity classify directly; everything else keyword-matches
// the resolved name and is flagged as degraded confidence.
func (r *Registry) Classify(code string) Classification {
	if r == nil || code == "" {
		return Classification{Severity: SeverityNormal}
	}
	r.mu.RLock()
	severity, ok := r.severities[code]
	name := r.names[code]
	keywords := r.keywords
	r.mu.RUnlock()
	if ok {
		return Classification{Severity: severity}
	}
	if name == "" {
		name = code
	}
	return Classification{Severity: r.classifyName(name, keywords), Degraded: true}
}

// classifyName keyword-matches a display name. Ties resolve by priority
// Fire > Fault > Recovered and are logged as a data-quality warning.
func (r *Registry) classifyName(name string, keywords Keywords) Severity {
	matches := make([]Severity, 0, 3)
	if containsAny(name, keywords.Fire) {
		matches = append(matches, SeverityFire)
	}
	if containsAny(name, keywords.Fault) {
		matches = append(matches, SeverityFault)
	}
	if containsAny(name, keywords.Recovered) {
		matches = append(matches, SeverityRecovered)
	}
	switch len(matches) {
	case 0:
		return SeverityNormal
	case 1:
		return matches[0]
	default:
		r.logger.Printf("codes: name %q matches multiple severity keyword groups, using highest priority", name)
		top := matches[0]
		for _, m := range matches[1:] {
			top = MaxSeverity(top, m)
		}
		return top
	}
}

func (r *Registry) merge(rows []CommonCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range rows {
		if row.Code == "" {
			continue
		}
		if row.Name != "" {
			r.names[row.Code] = row.Name
		}
		if row.HasSeverity {
			r.severities[row.Code] = row.Severity
		}
	}
}

func containsAny(name string, keywords []string) bool {
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(name, keyword) {
			return true
		}
	}
	return false
}
