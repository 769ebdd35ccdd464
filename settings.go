package odatabatch

import (
	"log/slog"
	"net/url"

	"github.com/nlstn/odata-batch/internal/observability"
)

// Settings controls quota enforcement and optional behaviors of a
// BatchReader. The zero value is not usable directly; build one with
// NewSettings.
type Settings struct {
	// MaxPartsPerBatch caps the number of top-level parts/elements a batch
	// may contain. A MIME batch counts each outer part once (a changeset is
	// one part); a JSON batch counts every array element, including each
	// request of an atomicityGroup. Zero means unlimited.
	MaxPartsPerBatch uint32

	// MaxOperationsPerChangeset caps the number of requests inside any one
	// changeset or atomicityGroup. Zero means unlimited.
	MaxOperationsPerChangeset uint32

	// BaseURI, when set, is used to resolve relative request URLs.
	BaseURI *url.URL

	// AllowLegacyContentIDInHTTPHeaders permits a part's Content-ID to be
	// read from the inner HTTP header block when the MIME envelope omits
	// it. Defaults to true.
	AllowLegacyContentIDInHTTPHeaders bool

	logger        *slog.Logger
	observability *observability.Config
}

// Option configures a Settings value.
type Option func(*Settings)

// WithMaxPartsPerBatch bounds the number of top-level parts a batch may contain.
func WithMaxPartsPerBatch(n uint32) Option {
	return func(s *Settings) { s.MaxPartsPerBatch = n }
}

// WithMaxOperationsPerChangeset bounds the number of requests inside a single changeset.
func WithMaxOperationsPerChangeset(n uint32) Option {
	return func(s *Settings) { s.MaxOperationsPerChangeset = n }
}

// WithBaseURI sets the base used to resolve relative request URLs.
func WithBaseURI(u *url.URL) Option {
	return func(s *Settings) { s.BaseURI = u }
}

// WithLegacyContentIDInHTTPHeaders toggles fallback resolution of a part's
// Content-ID from its inner HTTP headers when the MIME envelope has none.
func WithLegacyContentIDInHTTPHeaders(allow bool) Option {
	return func(s *Settings) { s.AllowLegacyContentIDInHTTPHeaders = allow }
}

// WithLogger sets the logger used for Exception-state diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Settings) { s.logger = l }
}

// WithObservability attaches tracing and metrics to the reader.
func WithObservability(cfg *observability.Config) Option {
	return func(s *Settings) { s.observability = cfg }
}

// NewSettings builds a Settings value, applying opts over sensible defaults.
func NewSettings(opts ...Option) *Settings {
	s := &Settings{AllowLegacyContentIDInHTTPHeaders: true}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.observability == nil {
		s.observability = observability.NewConfig()
		_ = s.observability.Initialize()
	}
	return s
}
