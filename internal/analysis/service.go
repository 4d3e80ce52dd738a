// Package analysis composes the resolver, boundary locator, feature fetcher,
// routing engine, and the view/noise models into the six site-analysis
// pipelines and the composite report.
package analysis

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/parcelworks/siteatlas/internal/config"
	"github.com/parcelworks/siteatlas/internal/features"
	"github.com/parcelworks/siteatlas/internal/fetcher"
	"github.com/parcelworks/siteatlas/internal/identifier"
	"github.com/parcelworks/siteatlas/internal/parcel"
	"github.com/parcelworks/siteatlas/internal/refdata"
)

// ErrInsufficientData signals that a specific analysis cannot proceed for
// lack of input data (no roads in the noise study radius, no site footprint
// by any fallback, no stations in range). Terminal for that analysis only.
var ErrInsufficientData = eris.New("analysis: insufficient data")

// Service is the one long-lived analysis object: it owns the preloaded
// reference layers and the upstream clients, and is safe for concurrent use.
type Service struct {
	cfg       config.AnalysisConfig
	report    config.ReportConfig
	resolver  *identifier.Resolver
	locator   *parcel.Locator
	fetcher   *features.Fetcher
	zoning    *refdata.ZoningIndex
	buildings *refdata.BuildingLayer
	log       *zap.Logger
}

// New wires a Service from configuration and preloaded reference layers.
func New(cfg *config.Config, zoning *refdata.ZoningIndex, buildings *refdata.BuildingLayer) *Service {
	timeout := time.Duration(cfg.Upstream.TimeoutSecs) * time.Second
	httpClient := fetcher.New(fetcher.Options{
		UserAgent: cfg.Upstream.UserAgent,
		Timeout:   timeout,
	})

	return &Service{
		cfg:       cfg.Analysis,
		report:    cfg.Report,
		resolver:  identifier.NewResolver(cfg.Upstream.GeodataBaseURL, httpClient),
		locator:   parcel.NewLocator(cfg.Upstream.GeodataBaseURL, httpClient, cfg.Upstream.MaxRetries),
		fetcher:   features.NewFetcher(cfg.Upstream.OverpassURL, timeout, cfg.Analysis.FetchMaxRows),
		zoning:    zoning,
		buildings: buildings,
		log:       zap.L().With(zap.String("component", "analysis.service")),
	}
}

// NewWithDeps wires a Service from explicit collaborators; used by tests.
func NewWithDeps(
	cfg config.AnalysisConfig,
	report config.ReportConfig,
	resolver *identifier.Resolver,
	locator *parcel.Locator,
	featureFetcher *features.Fetcher,
	zoning *refdata.ZoningIndex,
	buildings *refdata.BuildingLayer,
) *Service {
	return &Service{
		cfg:       cfg,
		report:    report,
		resolver:  resolver,
		locator:   locator,
		fetcher:   featureFetcher,
		zoning:    zoning,
		buildings: buildings,
		log:       zap.L().With(zap.String("component", "analysis.service")),
	}
}

// BoundaryCacheStats exposes the parcel boundary cache counters.
func (s *Service) BoundaryCacheStats() parcel.CacheStats {
	return s.locator.Stats()
}
