// Package pipeline wires the full flow together: render the diagram,
// keep the model catalog fresh, pick a model, extract the graph, and emit
// the animation script.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/graphpipe/graphpipe/internal/animate"
	"github.com/graphpipe/graphpipe/internal/catalog"
	"github.com/graphpipe/graphpipe/internal/config"
	"github.com/graphpipe/graphpipe/internal/domain"
	"github.com/graphpipe/graphpipe/internal/extract"
	"github.com/graphpipe/graphpipe/internal/llm"
	"github.com/graphpipe/graphpipe/internal/observability"
	"github.com/graphpipe/graphpipe/internal/pdf"
	"github.com/graphpipe/graphpipe/internal/probe"
	"github.com/graphpipe/graphpipe/internal/selector"
)

// APIClient is the provider surface the pipeline depends on.
type APIClient interface {
	ListModels(ctx context.Context) ([]catalog.RemoteModel, error)
	ChatCompletion(ctx context.Context, req llm.ChatRequest) (string, error)
}

// Pipeline runs the end-to-end extraction flow.
type Pipeline struct {
	cfg       *config.Config
	client    APIClient
	store     *catalog.Store
	converter *pdf.Converter
	prober    *probe.Prober
	requester *extract.Requester
	logger    *observability.Logger
}

// New wires a pipeline from configuration and a provider client.
func New(cfg *config.Config, client APIClient, logger *observability.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		client:    client,
		store:     catalog.NewStore(cfg.Catalog.Path, cfg.Catalog.Staleness.Std(), logger),
		converter: pdf.NewConverter(cfg.PDF.Quality, logger),
		prober:    probe.New(client, cfg.Probe.Delay.Std(), cfg.Probe.Timeout.Std(), cfg.Probe.MaxTokens, logger),
		requester: extract.NewRequester(client, cfg.Extraction.MaxTokens, logger),
		logger:    logger.WithComponent("pipeline"),
	}
}

// SetProbeProgress installs a per-probe progress callback.
func (p *Pipeline) SetProbeProgress(fn func(done, total int, modelID string, verdict catalog.VisionSupport)) {
	p.prober.Progress = fn
}

// CatalogOptions control how EnsureCatalog refreshes.
type CatalogOptions struct {
	// Force refreshes from the listing feed even if the catalog is fresh.
	Force bool
	// SkipVisionCheck leaves unverified models unprobed.
	SkipVisionCheck bool
}

// EnsureCatalog loads the persisted catalog and brings it up to date:
// refresh from the listing feed when expired (or forced), then probe any
// models whose vision capability is still unknown. Each definitive probe
// verdict is persisted immediately.
func (p *Pipeline) EnsureCatalog(ctx context.Context, opts CatalogOptions) (*catalog.Catalog, error) {
	cat, expired, err := p.store.Load()
	if err != nil {
		return nil, err
	}

	if expired || opts.Force {
		if err := p.refreshCatalog(ctx, cat); err != nil {
			// a reachable feed is not required as long as something is
			// already on disk; degrade to the stale catalog
			if !domain.IsTransport(err) || cat.Len() == 0 {
				return nil, err
			}
			p.logger.Warn().Err(err).Msg("listing feed unreachable, using stale catalog")
		}
	}

	if !opts.SkipVisionCheck {
		stats, err := p.prober.ProbeUnverified(ctx, cat, func() error { return p.store.Save(cat) })
		if err != nil {
			return nil, err
		}
		if stats.Probed > 0 {
			p.logger.Info().
				Int("probed", stats.Probed).
				Int("supported", stats.Supported).
				Int("unsupported", stats.Unsupported).
				Int("inconclusive", stats.Inconclusive).
				Msg("vision probing complete")
		}
	}

	return cat, nil
}

// refreshCatalog fetches the listing feed with retry and merges it into
// the catalog, preserving probed verdicts per policy.
func (p *Pipeline) refreshCatalog(ctx context.Context, cat *catalog.Catalog) error {
	var rows []catalog.RemoteModel
	retryCfg := p.retryConfig()
	err := llm.Retry(ctx, retryCfg, p.logger, func() error {
		listCtx, cancel := context.WithTimeout(ctx, p.cfg.API.ListingTimeout.Std())
		defer cancel()
		var listErr error
		rows, listErr = p.client.ListModels(listCtx)
		return listErr
	})
	if err != nil {
		return err
	}

	stats := cat.Refresh(rows, catalog.RefreshPolicy{
		RemoteAuthoritative: p.cfg.Catalog.RemoteAuthoritative,
	}, nowFunc())
	p.logger.Info().
		Int("accepted", stats.Accepted).
		Int("skipped", stats.Skipped).
		Int("preserved", stats.Preserved).
		Msg("catalog refreshed")

	return p.store.Save(cat)
}

func (p *Pipeline) retryConfig() llm.RetryConfig {
	r := p.cfg.Extraction.Retry
	return llm.RetryConfig{
		MaxRetries:     r.MaxRetries,
		InitialBackoff: r.InitialBackoff.Std(),
		MaxBackoff:     r.MaxBackoff.Std(),
	}
}

// RunOptions parameterize one extraction run.
type RunOptions struct {
	// PDFPath is the source document. Ignored when ImagePath is set.
	PDFPath string
	// Page selects the 1-based page to render; 0 means the first page.
	Page int
	// ImagePath uses an already-extracted diagram image instead of a PDF.
	ImagePath string
	// OutputPath is where the animation script is written. Empty uses the
	// configured default.
	OutputPath string
	// DeduplicateEdges collapses repeated edges before rendering.
	DeduplicateEdges bool

	Catalog CatalogOptions
}

// Result is the outcome of a successful run.
type Result struct {
	RunID      string
	ModelID    string
	Graph      *domain.GraphStructure
	Matrix     [][]int
	ScriptPath string
	Page       int
}

// Run executes the full pipeline. On a no-eligible-model outcome it
// force-refreshes the catalog once and retries the selection before
// giving up; extraction retries transient transport failures only, never
// parse failures.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	runID := uuid.NewString()
	logger := p.logger.WithRunID(runID)

	img, err := p.loadDiagram(ctx, opts)
	if err != nil {
		return nil, err
	}
	logger.Info().Int("page", img.PageNumber).Int("bytes", len(img.Bytes)).Msg("diagram image ready")

	cat, err := p.EnsureCatalog(ctx, opts.Catalog)
	if err != nil {
		return nil, err
	}

	requirement, err := p.requirement()
	if err != nil {
		return nil, err
	}

	model, err := selector.Select(cat, requirement)
	if domain.IsNoEligibleModel(err) && !opts.Catalog.Force {
		logger.Warn().Err(err).Msg("no eligible model, force-refreshing catalog")
		cat, err = p.EnsureCatalog(ctx, CatalogOptions{Force: true, SkipVisionCheck: opts.Catalog.SkipVisionCheck})
		if err != nil {
			return nil, err
		}
		model, err = selector.Select(cat, requirement)
	}
	if err != nil {
		return nil, err
	}
	logger.Info().Str("model", model.ID).Msg("model selected")

	var graph *domain.GraphStructure
	extractCtx, cancel := context.WithTimeout(ctx, p.cfg.Extraction.Timeout.Std())
	defer cancel()
	err = llm.Retry(extractCtx, p.retryConfig(), logger, func() error {
		var exErr error
		graph, exErr = p.requester.Extract(extractCtx, model.ID, img)
		return exErr
	})
	if err != nil {
		return nil, err
	}

	if opts.DeduplicateEdges {
		graph.DeduplicateEdges()
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = p.cfg.Animation.Output
	}
	if err := animate.WriteScript(graph, outputPath, logger); err != nil {
		return nil, err
	}

	return &Result{
		RunID:      runID,
		ModelID:    model.ID,
		Graph:      graph,
		Matrix:     graph.AdjacencyMatrix(),
		ScriptPath: outputPath,
		Page:       img.PageNumber,
	}, nil
}

// loadDiagram produces the diagram image, either from a pre-extracted
// image file or by rendering a PDF page.
func (p *Pipeline) loadDiagram(ctx context.Context, opts RunOptions) (domain.PageImage, error) {
	if opts.ImagePath != "" {
		return loadImageFile(opts.ImagePath)
	}
	if opts.PDFPath == "" {
		return domain.PageImage{}, domain.ValidationError("either a pdf or an image path is required", nil)
	}
	return p.converter.ConvertPage(ctx, opts.PDFPath, opts.Page)
}

func loadImageFile(path string) (domain.PageImage, error) {
	var mimeType string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		mimeType = "image/png"
	case ".jpg", ".jpeg":
		mimeType = "image/jpeg"
	default:
		return domain.PageImage{}, domain.ValidationError(
			fmt.Sprintf("unsupported image format: %s", path), nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.PageImage{}, domain.IOError(fmt.Sprintf("reading %s", path), err)
	}
	return domain.PageImage{PageNumber: 1, Bytes: data, MIMEType: mimeType}, nil
}

// requirement builds the hard selection requirement from configuration.
func (p *Pipeline) requirement() (selector.Requirement, error) {
	ceiling, err := p.cfg.MaxCompletionCost()
	if err != nil {
		return selector.Requirement{}, err
	}
	return selector.Requirement{
		NeedsVision:       true,
		MaxCompletionCost: ceiling,
		MinContext:        p.cfg.Selection.MinContext,
	}, nil
}

// nowFunc is swappable in tests.
var nowFunc = time.Now
