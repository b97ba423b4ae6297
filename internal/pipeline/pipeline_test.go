package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphpipe/graphpipe/internal/catalog"
	"github.com/graphpipe/graphpipe/internal/config"
	"github.com/graphpipe/graphpipe/internal/domain"
	"github.com/graphpipe/graphpipe/internal/llm"
	"github.com/graphpipe/graphpipe/internal/observability"
	"github.com/graphpipe/graphpipe/internal/probe"
)

// fakeAPI scripts the provider: a listing feed plus per-model chat
// behavior.
type fakeAPI struct {
	listings    [][]catalog.RemoteModel // consumed one per ListModels call
	listErr     error                   // returned by every ListModels call when set
	listCalls   int
	chatErrs    map[string]error  // error per model id, nil means success
	chatAnswers map[string]string // answer per model id
	chatCalls   []string
}

func (f *fakeAPI) ListModels(context.Context) ([]catalog.RemoteModel, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	idx := f.listCalls - 1
	if idx >= len(f.listings) {
		idx = len(f.listings) - 1
	}
	return f.listings[idx], nil
}

func (f *fakeAPI) ChatCompletion(_ context.Context, req llm.ChatRequest) (string, error) {
	f.chatCalls = append(f.chatCalls, req.Model)
	if err := f.chatErrs[req.Model]; err != nil {
		return "", err
	}
	if answer, ok := f.chatAnswers[req.Model]; ok {
		return answer, nil
	}
	return "ok", nil
}

func model(id string, ctxLen int) catalog.RemoteModel {
	return catalog.RemoteModel{ID: id, MaxContext: ctxLen}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.API.Key = "test-key"
	cfg.Catalog.Path = filepath.Join(dir, "model_cache.json")
	cfg.Probe.Delay = 0
	cfg.Animation.Output = filepath.Join(dir, "graph_manim.py")
	cfg.Extraction.Retry.InitialBackoff = config.Duration(time.Millisecond)
	cfg.Extraction.Retry.MaxBackoff = config.Duration(2 * time.Millisecond)
	return cfg
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diagram.png")
	require.NoError(t, os.WriteFile(path, probe.TinyPNG(), 0o644))
	return path
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	api := &fakeAPI{
		listings: [][]catalog.RemoteModel{{
			model("vendor/blind", 200000),
			model("vendor/sighted", 32000),
		}},
		chatErrs: map[string]error{
			"vendor/blind": domain.ValidationError("400: no image input type", llm.ErrImageRejected),
		},
		chatAnswers: map[string]string{
			"vendor/sighted": "Nodes: A, B, C\nEdges: A-B, B-C",
		},
	}

	p := New(cfg, api, observability.Nop())
	res, err := p.Run(context.Background(), RunOptions{ImagePath: writeImage(t)})
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "vendor/sighted", res.ModelID)
	assert.Equal(t, []string{"A", "B", "C"}, res.Graph.Nodes)
	assert.Equal(t, [][]int{{0, 1, 0}, {1, 0, 1}, {0, 1, 0}}, res.Matrix)

	script, err := os.ReadFile(res.ScriptPath)
	require.NoError(t, err)
	assert.Contains(t, string(script), "class GraphToAdjacency(Scene):")

	// probed verdicts were persisted
	store := catalog.NewStore(cfg.Catalog.Path, cfg.Catalog.Staleness.Std(), observability.Nop())
	cat, _, err := store.Load()
	require.NoError(t, err)
	blind, err := cat.Get("vendor/blind")
	require.NoError(t, err)
	assert.Equal(t, catalog.VisionUnsupported, blind.Vision)
	sighted, err := cat.Get("vendor/sighted")
	require.NoError(t, err)
	assert.Equal(t, catalog.VisionSupported, sighted.Vision)
}

func TestRunRefreshesOnceWhenNoEligibleModel(t *testing.T) {
	cfg := testConfig(t)
	api := &fakeAPI{
		listings: [][]catalog.RemoteModel{
			{}, // first refresh: empty feed
			{model("vendor/late", 32000)},
		},
		chatAnswers: map[string]string{
			"vendor/late": "Nodes: A\nEdges:",
		},
	}

	p := New(cfg, api, observability.Nop())
	res, err := p.Run(context.Background(), RunOptions{ImagePath: writeImage(t)})
	require.NoError(t, err)

	assert.Equal(t, "vendor/late", res.ModelID)
	assert.Equal(t, 2, api.listCalls, "selection failure triggers exactly one forced refresh")
}

func TestRunFailsWhenStillNoEligibleModel(t *testing.T) {
	cfg := testConfig(t)
	api := &fakeAPI{listings: [][]catalog.RemoteModel{{}}}

	p := New(cfg, api, observability.Nop())
	_, err := p.Run(context.Background(), RunOptions{ImagePath: writeImage(t)})
	require.Error(t, err)
	assert.True(t, domain.IsNoEligibleModel(err))
	assert.Equal(t, 2, api.listCalls)
}

func TestRunDoesNotRetryParseFailures(t *testing.T) {
	cfg := testConfig(t)
	api := &fakeAPI{
		listings: [][]catalog.RemoteModel{{model("vendor/chatty", 32000)}},
		chatAnswers: map[string]string{
			"vendor/chatty": "The diagram shows three nodes connected in a row.",
		},
	}

	p := New(cfg, api, observability.Nop())
	_, err := p.Run(context.Background(), RunOptions{ImagePath: writeImage(t)})
	require.Error(t, err)
	assert.True(t, domain.IsParse(err))
	assert.NotEmpty(t, domain.RawOutput(err))

	// one probe call plus exactly one extraction attempt
	assert.Equal(t, []string{"vendor/chatty", "vendor/chatty"}, api.chatCalls)
}

func TestRunDeduplicateEdgesOptIn(t *testing.T) {
	cfg := testConfig(t)
	api := &fakeAPI{
		listings: [][]catalog.RemoteModel{{model("vendor/m", 32000)}},
		chatAnswers: map[string]string{
			"vendor/m": "Nodes: A, B\nEdges: A-B, A-B",
		},
	}

	p := New(cfg, api, observability.Nop())
	res, err := p.Run(context.Background(), RunOptions{ImagePath: writeImage(t), DeduplicateEdges: true})
	require.NoError(t, err)
	assert.Len(t, res.Graph.Edges, 1)
}

func TestEnsureCatalogSkipVisionCheck(t *testing.T) {
	cfg := testConfig(t)
	api := &fakeAPI{listings: [][]catalog.RemoteModel{{model("vendor/m", 32000)}}}

	p := New(cfg, api, observability.Nop())
	cat, err := p.EnsureCatalog(context.Background(), CatalogOptions{SkipVisionCheck: true})
	require.NoError(t, err)

	assert.Empty(t, api.chatCalls, "no probes when vision check is skipped")
	assert.Equal(t, []string{"vendor/m"}, cat.Unverified())
}

func TestEnsureCatalogDegradesToStaleCatalogOnFeedFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Extraction.Retry.MaxRetries = 0

	// seed a stale catalog on disk
	store := catalog.NewStore(cfg.Catalog.Path, cfg.Catalog.Staleness.Std(), observability.Nop())
	seeded := catalog.New()
	seeded.Refresh([]catalog.RemoteModel{model("vendor/old", 32000)}, catalog.RefreshPolicy{}, time.Now().Add(-48*time.Hour))
	require.NoError(t, store.Save(seeded))

	api := &fakeAPI{listErr: domain.TransportError("connection refused", nil)}
	p := New(cfg, api, observability.Nop())

	cat, err := p.EnsureCatalog(context.Background(), CatalogOptions{SkipVisionCheck: true})
	require.NoError(t, err, "unreachable feed degrades to stale catalog")
	assert.Equal(t, 1, cat.Len())

	// with nothing on disk the failure propagates
	cfg2 := testConfig(t)
	cfg2.Extraction.Retry.MaxRetries = 0
	p2 := New(cfg2, api, observability.Nop())
	_, err = p2.EnsureCatalog(context.Background(), CatalogOptions{SkipVisionCheck: true})
	require.Error(t, err)
	assert.True(t, domain.IsTransport(err))
}

func TestEnsureCatalogFreshCatalogSkipsListing(t *testing.T) {
	cfg := testConfig(t)
	api := &fakeAPI{listings: [][]catalog.RemoteModel{{model("vendor/m", 32000)}}}
	p := New(cfg, api, observability.Nop())

	_, err := p.EnsureCatalog(context.Background(), CatalogOptions{SkipVisionCheck: true})
	require.NoError(t, err)
	require.Equal(t, 1, api.listCalls)

	// second call finds a fresh file on disk and does not hit the feed
	_, err = p.EnsureCatalog(context.Background(), CatalogOptions{SkipVisionCheck: true})
	require.NoError(t, err)
	assert.Equal(t, 1, api.listCalls)

	_, err = p.EnsureCatalog(context.Background(), CatalogOptions{Force: true, SkipVisionCheck: true})
	require.NoError(t, err)
	assert.Equal(t, 2, api.listCalls)
}
