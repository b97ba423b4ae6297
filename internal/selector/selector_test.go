package selector

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphpipe/graphpipe/internal/catalog"
	"github.com/graphpipe/graphpipe/internal/domain"
)

type modelSpec struct {
	id     string
	ctx    int
	cost   string
	vision catalog.VisionSupport
}

func buildCatalog(t *testing.T, specs ...modelSpec) *catalog.Catalog {
	t.Helper()
	rows := make([]catalog.RemoteModel, 0, len(specs))
	for _, s := range specs {
		rows = append(rows, catalog.RemoteModel{
			ID:                 s.id,
			MaxContext:         s.ctx,
			CostPerMContext:    decimal.Zero,
			CostPerMCompletion: decimal.RequireFromString(s.cost),
		})
	}
	c := catalog.New()
	c.Refresh(rows, catalog.RefreshPolicy{}, time.Now())
	for _, s := range specs {
		if s.vision != "" && s.vision != catalog.VisionUnknown {
			require.NoError(t, c.SetVisionVerdict(s.id, s.vision))
		}
	}
	return c
}

func ceiling(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestSelectCheapestUnderCeiling(t *testing.T) {
	c := buildCatalog(t,
		modelSpec{id: "vendor/big", ctx: 200000, cost: "0.80", vision: catalog.VisionSupported},
		modelSpec{id: "vendor/small", ctx: 8000, cost: "0.12", vision: catalog.VisionSupported},
	)

	picked, err := Select(c, Requirement{NeedsVision: true, MaxCompletionCost: ceiling("0.50")})
	require.NoError(t, err)
	assert.Equal(t, "vendor/small", picked.ID)
}

func TestSelectLargestContextWithoutCeiling(t *testing.T) {
	c := buildCatalog(t,
		modelSpec{id: "vendor/big", ctx: 200000, cost: "0.80", vision: catalog.VisionSupported},
		modelSpec{id: "vendor/small", ctx: 8000, cost: "0.12", vision: catalog.VisionSupported},
	)

	picked, err := Select(c, Requirement{NeedsVision: true})
	require.NoError(t, err)
	assert.Equal(t, "vendor/big", picked.ID)
}

func TestSelectUnverifiedVisionIsNotEligible(t *testing.T) {
	c := buildCatalog(t,
		modelSpec{id: "vendor/unknown", ctx: 200000, cost: "0.10"},
		modelSpec{id: "vendor/denied", ctx: 200000, cost: "0.10", vision: catalog.VisionUnsupported},
		modelSpec{id: "vendor/verified", ctx: 8000, cost: "0.90", vision: catalog.VisionSupported},
	)

	picked, err := Select(c, Requirement{NeedsVision: true})
	require.NoError(t, err)
	assert.Equal(t, "vendor/verified", picked.ID)
}

func TestSelectMinContext(t *testing.T) {
	c := buildCatalog(t,
		modelSpec{id: "vendor/tiny", ctx: 4096, cost: "0.01"},
		modelSpec{id: "vendor/roomy", ctx: 32768, cost: "0.50"},
	)

	picked, err := Select(c, Requirement{MinContext: 16000})
	require.NoError(t, err)
	assert.Equal(t, "vendor/roomy", picked.ID)
}

func TestSelectNoEligibleModel(t *testing.T) {
	c := buildCatalog(t,
		modelSpec{id: "vendor/pricey", ctx: 8000, cost: "2.00", vision: catalog.VisionSupported},
	)

	_, err := Select(c, Requirement{NeedsVision: true, MaxCompletionCost: ceiling("0.50")})
	require.Error(t, err)
	assert.True(t, domain.IsNoEligibleModel(err))

	_, err = Select(catalog.New(), Requirement{})
	require.Error(t, err)
	assert.True(t, domain.IsNoEligibleModel(err))
}

func TestRankTieBreaksOnID(t *testing.T) {
	c := buildCatalog(t,
		modelSpec{id: "vendor/b", ctx: 8000, cost: "0.20"},
		modelSpec{id: "vendor/a", ctx: 8000, cost: "0.20"},
		modelSpec{id: "vendor/c", ctx: 8000, cost: "0.10"},
	)

	ranked := Rank(c, Requirement{MaxCompletionCost: ceiling("1.00")})
	require.Len(t, ranked, 3)
	assert.Equal(t, "vendor/c", ranked[0].ID)
	assert.Equal(t, "vendor/a", ranked[1].ID)
	assert.Equal(t, "vendor/b", ranked[2].ID)
}

func TestRankIsDeterministic(t *testing.T) {
	c := buildCatalog(t,
		modelSpec{id: "vendor/x", ctx: 16000, cost: "0.30"},
		modelSpec{id: "vendor/y", ctx: 16000, cost: "0.30"},
		modelSpec{id: "vendor/z", ctx: 32000, cost: "0.60"},
	)

	first := Rank(c, Requirement{})
	for i := 0; i < 10; i++ {
		again := Rank(c, Requirement{})
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].ID, again[j].ID)
		}
	}
}
