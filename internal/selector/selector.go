// Package selector ranks catalogued models against a requirement and
// picks one deterministically.
package selector

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/graphpipe/graphpipe/internal/catalog"
	"github.com/graphpipe/graphpipe/internal/domain"
)

// Requirement describes what the caller needs from a model. The zero value
// accepts any model.
type Requirement struct {
	// NeedsVision demands a verified vision capability. An unverified
	// model never satisfies it; absence of a negative verdict is not a
	// positive one.
	NeedsVision bool
	// MaxCompletionCost is an inclusive ceiling on completion cost per
	// million tokens. Nil means no ceiling.
	MaxCompletionCost *decimal.Decimal
	// MinContext is the minimum context window, in tokens. Zero means no
	// floor.
	MinContext int
}

func (r Requirement) String() string {
	s := "any"
	if r.NeedsVision {
		s = "vision"
	}
	if r.MaxCompletionCost != nil {
		s += fmt.Sprintf(", completion cost <= %s", r.MaxCompletionCost)
	}
	if r.MinContext > 0 {
		s += fmt.Sprintf(", context >= %d", r.MinContext)
	}
	return s
}

// eligible applies the hard requirements.
func eligible(d *catalog.ModelDescriptor, req Requirement) bool {
	if req.NeedsVision && d.Vision != catalog.VisionSupported {
		return false
	}
	if req.MaxCompletionCost != nil && d.CostPerMCompletion.GreaterThan(*req.MaxCompletionCost) {
		return false
	}
	if req.MinContext > 0 && d.MaxContext < req.MinContext {
		return false
	}
	return true
}

// Rank returns every eligible model in preference order. With a cost
// ceiling the cheapest completion wins; without one the largest context
// window wins, cost second. Ties always fall back to id so the ordering is
// total and repeatable.
func Rank(c *catalog.Catalog, req Requirement) []*catalog.ModelDescriptor {
	var ranked []*catalog.ModelDescriptor
	for _, d := range c.Descriptors() {
		if eligible(d, req) {
			ranked = append(ranked, d)
		}
	}

	if req.MaxCompletionCost != nil {
		sort.SliceStable(ranked, func(i, j int) bool {
			if !ranked[i].CostPerMCompletion.Equal(ranked[j].CostPerMCompletion) {
				return ranked[i].CostPerMCompletion.LessThan(ranked[j].CostPerMCompletion)
			}
			return ranked[i].ID < ranked[j].ID
		})
		return ranked
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].MaxContext != ranked[j].MaxContext {
			return ranked[i].MaxContext > ranked[j].MaxContext
		}
		if !ranked[i].CostPerMCompletion.Equal(ranked[j].CostPerMCompletion) {
			return ranked[i].CostPerMCompletion.LessThan(ranked[j].CostPerMCompletion)
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}

// Select returns the single best model for the requirement, or a typed
// no-eligible-model error naming what was asked for.
func Select(c *catalog.Catalog, req Requirement) (*catalog.ModelDescriptor, error) {
	ranked := Rank(c, req)
	if len(ranked) == 0 {
		return nil, domain.NoEligibleModelError(
			fmt.Sprintf("no model satisfies requirement (%s) among %d catalogued", req, c.Len()))
	}
	return ranked[0], nil
}
