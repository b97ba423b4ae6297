// Package catalog maintains the persisted model catalog: which remote
// models exist, what they cost, and whether they accept image content.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by Get for unknown model ids.
var ErrNotFound = errors.New("model not found in catalog")

// VisionSupport is a three-valued capability flag. "unknown" means the
// capability has not been verified yet; it is never conflated with a
// negative verdict.
type VisionSupport string

const (
	VisionSupported   VisionSupport = "supported"
	VisionUnsupported VisionSupport = "unsupported"
	VisionUnknown     VisionSupport = "unknown"
)

// Valid reports whether v is one of the three defined values.
func (v VisionSupport) Valid() bool {
	switch v {
	case VisionSupported, VisionUnsupported, VisionUnknown:
		return true
	}
	return false
}

// ModelDescriptor is the catalog's record for one remote model.
type ModelDescriptor struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title,omitempty"`
	MaxContext         int             `json:"max_context"`
	CostPerMContext    decimal.Decimal `json:"cost_context"`
	CostPerMCompletion decimal.Decimal `json:"cost_completion"`
	Vision             VisionSupport   `json:"vision"`
	// VisionProbed marks verdicts obtained empirically rather than declared
	// by the listing feed.
	VisionProbed bool `json:"vision_probed,omitempty"`
}

// RemoteModel is one row of the remote listing feed.
type RemoteModel struct {
	ID                 string
	Title              string
	MaxContext         int
	CostPerMContext    decimal.Decimal
	CostPerMCompletion decimal.Decimal
	// Vision is the capability declared by the feed, if any.
	Vision *bool
	// VisionAuthoritative marks the declared capability as verified
	// upstream rather than advertised.
	VisionAuthoritative bool
}

// RefreshPolicy controls how declared capability flags reconcile with
// previously probed verdicts.
type RefreshPolicy struct {
	// RemoteAuthoritative lets a feed row marked authoritative override a
	// probed verdict. Default is to preserve the probed verdict.
	RemoteAuthoritative bool
}

// Catalog is the in-memory model catalog. It is the single source of truth
// for model selection; only its own refresh routine consumes the remote
// listing. Not safe for concurrent mutation.
type Catalog struct {
	Models      map[string]*ModelDescriptor `json:"models"`
	LastRefresh time.Time                   `json:"last_updated"`
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{Models: make(map[string]*ModelDescriptor)}
}

// Len returns the number of catalogued models.
func (c *Catalog) Len() int { return len(c.Models) }

// Expired reports whether the catalog is older than the staleness threshold.
// A catalog that has never been refreshed is always expired.
func (c *Catalog) Expired(staleness time.Duration) bool {
	if c.LastRefresh.IsZero() {
		return true
	}
	return time.Since(c.LastRefresh) > staleness
}

// Get returns the descriptor for id, or ErrNotFound.
func (c *Catalog) Get(id string) (*ModelDescriptor, error) {
	d, ok := c.Models[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	return d, nil
}

// Descriptors returns all descriptors sorted by id for deterministic
// iteration.
func (c *Catalog) Descriptors() []*ModelDescriptor {
	out := make([]*ModelDescriptor, 0, len(c.Models))
	for _, d := range c.Models {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Unverified returns the ids of models whose vision capability is still
// unknown, sorted for a stable probing order.
func (c *Catalog) Unverified() []string {
	var ids []string
	for id, d := range c.Models {
		if d.Vision == VisionUnknown {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// SetVisionVerdict records a probed verdict for id. Unknown verdicts are
// not recorded: a probe that could not classify the model must leave the
// catalog untouched.
func (c *Catalog) SetVisionVerdict(id string, v VisionSupport) error {
	if v == VisionUnknown {
		return nil
	}
	d, ok := c.Models[id]
	if !ok {
		return fmt.Errorf("%q: %w", id, ErrNotFound)
	}
	d.Vision = v
	d.VisionProbed = true
	return nil
}

// RefreshStats summarizes one refresh pass.
type RefreshStats struct {
	Total     int // rows received from the feed
	Accepted  int
	Skipped   int // malformed rows, skipped individually
	Preserved int // probed verdicts carried over
}

// Refresh replaces the catalog contents with the given feed rows. Malformed
// rows are skipped one by one; a bad row never fails the whole refresh.
// Probed vision verdicts survive unless the policy lets an authoritative
// feed row override them.
func (c *Catalog) Refresh(entries []RemoteModel, policy RefreshPolicy, now time.Time) RefreshStats {
	stats := RefreshStats{Total: len(entries)}
	next := make(map[string]*ModelDescriptor, len(entries))

	for _, e := range entries {
		if !ValidModelID(e.ID) || e.MaxContext < 0 ||
			e.CostPerMContext.IsNegative() || e.CostPerMCompletion.IsNegative() {
			stats.Skipped++
			continue
		}
		if _, dup := next[e.ID]; dup {
			stats.Skipped++
			continue
		}

		d := &ModelDescriptor{
			ID:                 e.ID,
			Title:              e.Title,
			MaxContext:         e.MaxContext,
			CostPerMContext:    e.CostPerMContext,
			CostPerMCompletion: e.CostPerMCompletion,
			Vision:             VisionUnknown,
		}
		if e.Vision != nil {
			if *e.Vision {
				d.Vision = VisionSupported
			} else {
				d.Vision = VisionUnsupported
			}
		}

		if prev, ok := c.Models[e.ID]; ok && prev.VisionProbed {
			remoteWins := policy.RemoteAuthoritative && e.VisionAuthoritative && e.Vision != nil
			if !remoteWins {
				d.Vision = prev.Vision
				d.VisionProbed = true
				stats.Preserved++
			}
		}

		next[e.ID] = d
		stats.Accepted++
	}

	c.Models = next
	c.LastRefresh = now
	return stats
}

// ValidModelID reports whether id is a syntactically valid model
// identifier: non-empty, printable, no whitespace.
func ValidModelID(id string) bool {
	if id == "" {
		return false
	}
	return !strings.ContainsFunc(id, func(r rune) bool {
		return unicode.IsSpace(r) || !unicode.IsPrint(r)
	})
}
