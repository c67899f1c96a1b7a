// Package match implements the Matcher (spec component 3): it pairs
// declared components against existing (on-disk) components per sheet
// using a fixed, ordered strategy chain, producing a partial bijection
// that the Reconciler turns into an EditPlan.
package match

import (
	"sort"

	"github.com/kisync/kisync/internal/ir"
	"github.com/kisync/kisync/internal/kerrors"
)

// Strategy names, in the fixed order spec §4.3 mandates. Each strategy
// consumes matched entities from both pools before the next runs.
const (
	StrategyUUID       = "uuid"
	StrategyReference  = "reference"
	StrategyTopology   = "topology"
	StrategyPosition   = "position+properties"
	StrategyValue      = "value+footprint"
)

// Pair is one matcher outcome. Exactly one of Declared/Existing is nil
// for an unmatched entity (ADD or DELETE respectively); Strategy is ""
// for those. A Rename is a matched Pair whose Declared.Reference !=
// Existing.Reference.
type Pair struct {
	Declared *ir.Component
	Existing *ir.Component
	Strategy string
}

// IsRename reports whether a matched pair's reference changed.
func (p Pair) IsRename() bool {
	return p.Declared != nil && p.Existing != nil && p.Declared.Reference != p.Existing.Reference
}

// IsAdd reports whether this pair is an unmatched declared component.
func (p Pair) IsAdd() bool { return p.Declared != nil && p.Existing == nil }

// IsDelete reports whether this pair is an unmatched existing component.
func (p Pair) IsDelete() bool { return p.Declared == nil && p.Existing != nil }

// Result is the full matcher outcome for one sheet.
type Result struct {
	Pairs       []Pair
	Ambiguities []*kerrors.Error // AmbiguousMatch warnings, never fatal
}

// Tolerance bundles the distance/tie-break inputs the position-based
// strategies need.
type Tolerance struct {
	PositionMM float64 // spec §4.2 default 2.54mm
}

// Match runs the five-strategy chain over one sheet's declared and
// existing components. declaredNets/previousNets feed the
// connection-topology strategy: previousNets is the net membership this
// engine persisted for the sheet on the prior sync (its canonical JSON
// mirror, spec §6.5) — the stand-in for "the existing CAD file's wiring"
// since this engine treats wire geometry as an opaque blob rather than
// deriving nets from it (spec §9).
func Match(declared, existing []ir.Component, declaredNets, previousNets []ir.Net, tol Tolerance) Result {
	pool := newPool(declared, existing)
	var ambiguous []*kerrors.Error

	matchUUID(pool)
	matchReference(pool)
	ambiguous = append(ambiguous, matchTopology(pool, declaredNets, previousNets)...)
	ambiguous = append(ambiguous, matchPositionProperties(pool, tol)...)
	ambiguous = append(ambiguous, matchValueFootprint(pool, tol)...)

	return Result{Pairs: pool.finish(), Ambiguities: ambiguous}
}

// pool tracks the still-unmatched declared/existing components (as
// pointers into copies, so strategies can remove entries) plus the pairs
// already produced.
type pool struct {
	declared []*ir.Component
	existing []*ir.Component
	pairs    []Pair
}

func newPool(declared, existing []ir.Component) *pool {
	p := &pool{}
	for i := range declared {
		p.declared = append(p.declared, &declared[i])
	}
	for i := range existing {
		p.existing = append(p.existing, &existing[i])
	}
	return p
}

func (p *pool) pair(d, e *ir.Component, strategy string) {
	p.pairs = append(p.pairs, Pair{Declared: d, Existing: e, Strategy: strategy})
	p.removeDeclared(d)
	p.removeExisting(e)
}

func (p *pool) removeDeclared(d *ir.Component) {
	for i, c := range p.declared {
		if c == d {
			p.declared = append(p.declared[:i], p.declared[i+1:]...)
			return
		}
	}
}

func (p *pool) removeExisting(e *ir.Component) {
	for i, c := range p.existing {
		if c == e {
			p.existing = append(p.existing[:i], p.existing[i+1:]...)
			return
		}
	}
}

// finish emits the remaining unmatched entities as ADD/DELETE pairs and
// returns the full pair list, declared-adds and deletes sorted by
// reference for deterministic plan ordering.
func (p *pool) finish() []Pair {
	sort.Slice(p.declared, func(i, j int) bool { return entityKey(p.declared[i]) < entityKey(p.declared[j]) })
	sort.Slice(p.existing, func(i, j int) bool { return entityKey(p.existing[i]) < entityKey(p.existing[j]) })

	out := append([]Pair{}, p.pairs...)
	for _, d := range p.declared {
		out = append(out, Pair{Declared: d})
	}
	for _, e := range p.existing {
		out = append(out, Pair{Existing: e})
	}
	sort.SliceStable(out, func(i, j int) bool { return pairKey(out[i]) < pairKey(out[j]) })
	return out
}

func entityKey(c *ir.Component) string {
	return c.Reference
}

func pairKey(p Pair) string {
	if p.Declared != nil {
		return p.Declared.Reference
	}
	return p.Existing.Reference
}
