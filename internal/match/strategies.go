package match

import (
	"sort"

	"github.com/kisync/kisync/internal/ir"
	"github.com/kisync/kisync/internal/kerrors"
)

// matchUUID implements strategy 1: a declared component carrying a
// round-tripped CAD uuid pairs with the existing component of that uuid.
// This is what lets a RENAME survive across syncs (spec §4.3 "Handles
// rename").
func matchUUID(p *pool) {
	for _, d := range append([]*ir.Component{}, p.declared...) {
		if d.UUID == "" {
			continue
		}
		for _, e := range p.existing {
			if e.UUID == d.UUID {
				p.pair(d, e, StrategyUUID)
				break
			}
		}
	}
}

// matchReference implements strategy 2: exact (reference, unit) equality
// — the common fast path for an unchanged component.
func matchReference(p *pool) {
	for _, d := range append([]*ir.Component{}, p.declared...) {
		for _, e := range p.existing {
			if e.Reference == d.Reference && e.Unit == d.Unit {
				p.pair(d, e, StrategyReference)
				break
			}
		}
	}
}

// netSignature returns the sorted set of "pin:netname" strings for every
// net membership belonging to ref, across all of that reference's units
// — the connection-topology fingerprint spec §4.3 strategy 3 compares.
func netSignature(ref string, nets []ir.Net) []string {
	var sig []string
	for _, n := range nets {
		for _, pin := range n.Pins {
			if pin.Reference == ref {
				sig = append(sig, pin.Pin+":"+n.Name)
			}
		}
	}
	sort.Strings(sig)
	return sig
}

func sameSignature(a, b []string) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// matchTopology implements strategy 3: components whose reference
// changed but whose connected-net signature didn't. It operates at
// reference granularity (not per unit) because splitting pins across
// symbol units requires the symbol library resolver, an out-of-scope
// collaborator (spec §1, §9) — so this engine cannot tell which pin
// belongs to which unit, only which reference a pin belongs to.
func matchTopology(p *pool, declaredNets, previousNets []ir.Net) []*kerrors.Error {
	var ambiguous []*kerrors.Error

	declaredRefs := distinctReferences(p.declared)
	for _, dref := range declaredRefs {
		dsig := netSignature(dref, declaredNets)
		if len(dsig) == 0 {
			continue
		}

		var candidates []string
		for _, eref := range distinctReferences(p.existing) {
			if sameSignature(dsig, netSignature(eref, previousNets)) {
				candidates = append(candidates, eref)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		if len(candidates) > 1 {
			ambiguous = append(ambiguous, kerrors.New(kerrors.AmbiguousMatch, "", dref,
				"topology match for %q is ambiguous among existing references %v; using %q", dref, candidates, candidates[0]))
		}
		eref := candidates[0]

		pairUnitsByReference(p, dref, eref, StrategyTopology)
	}
	return ambiguous
}

func distinctReferences(entities []*ir.Component) []string {
	seen := map[string]bool{}
	var refs []string
	for _, e := range entities {
		if !seen[e.Reference] {
			seen[e.Reference] = true
			refs = append(refs, e.Reference)
		}
	}
	sort.Strings(refs)
	return refs
}

// pairUnitsByReference pairs every declared unit of dref with the
// existing unit of eref sharing the same unit number, falling back to
// arbitrary order if unit numbers don't line up (e.g. unit count
// changed alongside the rename).
func pairUnitsByReference(p *pool, dref, eref, strategy string) {
	var dUnits, eUnits []*ir.Component
	for _, d := range p.declared {
		if d.Reference == dref {
			dUnits = append(dUnits, d)
		}
	}
	for _, e := range p.existing {
		if e.Reference == eref {
			eUnits = append(eUnits, e)
		}
	}

	used := map[*ir.Component]bool{}
	for _, d := range dUnits {
		var match *ir.Component
		for _, e := range eUnits {
			if used[e] {
				continue
			}
			if e.Unit == d.Unit {
				match = e
				break
			}
		}
		if match == nil {
			for _, e := range eUnits {
				if !used[e] {
					match = e
					break
				}
			}
		}
		if match != nil {
			used[match] = true
			p.pair(d, match, strategy)
		}
	}
}

// matchPositionProperties implements strategy 4: within tolerance AND
// same lib_id/value/footprint but a different reference. This is the
// rename detector for the common case (spec §4.3 scenario S2): the user
// renamed R1 to R2 in the declaration but didn't move it.
func matchPositionProperties(p *pool, tol Tolerance) []*kerrors.Error {
	var ambiguous []*kerrors.Error
	tolSq := tol.PositionMM * tol.PositionMM

	for _, d := range append([]*ir.Component{}, p.declared...) {
		var best *ir.Component
		bestDist := tolSq
		var tied []*ir.Component

		for _, e := range p.existing {
			if e.LibID != d.LibID || e.Value != d.Value || e.Footprint != d.Footprint {
				continue
			}
			dist := d.Position.DistanceSquared(e.Position)
			if dist > tolSq {
				continue
			}
			if best == nil || dist < bestDist {
				best = e
				bestDist = dist
				tied = []*ir.Component{e}
			} else if dist == bestDist {
				tied = append(tied, e)
			}
		}
		if best == nil {
			continue
		}
		if len(tied) > 1 {
			sort.Slice(tied, func(i, j int) bool { return tied[i].Reference < tied[j].Reference })
			best = tied[0]
			ambiguous = append(ambiguous, kerrors.New(kerrors.AmbiguousMatch, "", d.Reference,
				"position+properties match for %q is ambiguous; using lexicographically lowest candidate %q", d.Reference, best.Reference))
		}
		p.pair(d, best, StrategyPosition)
	}
	return ambiguous
}

// matchValueFootprint implements strategy 5, the weakest fallback: same
// lib_id/value/footprint regardless of position, tie-broken by lowest
// positional distance then lexicographic reference order.
func matchValueFootprint(p *pool, tol Tolerance) []*kerrors.Error {
	var ambiguous []*kerrors.Error

	for _, d := range append([]*ir.Component{}, p.declared...) {
		var candidates []*ir.Component
		for _, e := range p.existing {
			if e.LibID == d.LibID && e.Value == d.Value && e.Footprint == d.Footprint {
				candidates = append(candidates, e)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		sort.Slice(candidates, func(i, j int) bool {
			di := d.Position.DistanceSquared(candidates[i].Position)
			dj := d.Position.DistanceSquared(candidates[j].Position)
			if di != dj {
				return di < dj
			}
			return candidates[i].Reference < candidates[j].Reference
		})
		if len(candidates) > 1 {
			ambiguous = append(ambiguous, kerrors.New(kerrors.AmbiguousMatch, "", d.Reference,
				"value+footprint match for %q is ambiguous among %d candidates; using closest/lowest %q",
				d.Reference, len(candidates), candidates[0].Reference))
		}
		p.pair(d, candidates[0], StrategyValue)
	}
	return ambiguous
}
