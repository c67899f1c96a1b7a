// Package reconcile implements the Reconciler (spec component 4): it
// consumes a Matcher result plus the declared/previous net sets for a
// sheet and produces an ordered EditPlan, honoring the five ordering
// rules of spec §4.4.
package reconcile

import (
	"fmt"
	"sort"

	"github.com/kisync/kisync/internal/editplan"
	"github.com/kisync/kisync/internal/ir"
	"github.com/kisync/kisync/internal/kerrors"
	"github.com/kisync/kisync/internal/match"
)

// PlanError is returned when the plan cannot be built at all — the
// reconciler aborts rather than emit a partially valid plan (spec §4.4
// "Failure semantics").
type PlanError struct {
	Conflicts []*kerrors.Error
}

func (e *PlanError) Error() string {
	if len(e.Conflicts) == 1 {
		return e.Conflicts[0].Error()
	}
	return fmt.Sprintf("reconcile: %d conflicting edits, first: %s", len(e.Conflicts), e.Conflicts[0])
}

// Reconcile builds the EditPlan for one sheet.
func Reconcile(sheetID string, pairs []match.Pair, declaredNets, previousNets []ir.Net) (*editplan.Plan, error) {
	if conflicts := findDuplicateReferences(pairs); len(conflicts) > 0 {
		return nil, &PlanError{Conflicts: conflicts}
	}

	renameGroups, err := groupRenames(pairs)
	if err != nil {
		return nil, err
	}
	renameEdits, renameOf, conflictErr := planRenames(renameGroups)
	if conflictErr != nil {
		return nil, conflictErr
	}

	plan := &editplan.Plan{SheetID: sheetID}

	// Rule 1: deletions before additions of the same reference. Plain
	// deletes (not part of a rename) go out first.
	var deletes []editplan.Edit
	for _, p := range pairs {
		if p.IsDelete() {
			deletes = append(deletes, editplan.DeleteComponent{Reference: p.Existing.Reference, Unit: p.Existing.Unit})
		}
	}
	sort.Slice(deletes, func(i, j int) bool {
		return deletes[i].(editplan.DeleteComponent).Reference < deletes[j].(editplan.DeleteComponent).Reference
	})
	plan.Edits = append(plan.Edits, deletes...)

	// Rule 2: component renames before net updates — renameEdits is
	// already in dependency-safe order from planRenames.
	plan.Edits = append(plan.Edits, renameEdits...)

	// Matched-unrenamed pairs: canonical field-only updates.
	var updates []editplan.Edit
	for _, p := range pairs {
		if p.Declared == nil || p.Existing == nil || p.IsRename() {
			continue
		}
		if u, changed := fieldUpdate(p.Declared, p.Existing); changed {
			updates = append(updates, u)
		}
	}
	sort.Slice(updates, func(i, j int) bool {
		return updates[i].(editplan.UpdateComponent).Reference < updates[j].(editplan.UpdateComponent).Reference
	})
	plan.Edits = append(plan.Edits, updates...)

	// Additions.
	var adds []editplan.Edit
	for _, p := range pairs {
		if p.IsAdd() {
			adds = append(adds, editplan.AddComponent{Component: *p.Declared})
		}
	}
	sort.Slice(adds, func(i, j int) bool {
		return adds[i].(editplan.AddComponent).Component.Reference < adds[j].(editplan.AddComponent).Component.Reference
	})
	plan.Edits = append(plan.Edits, adds...)

	// Net edits, expressed in terms of the final (post-rename) reference
	// names — renameOf remaps any previousNets pin still using an old
	// reference before diffing.
	plan.Edits = append(plan.Edits, reconcileNets(declaredNets, previousNets, renameOf)...)

	return plan, nil
}

func findDuplicateReferences(pairs []match.Pair) []*kerrors.Error {
	counts := map[string]int{}
	for _, p := range pairs {
		if p.Declared != nil {
			counts[p.Declared.Reference]++
		}
	}
	var errs []*kerrors.Error
	var refs []string
	for ref := range counts {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	for _, ref := range refs {
		// A reference is only a real duplicate if more than one declared
		// entity carries it at the same unit number; distinct units of a
		// multi-unit symbol share a reference legitimately. Since
		// match.Pair is generated per declared (reference, unit) this
		// only triggers when the declaration itself repeats a
		// (reference, unit) pair.
		seenUnits := map[int]int{}
		for _, p := range pairs {
			if p.Declared != nil && p.Declared.Reference == ref {
				seenUnits[p.Declared.Unit]++
			}
		}
		for unit, n := range seenUnits {
			if n > 1 {
				errs = append(errs, kerrors.New(kerrors.DuplicateReference, "", ref,
					"reference %q unit %d declared %d times", ref, unit, n))
			}
		}
	}
	return errs
}

// fieldUpdate returns the UpdateComponent edit for a matched pair, if
// value/footprint/properties differ, never touching position/rotation/
// uuid (spec §4.4 "Field-only canonical update").
func fieldUpdate(declared, existing *ir.Component) (editplan.UpdateComponent, bool) {
	u := editplan.UpdateComponent{Reference: declared.Reference, Unit: declared.Unit}
	changed := false

	if declared.Value != existing.Value {
		v := declared.Value
		u.Value = &v
		changed = true
	}
	if declared.Footprint != existing.Footprint {
		f := declared.Footprint
		u.Footprint = &f
		changed = true
	}

	existingProps := map[string]string{}
	for _, p := range existing.Properties {
		existingProps[p.Name] = p.Value
	}
	declaredProps := map[string]bool{}
	for _, p := range declared.Properties {
		declaredProps[p.Name] = true
		if ev, ok := existingProps[p.Name]; !ok || ev != p.Value {
			u.SetProps = append(u.SetProps, p)
			changed = true
		}
	}
	for name := range existingProps {
		if !declaredProps[name] {
			u.RemoveProps = append(u.RemoveProps, name)
			changed = true
		}
	}
	sort.Strings(u.RemoveProps)

	return u, changed
}
