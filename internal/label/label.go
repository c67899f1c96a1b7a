// Package label implements the Label Propagator (spec component 5): it
// derives hierarchical-label and sheet-pin edits from net reconciliation,
// run after component matching and before serialization (spec §4.5).
package label

import (
	"sort"

	"github.com/kisync/kisync/internal/editplan"
	"github.com/kisync/kisync/internal/ir"
	"github.com/kisync/kisync/internal/kerrors"
)

// Boundary is one parent/child sheet pair to propagate across.
type Boundary struct {
	Child               *ir.Sheet
	Parent              *ir.Sheet
	ChildFileName       string // the child's on-disk file name, the key existing parent SheetPins are indexed by
	ExistingChildLabels []ir.HierLabel
	ExistingParentPins  []ir.SheetPin
}

// Result is the propagator's output for one boundary.
type Result struct {
	ChildEdits  []editplan.Edit // AddLabel / RemoveLabel, for the child sheet's own plan
	ParentEdits []editplan.Edit // AddSheetPin / RemoveSheetPin, for the parent sheet's own plan
	Warnings    []*kerrors.Error
}

// Propagate computes the label/sheet-pin edit set for one hierarchy
// boundary. A net crosses the boundary when a declared net of the same
// name exists on both the child and the parent sheet — that shared name
// is this engine's definition of "external_pins(N) participates in the
// parent sheet's pin set" (spec §4.5), since pin-level connectivity
// across a sheet symbol is otherwise only resolvable with the symbol
// library collaborator this core does not have (spec §1, §9).
func Propagate(b Boundary) Result {
	desired := crossingNets(b.Child, b.Parent)

	existingChildByName := map[string]ir.HierLabel{}
	for _, l := range b.ExistingChildLabels {
		existingChildByName[l.NetName] = l
	}
	existingParentByName := map[string]ir.SheetPin{}
	for _, p := range b.ExistingParentPins {
		existingParentByName[p.NetName] = p
	}

	var names []string
	for n := range desired {
		names = append(names, n)
	}
	sort.Strings(names)

	var childEdits, parentEdits []editplan.Edit

	for _, name := range names {
		if _, ok := existingChildByName[name]; !ok {
			childEdits = append(childEdits, editplan.AddLabel{Label: ir.HierLabel{
				NetName:   name,
				Direction: ir.DirBidir,
				SheetID:   b.Child.ID,
			}})
		}
		if _, ok := existingParentByName[name]; !ok {
			parentEdits = append(parentEdits, editplan.AddSheetPin{
				ChildSheetID: b.ChildFileName,
				Pin:          ir.SheetPin{NetName: name, Direction: ir.DirBidir, ChildSheetID: b.ChildFileName},
			})
		}
	}

	// Stale-label cleanup: anything existing but no longer desired is
	// removed outright, never left as a shadowed duplicate (spec §4.5
	// "critical — issue #380 in source").
	var existingChildNames []string
	for n := range existingChildByName {
		existingChildNames = append(existingChildNames, n)
	}
	sort.Strings(existingChildNames)
	for _, name := range existingChildNames {
		if !desired[name] {
			childEdits = append(childEdits, editplan.RemoveLabel{UUID: existingChildByName[name].UUID})
		}
	}

	var existingParentNames []string
	for n := range existingParentByName {
		existingParentNames = append(existingParentNames, n)
	}
	sort.Strings(existingParentNames)
	for _, name := range existingParentNames {
		if !desired[name] {
			parentEdits = append(parentEdits, editplan.RemoveSheetPin{ChildSheetID: b.ChildFileName, UUID: existingParentByName[name].UUID})
		}
	}

	return Result{ChildEdits: childEdits, ParentEdits: parentEdits}
}

// crossingNets returns the set of non-power net names declared on both
// sides of a sheet boundary.
func crossingNets(child, parent *ir.Sheet) map[string]bool {
	parentNames := map[string]bool{}
	for _, n := range parent.Nets {
		if !n.IsPower {
			parentNames[n.Name] = true
		}
	}
	out := map[string]bool{}
	for _, n := range child.Nets {
		if n.IsPower {
			continue
		}
		if parentNames[n.Name] {
			out[n.Name] = true
		}
	}
	return out
}
