// Package editplan defines the ordered set of edits the Reconciler
// produces and the Edit Applier executes against a schematic index
// (spec §4.4 "Reconciler", the Edit variants listed there).
package editplan

import "github.com/kisync/kisync/internal/ir"

// Edit is one atomic change to a sheet. It is a closed set of concrete
// types (below); callers type-switch on it.
type Edit interface {
	editKind() string
}

// AddComponent places a new component on the sheet. Position is left
// zero-valued when the reconciler doesn't yet know the final placement;
// the Edit Applier computes it (spec §4.6.1).
type AddComponent struct {
	Component ir.Component
}

// UpdateComponent mutates only the named fields of an existing,
// matched component. It must never carry Position, Rotation or UUID —
// the canonical-update preservation contract (spec §4.4, §8 property 3)
// is enforced by never putting those fields in this struct at all.
type UpdateComponent struct {
	Reference    string
	Unit         int
	Value        *string
	Footprint    *string
	SetProps     []ir.Property
	RemoveProps  []string
}

// RenameComponent is a single atomic reference change, applied to the
// CAD entity and to every sibling edit that mentions the old reference
// (spec §4.4 "Rename execution"). Position and UUID are untouched.
type RenameComponent struct {
	OldReference string
	NewReference string
	Unit         int
}

// DeleteComponent removes a component's symbol node (all its units if
// Unit == 0, a single unit otherwise). Hierarchical labels are not
// touched by it; labels are removed only by RemoveLabel edits.
type DeleteComponent struct {
	Reference string
	Unit      int // 0 means "every unit sharing Reference"
}

// AddNet, UpdateNetMembership, RenameNet and DeleteNet never touch the
// CAD file directly — net membership has no on-disk representation of
// its own (spec §4.6: "wires survive because the label set ... is the
// source of truth"). They exist so the Reconciler's plan is a complete,
// auditable record of what changed; the Label Propagator is what turns
// net changes into concrete label/sheet-pin edits.
type AddNet struct {
	Net ir.Net
}

type UpdateNetMembership struct {
	NetName    string
	AddPins    []ir.PinRef
	RemovePins []ir.PinRef
}

type RenameNet struct {
	OldName string
	NewName string
}

type DeleteNet struct {
	NetName string
}

// AddSheet introduces a new child sheet, to be emitted before any edit
// targeting it (spec §4.4 ordering rule 3).
type AddSheet struct {
	Sheet ir.Sheet
}

// DeleteSheet removes the parent-side sheet symbol (and its pins) whose
// Sheetfile property equals SheetID, which therefore holds the child's
// file name. Applying it does not touch the child's file; the
// orchestrator removes that file after the edit applies.
type DeleteSheet struct {
	SheetID string
}

// ChangePageSize resizes a sheet's paper when its bounding box no longer
// fits (spec §4.6, test 68).
type ChangePageSize struct {
	NewSize ir.PageSize
}

// AddLabel and RemoveLabel are the Label Propagator's output (spec §4.5),
// appended after every component edit (ordering rule 5).
type AddLabel struct {
	Label ir.HierLabel
}

type RemoveLabel struct {
	UUID string
}

// AddSheetPin and RemoveSheetPin are the parent-side counterpart to
// AddLabel/RemoveLabel, targeting the parent sheet's own EditPlan.
type AddSheetPin struct {
	ChildSheetID string
	Pin          ir.SheetPin
}

type RemoveSheetPin struct {
	ChildSheetID string
	UUID         string
}

func (AddComponent) editKind() string        { return "AddComponent" }
func (UpdateComponent) editKind() string     { return "UpdateComponent" }
func (RenameComponent) editKind() string     { return "RenameComponent" }
func (DeleteComponent) editKind() string     { return "DeleteComponent" }
func (AddNet) editKind() string              { return "AddNet" }
func (UpdateNetMembership) editKind() string { return "UpdateNetMembership" }
func (RenameNet) editKind() string           { return "RenameNet" }
func (DeleteNet) editKind() string           { return "DeleteNet" }
func (AddSheet) editKind() string            { return "AddSheet" }
func (DeleteSheet) editKind() string         { return "DeleteSheet" }
func (ChangePageSize) editKind() string      { return "ChangePageSize" }
func (AddLabel) editKind() string            { return "AddLabel" }
func (RemoveLabel) editKind() string         { return "RemoveLabel" }
func (AddSheetPin) editKind() string         { return "AddSheetPin" }
func (RemoveSheetPin) editKind() string      { return "RemoveSheetPin" }

// Kind returns a human-readable tag for an edit, used in logs and the
// SyncReport.
func Kind(e Edit) string {
	return e.editKind()
}

// Plan is the Reconciler's ordered output for one sheet.
type Plan struct {
	SheetID string
	Edits   []Edit
}

// ComponentEdits returns the leading component-and-net edits, i.e.
// everything before the first label edit. Label edits are always
// appended last (ordering rule 5), so this is just a prefix scan.
func (p *Plan) ComponentEdits() []Edit {
	for i, e := range p.Edits {
		switch e.(type) {
		case AddLabel, RemoveLabel, AddSheetPin, RemoveSheetPin:
			return p.Edits[:i]
		}
	}
	return p.Edits
}

// LabelEdits returns the trailing label/sheet-pin edits.
func (p *Plan) LabelEdits() []Edit {
	for i, e := range p.Edits {
		switch e.(type) {
		case AddLabel, RemoveLabel, AddSheetPin, RemoveSheetPin:
			return p.Edits[i:]
		}
	}
	return nil
}
