package schematic

import (
	"strconv"

	"github.com/kisync/kisync/internal/editplan"
	"github.com/kisync/kisync/internal/ir"
	"github.com/kisync/kisync/internal/kerrors"
	"github.com/kisync/kisync/pkg/kicad/sexp"
)

// Apply executes one Edit against this Index as a single-entity
// mutation (spec §4.2 "apply(edit)"). Re-applying AddSheet is a no-op,
// but AddComponent, AddLabel and AddSheetPin append a new node each time
// they are applied, and a repeated delete or remove fails because its
// target is already gone. Net edits carry no direct CAD
// representation (spec §4.6: "wires survive ... the label set is the
// source of truth") so they are no-ops here; the Label Propagator's
// AddLabel/RemoveLabel/AddSheetPin/RemoveSheetPin edits are what
// actually touch the node tree for connectivity changes.
func (idx *Index) Apply(e editplan.Edit) error {
	switch ed := e.(type) {
	case editplan.AddComponent:
		return idx.applyAddComponent(ed)
	case editplan.UpdateComponent:
		return idx.applyUpdateComponent(ed)
	case editplan.RenameComponent:
		return idx.applyRenameComponent(ed)
	case editplan.DeleteComponent:
		return idx.applyDeleteComponent(ed)
	case editplan.ChangePageSize:
		return idx.applyChangePageSize(ed)
	case editplan.AddLabel:
		return idx.applyAddLabel(ed)
	case editplan.RemoveLabel:
		return idx.applyRemoveLabel(ed)
	case editplan.AddSheetPin:
		return idx.applyAddSheetPin(ed)
	case editplan.RemoveSheetPin:
		return idx.applyRemoveSheetPin(ed)
	case editplan.AddSheet:
		return idx.applyAddSheet(ed)
	case editplan.DeleteSheet:
		return idx.applyDeleteSheet(ed)
	case editplan.AddNet, editplan.UpdateNetMembership, editplan.RenameNet, editplan.DeleteNet:
		return nil
	default:
		return kerrors.New(kerrors.CodecError, idx.SheetID, "", "unhandled edit kind %T", e)
	}
}

func (idx *Index) findComponentNode(reference string, unit int) *sexp.Node {
	for _, n := range idx.componentNodes() {
		c := decodeComponent(n, idx.SheetID)
		if c.Reference == reference && (unit == 0 || c.Unit == unit) {
			return n
		}
	}
	return nil
}

func (idx *Index) applyAddComponent(ed editplan.AddComponent) error {
	c := ed.Component
	if c.UUID == "" {
		c.UUID = mintUUID(idx.namespace, idx.SheetID, c.Reference, c.Unit)
	}
	if c.Position.X == 0 && c.Position.Y == 0 {
		c.Position = idx.nextPlacement()
	}
	if c.Unit == 0 {
		c.Unit = 1
	}

	items := []*sexp.Node{
		sexp.NewList("lib_id", sexp.NewAtom(c.LibID, true)),
		atNode(c.Position),
	}
	if c.Position.Mirror != "" {
		items = append(items, sexp.NewList("mirror", sexp.NewAtom(c.Position.Mirror, false)))
	}
	items = append(items,
		sexp.NewList("unit", sexp.NewAtom(strconv.Itoa(c.Unit), false)),
		sexp.NewList("uuid", sexp.NewAtom(c.UUID, true)),
		sexp.NewList("property", sexp.NewAtom("Reference", true), sexp.NewAtom(c.Reference, true)),
		sexp.NewList("property", sexp.NewAtom("Value", true), sexp.NewAtom(c.Value, true)),
		sexp.NewList("property", sexp.NewAtom("Footprint", true), sexp.NewAtom(c.Footprint, true)),
	)
	for _, p := range c.Properties {
		items = append(items, sexp.NewList("property", sexp.NewAtom(p.Name, true), sexp.NewAtom(p.Value, true)))
	}

	node := sexp.NewList("symbol", items...)
	idx.insertComponentSorted(node, c.Reference, c.Unit)
	return nil
}

// insertComponentSorted keeps symbol nodes in canonical sort order
// (reference, unit) so fresh-placement output is deterministic run to
// run (spec §4.6.1 "deterministic across runs").
func (idx *Index) insertComponentSorted(node *sexp.Node, reference string, unit int) {
	insertAt := len(idx.root.Items)
	for i, item := range idx.root.Items {
		if item.Keyword() != "symbol" {
			continue
		}
		c := decodeComponent(item, idx.SheetID)
		if c.Reference > reference || (c.Reference == reference && c.Unit > unit) {
			insertAt = i
			break
		}
	}
	idx.root.Items = append(idx.root.Items, nil)
	copy(idx.root.Items[insertAt+1:], idx.root.Items[insertAt:])
	idx.root.Items[insertAt] = node
	idx.root.MarkDirty()
}

func (idx *Index) applyUpdateComponent(ed editplan.UpdateComponent) error {
	n := idx.findComponentNode(ed.Reference, ed.Unit)
	if n == nil {
		return kerrors.New(kerrors.CodecError, idx.SheetID, ed.Reference, "update: component not found")
	}
	if ed.Value != nil {
		setProperty(n, "Value", *ed.Value)
	}
	if ed.Footprint != nil {
		setProperty(n, "Footprint", *ed.Footprint)
	}
	for _, p := range ed.SetProps {
		setProperty(n, p.Name, p.Value)
	}
	for _, name := range ed.RemoveProps {
		removeProperty(n, name)
	}
	return nil
}

func setProperty(n *sexp.Node, name, value string) {
	for _, p := range n.Children("property") {
		pn, _ := p.String(1)
		if pn == name {
			p.Items[2] = sexp.NewAtom(value, true)
			p.MarkDirty()
			return
		}
	}
	n.Items = append(n.Items, sexp.NewList("property", sexp.NewAtom(name, true), sexp.NewAtom(value, true)))
	n.MarkDirty()
}

func removeProperty(n *sexp.Node, name string) {
	for i, item := range n.Items {
		if item.Keyword() != "property" {
			continue
		}
		pn, _ := item.String(1)
		if pn == name {
			n.Items = append(n.Items[:i], n.Items[i+1:]...)
			n.MarkDirty()
			return
		}
	}
}

// applyRenameComponent rewrites only the Reference property; position
// and uuid are never touched (spec §4.6 "RenameComponent").
func (idx *Index) applyRenameComponent(ed editplan.RenameComponent) error {
	n := idx.findComponentNode(ed.OldReference, ed.Unit)
	if n == nil {
		return kerrors.New(kerrors.RenameConflict, idx.SheetID, ed.OldReference, "rename: source component not found")
	}
	if existing := idx.findComponentNode(ed.NewReference, ed.Unit); existing != nil && existing != n {
		return kerrors.New(kerrors.RenameConflict, idx.SheetID, ed.NewReference, "rename target %q already exists", ed.NewReference)
	}
	setProperty(n, "Reference", ed.NewReference)
	return nil
}

func (idx *Index) applyDeleteComponent(ed editplan.DeleteComponent) error {
	var keep []*sexp.Node
	deleted := false
	for _, item := range idx.root.Items {
		if item.Keyword() == "symbol" {
			c := decodeComponent(item, idx.SheetID)
			if c.Reference == ed.Reference && (ed.Unit == 0 || c.Unit == ed.Unit) {
				deleted = true
				continue
			}
		}
		keep = append(keep, item)
	}
	if !deleted {
		return kerrors.New(kerrors.CodecError, idx.SheetID, ed.Reference, "delete: component not found")
	}
	idx.root.Items = keep
	idx.root.MarkDirty()
	return nil
}

func (idx *Index) applyChangePageSize(ed editplan.ChangePageSize) error {
	if paper, ok := idx.root.Child("paper"); ok {
		paper.Items[1] = sexp.NewAtom(string(ed.NewSize), true)
		paper.MarkDirty()
		return nil
	}
	idx.root.Items = append(idx.root.Items, sexp.NewList("paper", sexp.NewAtom(string(ed.NewSize), true)))
	idx.root.MarkDirty()
	return nil
}

// atNode builds an `(at x y [rotation])` node the way KiCad emits it:
// rotation omitted when zero only for nodes that don't require it, but
// this engine always writes it explicitly for components since reading
// it back is simpler than reconstructing an omitted default.
func atNode(pos ir.Position) *sexp.Node {
	return sexp.NewList("at",
		sexp.NewAtom(formatCoord(pos.X), false),
		sexp.NewAtom(formatCoord(pos.Y), false),
		sexp.NewAtom(formatCoord(pos.Rotation), false),
	)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
