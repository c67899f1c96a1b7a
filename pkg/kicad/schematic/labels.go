package schematic

import (
	"github.com/kisync/kisync/internal/editplan"
	"github.com/kisync/kisync/internal/kerrors"
	"github.com/kisync/kisync/pkg/kicad/sexp"
)

func (idx *Index) applyAddLabel(ed editplan.AddLabel) error {
	l := ed.Label
	if l.UUID == "" {
		l.UUID = mintUUID(idx.namespace, idx.SheetID, "$label:"+l.NetName, 0)
	}
	node := sexp.NewList("hierarchical_label",
		sexp.NewAtom(l.NetName, true),
		sexp.NewList("shape", sexp.NewAtom(string(l.Direction), false)),
		atNode(idx.nextPlacement()),
		sexp.NewList("uuid", sexp.NewAtom(l.UUID, true)),
	)
	idx.root.Items = append(idx.root.Items, node)
	idx.root.MarkDirty()
	return nil
}

func (idx *Index) applyRemoveLabel(ed editplan.RemoveLabel) error {
	for i, item := range idx.root.Items {
		if item.Keyword() != "hierarchical_label" {
			continue
		}
		if u, ok := item.Child("uuid"); ok {
			uv, _ := u.String(1)
			if uv == ed.UUID {
				idx.root.Items = append(idx.root.Items[:i], idx.root.Items[i+1:]...)
				idx.root.MarkDirty()
				return nil
			}
		}
	}
	return kerrors.New(kerrors.OrphanLabel, idx.SheetID, ed.UUID, "remove: label uuid not found")
}

func (idx *Index) findSheetNodeByChildID(childSheetID string) *sexp.Node {
	for _, n := range idx.sheetNodes() {
		if sheetFileName(n) == childSheetID {
			return n
		}
	}
	return nil
}

func (idx *Index) applyAddSheetPin(ed editplan.AddSheetPin) error {
	sheetNode := idx.findSheetNodeByChildID(ed.ChildSheetID)
	if sheetNode == nil {
		return kerrors.New(kerrors.CodecError, idx.SheetID, ed.ChildSheetID, "add sheet pin: child sheet symbol not found")
	}
	p := ed.Pin
	if p.UUID == "" {
		p.UUID = mintUUID(idx.namespace, idx.SheetID, "$pin:"+ed.ChildSheetID+":"+p.NetName, 0)
	}
	node := sexp.NewList("pin",
		sexp.NewAtom(p.NetName, true),
		sexp.NewAtom(string(p.Direction), false),
		atNode(idx.nextPlacement()),
		sexp.NewList("uuid", sexp.NewAtom(p.UUID, true)),
	)
	sheetNode.Items = append(sheetNode.Items, node)
	sheetNode.MarkDirty()
	return nil
}

func (idx *Index) applyRemoveSheetPin(ed editplan.RemoveSheetPin) error {
	sheetNode := idx.findSheetNodeByChildID(ed.ChildSheetID)
	if sheetNode == nil {
		return kerrors.New(kerrors.CodecError, idx.SheetID, ed.ChildSheetID, "remove sheet pin: child sheet symbol not found")
	}
	for i, item := range sheetNode.Items {
		if item.Keyword() != "pin" {
			continue
		}
		if u, ok := item.Child("uuid"); ok {
			uv, _ := u.String(1)
			if uv == ed.UUID {
				sheetNode.Items = append(sheetNode.Items[:i], sheetNode.Items[i+1:]...)
				sheetNode.MarkDirty()
				return nil
			}
		}
	}
	return kerrors.New(kerrors.OrphanLabel, idx.SheetID, ed.UUID, "remove sheet pin: uuid not found")
}
