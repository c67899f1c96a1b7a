package schematic

import (
	"github.com/kisync/kisync/internal/editplan"
	"github.com/kisync/kisync/internal/kerrors"
	"github.com/kisync/kisync/pkg/kicad/sexp"
)

// applyAddSheet inserts a new `(sheet ...)` symbol for a freshly declared
// child sheet (spec §4.4 ordering rule 3: emitted before any edit
// targeting that child, so sheet pins always have somewhere to attach).
func (idx *Index) applyAddSheet(ed editplan.AddSheet) error {
	childFile := sanitizedFileName(ed.Sheet.FilePath, ed.Sheet.Name)
	if idx.findSheetNodeByChildID(childFile) != nil {
		return nil // already present: idempotent re-application
	}

	uuid := mintUUID(idx.namespace, idx.SheetID, "$sheet:"+childFile, 0)
	node := sexp.NewList("sheet",
		atNode(idx.nextPlacement()),
		sexp.NewList("uuid", sexp.NewAtom(uuid, true)),
		sexp.NewList("property", sexp.NewAtom("Sheetname", true), sexp.NewAtom(ed.Sheet.Name, true)),
		sexp.NewList("property", sexp.NewAtom("Sheetfile", true), sexp.NewAtom(childFile, true)),
	)
	idx.root.Items = append(idx.root.Items, node)
	idx.root.MarkDirty()
	return nil
}

// applyDeleteSheet removes a child sheet's symbol (its on-disk file
// removal, if desired, is the orchestrator's concern; this only detaches
// the parent-side reference and its pins).
func (idx *Index) applyDeleteSheet(ed editplan.DeleteSheet) error {
	var keep []*sexp.Node
	deleted := false
	for _, item := range idx.root.Items {
		if item.Keyword() == "sheet" && sheetFileName(item) == ed.SheetID {
			deleted = true
			continue
		}
		keep = append(keep, item)
	}
	if !deleted {
		return kerrors.New(kerrors.CodecError, idx.SheetID, ed.SheetID, "delete sheet: child sheet symbol not found")
	}
	idx.root.Items = keep
	idx.root.MarkDirty()
	return nil
}

// sanitizedFileName returns the base file name a sheet's FilePath ends
// in, falling back to deriving one from its name if FilePath is unset.
func sanitizedFileName(filePath, name string) string {
	if filePath != "" {
		for i := len(filePath) - 1; i >= 0; i-- {
			if filePath[i] == '/' || filePath[i] == '\\' {
				return filePath[i+1:]
			}
		}
		return filePath
	}
	return name + ".kicad_sch"
}
