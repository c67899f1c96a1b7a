package label

import (
	"testing"

	"github.com/kisync/kisync/internal/editplan"
	"github.com/kisync/kisync/internal/ir"
)

func TestPropagateAddsNewCrossingNet(t *testing.T) {
	child := &ir.Sheet{ID: "child", Nets: []ir.Net{{Name: "SPI_CLK"}}}
	parent := &ir.Sheet{ID: "root", Nets: []ir.Net{{Name: "SPI_CLK"}}}

	res := Propagate(Boundary{Child: child, Parent: parent, ChildFileName: "sub.kicad_sch"})

	if len(res.ChildEdits) != 1 {
		t.Fatalf("expected 1 child edit, got %d", len(res.ChildEdits))
	}
	if _, ok := res.ChildEdits[0].(editplan.AddLabel); !ok {
		t.Fatalf("expected AddLabel, got %T", res.ChildEdits[0])
	}
	if len(res.ParentEdits) != 1 {
		t.Fatalf("expected 1 parent edit, got %d", len(res.ParentEdits))
	}
	if _, ok := res.ParentEdits[0].(editplan.AddSheetPin); !ok {
		t.Fatalf("expected AddSheetPin, got %T", res.ParentEdits[0])
	}
}

func TestPropagateIgnoresPowerNets(t *testing.T) {
	child := &ir.Sheet{ID: "child", Nets: []ir.Net{{Name: "GND", IsPower: true}}}
	parent := &ir.Sheet{ID: "root", Nets: []ir.Net{{Name: "GND", IsPower: true}}}

	res := Propagate(Boundary{Child: child, Parent: parent, ChildFileName: "sub.kicad_sch"})

	if len(res.ChildEdits) != 0 || len(res.ParentEdits) != 0 {
		t.Fatalf("expected no label/pin edits for a power net, got child=%v parent=%v", res.ChildEdits, res.ParentEdits)
	}
}

func TestPropagateRemovesStaleLabelNotJustShadow(t *testing.T) {
	child := &ir.Sheet{ID: "child", Nets: []ir.Net{{Name: "DATA"}}}
	parent := &ir.Sheet{ID: "root", Nets: []ir.Net{{Name: "DATA"}}}
	existingLabels := []ir.HierLabel{{NetName: "OLD_NET", UUID: "stale-uuid"}}
	existingPins := []ir.SheetPin{{NetName: "OLD_NET", UUID: "stale-pin-uuid"}}

	res := Propagate(Boundary{
		Child: child, Parent: parent, ChildFileName: "sub.kicad_sch",
		ExistingChildLabels: existingLabels, ExistingParentPins: existingPins,
	})

	var sawRemoveLabel, sawRemovePin, sawAddLabel bool
	for _, e := range res.ChildEdits {
		switch ed := e.(type) {
		case editplan.RemoveLabel:
			if ed.UUID == "stale-uuid" {
				sawRemoveLabel = true
			}
		case editplan.AddLabel:
			if ed.Label.NetName == "DATA" {
				sawAddLabel = true
			}
		}
	}
	for _, e := range res.ParentEdits {
		if ed, ok := e.(editplan.RemoveSheetPin); ok && ed.UUID == "stale-pin-uuid" {
			sawRemovePin = true
		}
	}
	if !sawRemoveLabel || !sawRemovePin || !sawAddLabel {
		t.Fatalf("expected stale OLD_NET removed and DATA added, got child=%v parent=%v", res.ChildEdits, res.ParentEdits)
	}
}

func TestPropagateKeepsUnchangedLabel(t *testing.T) {
	child := &ir.Sheet{ID: "child", Nets: []ir.Net{{Name: "DATA"}}}
	parent := &ir.Sheet{ID: "root", Nets: []ir.Net{{Name: "DATA"}}}
	existingLabels := []ir.HierLabel{{NetName: "DATA", UUID: "keep-me"}}
	existingPins := []ir.SheetPin{{NetName: "DATA", UUID: "keep-me-too"}}

	res := Propagate(Boundary{
		Child: child, Parent: parent, ChildFileName: "sub.kicad_sch",
		ExistingChildLabels: existingLabels, ExistingParentPins: existingPins,
	})

	if len(res.ChildEdits) != 0 || len(res.ParentEdits) != 0 {
		t.Fatalf("expected no churn for an already-synced net, got child=%v parent=%v", res.ChildEdits, res.ParentEdits)
	}
}
