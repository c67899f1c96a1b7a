package schematic

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/kisync/kisync/internal/editplan"
	"github.com/kisync/kisync/internal/ir"
)

var testNamespace = uuid.MustParse("b1d5c36e-9b7f-4e9f-8f33-1c7a6a9e9b10")

const minimalSheet = `(kicad_sch
	(version 20231120)
	(generator "kisync")
	(uuid "11111111-1111-1111-1111-111111111111")
	(paper "A4")
	(symbol
		(lib_id "Device:R")
		(at 100.0 50.0 0)
		(unit 1)
		(uuid "22222222-2222-2222-2222-222222222222")
		(property "Reference" "R1")
		(property "Value" "10k")
		(property "Footprint" "R_0603")
	)
)
`

func TestLoadAndComponents(t *testing.T) {
	idx, err := Load("root", "test.kicad_sch", []byte(minimalSheet), testNamespace)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	comps := idx.Components()
	if len(comps) != 1 {
		t.Fatalf("expected 1 component, got %d", len(comps))
	}
	if comps[0].Reference != "R1" || comps[0].Value != "10k" {
		t.Fatalf("unexpected component: %+v", comps[0])
	}
}

func TestFindByReferenceMultiUnit(t *testing.T) {
	src := `(kicad_sch (version 1) (uuid "x") (paper "A4")
		(symbol (lib_id "74xx:74LS00") (at 10 10 0) (unit 2) (uuid "u2") (property "Reference" "U1") (property "Value" "74LS00") (property "Footprint" ""))
		(symbol (lib_id "74xx:74LS00") (at 20 10 0) (unit 1) (uuid "u1") (property "Reference" "U1") (property "Value" "74LS00") (property "Footprint" ""))
	)
	`
	idx, err := Load("root", "test.kicad_sch", []byte(src), testNamespace)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c, ok := idx.FindByReference("U1")
	if !ok {
		t.Fatalf("expected to find U1")
	}
	if c.Unit != 1 {
		t.Fatalf("expected lowest unit (1), got %d", c.Unit)
	}
}

func TestApplyUpdateComponentPreservesPosition(t *testing.T) {
	idx, err := Load("root", "test.kicad_sch", []byte(minimalSheet), testNamespace)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	newValue := "22k"
	if err := idx.Apply(editplan.UpdateComponent{Reference: "R1", Unit: 1, Value: &newValue}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	c, _ := idx.FindByReference("R1")
	if c.Value != "22k" {
		t.Fatalf("expected updated value 22k, got %q", c.Value)
	}
	if c.Position.X != 100.0 || c.Position.Y != 50.0 {
		t.Fatalf("position must be unchanged, got %+v", c.Position)
	}
}

func TestApplyRenameComponentPreservesPositionAndUUID(t *testing.T) {
	idx, err := Load("root", "test.kicad_sch", []byte(minimalSheet), testNamespace)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := idx.Apply(editplan.RenameComponent{OldReference: "R1", NewReference: "R2", Unit: 1}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	c, ok := idx.FindByReference("R2")
	if !ok {
		t.Fatalf("expected to find renamed R2")
	}
	if c.UUID != "22222222-2222-2222-2222-222222222222" {
		t.Fatalf("uuid must be unchanged, got %q", c.UUID)
	}
	if c.Position.X != 100.0 {
		t.Fatalf("position must be unchanged, got %+v", c.Position)
	}
	if _, ok := idx.FindByReference("R1"); ok {
		t.Fatalf("old reference should no longer resolve")
	}
}

func TestApplyRenameConflict(t *testing.T) {
	src := `(kicad_sch (version 1) (uuid "x") (paper "A4")
		(symbol (lib_id "Device:R") (at 0 0 0) (unit 1) (uuid "a") (property "Reference" "R1") (property "Value" "") (property "Footprint" ""))
		(symbol (lib_id "Device:R") (at 10 0 0) (unit 1) (uuid "b") (property "Reference" "R2") (property "Value" "") (property "Footprint" ""))
	)
	`
	idx, err := Load("root", "test.kicad_sch", []byte(src), testNamespace)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	err = idx.Apply(editplan.RenameComponent{OldReference: "R1", NewReference: "R2", Unit: 1})
	if err == nil {
		t.Fatalf("expected a rename conflict error")
	}
}

func TestApplyAddComponentDeterministicPlacement(t *testing.T) {
	idx1, _ := Load("root", "test.kicad_sch", []byte(minimalSheet), testNamespace)
	idx2, _ := Load("root", "test.kicad_sch", []byte(minimalSheet), testNamespace)

	add := editplan.AddComponent{Component: ir.Component{Reference: "C1", LibID: "Device:C", Value: "100nF", Unit: 1}}
	if err := idx1.Apply(add); err != nil {
		t.Fatalf("Apply idx1: %v", err)
	}
	if err := idx2.Apply(add); err != nil {
		t.Fatalf("Apply idx2: %v", err)
	}

	c1, _ := idx1.FindByReference("C1")
	c2, _ := idx2.FindByReference("C1")
	if c1.Position != c2.Position {
		t.Fatalf("expected identical placement across independent runs, got %+v vs %+v", c1.Position, c2.Position)
	}
	if c1.UUID != c2.UUID {
		t.Fatalf("expected identical minted uuid across independent runs, got %q vs %q", c1.UUID, c2.UUID)
	}
}

func TestSerializePreservesUntouchedBytes(t *testing.T) {
	idx, err := Load("root", "test.kicad_sch", []byte(minimalSheet), testNamespace)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	out := string(idx.Serialize())
	if !strings.Contains(out, `"10k"`) {
		t.Fatalf("expected untouched value to survive serialize, got:\n%s", out)
	}
}

func TestOpaqueBlobsSurviveComponentEdits(t *testing.T) {
	src := `(kicad_sch (version 1) (uuid "x") (paper "A4")
		(symbol (lib_id "Device:R") (at 0 0 0) (unit 1) (uuid "a") (property "Reference" "R1") (property "Value" "10k") (property "Footprint" ""))
		(text "DO NOT POPULATE" (at 5 5 0) (uuid "blob1"))
		(gr_rect (start 0 0) (end 10 10) (uuid "blob2"))
	)
	`
	idx, err := Load("root", "test.kicad_sch", []byte(src), testNamespace)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	before := idx.OpaqueBlobs()
	if len(before) != 2 {
		t.Fatalf("expected 2 opaque blobs, got %d: %+v", len(before), before)
	}

	newValue := "22k"
	if err := idx.Apply(editplan.UpdateComponent{Reference: "R1", Unit: 1, Value: &newValue}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	after := idx.OpaqueBlobs()
	if len(after) != len(before) {
		t.Fatalf("opaque blob count changed across an unrelated edit: %d -> %d", len(before), len(after))
	}
	out := string(idx.Serialize())
	if !strings.Contains(out, `"DO NOT POPULATE"`) {
		t.Fatalf("expected opaque text blob to survive serialize, got:\n%s", out)
	}
}

func TestApplyDeleteComponentNotFound(t *testing.T) {
	idx, _ := Load("root", "test.kicad_sch", []byte(minimalSheet), testNamespace)
	if err := idx.Apply(editplan.DeleteComponent{Reference: "R99", Unit: 1}); err == nil {
		t.Fatalf("expected error deleting a component that doesn't exist")
	}
}
