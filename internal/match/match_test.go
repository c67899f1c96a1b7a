package match

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kisync/kisync/internal/ir"
)

func tol() Tolerance { return Tolerance{PositionMM: 2.54} }

func TestMatchReferenceFastPath(t *testing.T) {
	declared := []ir.Component{{Reference: "R1", LibID: "Device:R", Value: "22k", Footprint: "R_0805", Unit: 1}}
	existing := []ir.Component{{Reference: "R1", LibID: "Device:R", Value: "10k", Footprint: "R_0603", Unit: 1, Position: ir.Position{X: 50.8, Y: 50.8}, UUID: "u1"}}

	res := Match(declared, existing, nil, nil, tol())
	if len(res.Pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(res.Pairs))
	}
	p := res.Pairs[0]
	if p.Strategy != StrategyReference {
		t.Fatalf("expected reference-strategy match, got %q", p.Strategy)
	}
	if p.IsRename() {
		t.Fatalf("same reference should not be a rename")
	}
}

// TestMatchPositionDetectsRename covers spec scenario S2.
func TestMatchPositionDetectsRename(t *testing.T) {
	declared := []ir.Component{{Reference: "R2", LibID: "Device:R", Value: "10k", Footprint: "R_0603", Unit: 1, Position: ir.Position{X: 30.48, Y: 35.56}}}
	existing := []ir.Component{{Reference: "R1", LibID: "Device:R", Value: "10k", Footprint: "R_0603", Unit: 1, Position: ir.Position{X: 30.48, Y: 35.56}, UUID: "u1"}}

	res := Match(declared, existing, nil, nil, tol())
	if len(res.Pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(res.Pairs))
	}
	p := res.Pairs[0]
	if !p.IsRename() {
		t.Fatalf("expected a rename pair")
	}
	if p.Strategy != StrategyPosition {
		t.Fatalf("expected position+properties strategy, got %q", p.Strategy)
	}
}

// TestMatchSwapReferences covers spec scenario S3: swapping R1 and R2's
// positions (with references following position) must pair each
// declared reference with the existing component at its new spot, not
// leave them matched by old reference.
func TestMatchSwapReferences(t *testing.T) {
	declared := []ir.Component{
		{Reference: "R1", LibID: "Device:R", Value: "10k", Footprint: "R_0603", Unit: 1, Position: ir.Position{X: 60, Y: 50}},
		{Reference: "R2", LibID: "Device:R", Value: "10k", Footprint: "R_0603", Unit: 1, Position: ir.Position{X: 50, Y: 50}},
	}
	existing := []ir.Component{
		{Reference: "R1", LibID: "Device:R", Value: "10k", Footprint: "R_0603", Unit: 1, Position: ir.Position{X: 50, Y: 50}},
		{Reference: "R2", LibID: "Device:R", Value: "10k", Footprint: "R_0603", Unit: 1, Position: ir.Position{X: 60, Y: 50}},
	}

	res := Match(declared, existing, nil, nil, tol())
	if len(res.Pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(res.Pairs))
	}
	for _, p := range res.Pairs {
		if p.Declared.Reference == "R1" && p.Existing.Reference != "R2" {
			t.Fatalf("expected declared R1 to pair with existing R2 (same position), got %q", p.Existing.Reference)
		}
		if p.Declared.Reference == "R2" && p.Existing.Reference != "R1" {
			t.Fatalf("expected declared R2 to pair with existing R1 (same position), got %q", p.Existing.Reference)
		}
	}
}

func TestMatchUnmatchedAreAddAndDelete(t *testing.T) {
	declared := []ir.Component{{Reference: "C1", LibID: "Device:C", Value: "100nF", Unit: 1}}
	existing := []ir.Component{{Reference: "R9", LibID: "Device:R", Value: "1k", Unit: 1, UUID: "u9"}}

	res := Match(declared, existing, nil, nil, tol())
	var adds, deletes int
	for _, p := range res.Pairs {
		if p.IsAdd() {
			adds++
		}
		if p.IsDelete() {
			deletes++
		}
	}
	if adds != 1 || deletes != 1 {
		t.Fatalf("expected 1 add and 1 delete, got adds=%d deletes=%d", adds, deletes)
	}
}

func TestMatchTopologySurvivesRenameWithoutPositionMatch(t *testing.T) {
	declared := []ir.Component{{Reference: "R9", LibID: "Device:R", Value: "4k7", Unit: 1, Position: ir.Position{X: 200, Y: 200}}}
	existing := []ir.Component{{Reference: "R3", LibID: "Device:R", Value: "4k7", Unit: 1, Position: ir.Position{X: 10, Y: 10}, UUID: "u3"}}
	declaredNets := []ir.Net{{Name: "DATA", Pins: []ir.PinRef{{Reference: "R9", Pin: "1"}}}}
	previousNets := []ir.Net{{Name: "DATA", Pins: []ir.PinRef{{Reference: "R3", Pin: "1"}}}}

	res := Match(declared, existing, declaredNets, previousNets, tol())
	if len(res.Pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(res.Pairs))
	}
	p := res.Pairs[0]
	if p.Strategy != StrategyTopology {
		t.Fatalf("expected topology strategy, got %q", p.Strategy)
	}
	if !p.IsRename() {
		t.Fatalf("expected a rename")
	}
}

func TestMatchReferencePairPreservesExistingIdentity(t *testing.T) {
	declared := ir.Component{Reference: "R1", LibID: "Device:R", Value: "22k", Footprint: "R_0805", Unit: 1}
	existing := ir.Component{Reference: "R1", LibID: "Device:R", Value: "10k", Footprint: "R_0603", Unit: 1, Position: ir.Position{X: 50.8, Y: 50.8}, UUID: "u1"}

	res := Match([]ir.Component{declared}, []ir.Component{existing}, nil, nil, tol())
	if len(res.Pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(res.Pairs))
	}
	p := res.Pairs[0]
	if diff := cmp.Diff(&declared, p.Declared); diff != "" {
		t.Fatalf("Declared mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(&existing, p.Existing); diff != "" {
		t.Fatalf("Existing mismatch (-want +got):\n%s", diff)
	}
}

func TestMatchMultiUnitPairsByUnitNumber(t *testing.T) {
	declared := []ir.Component{
		{Reference: "U1", LibID: "74xx:74LS00", Unit: 1, Position: ir.Position{X: 10, Y: 10}},
		{Reference: "U1", LibID: "74xx:74LS00", Unit: 2, Position: ir.Position{X: 20, Y: 10}},
	}
	existing := []ir.Component{
		{Reference: "U1", LibID: "74xx:74LS00", Unit: 1, Position: ir.Position{X: 10, Y: 10}, UUID: "a"},
		{Reference: "U1", LibID: "74xx:74LS00", Unit: 2, Position: ir.Position{X: 20, Y: 10}, UUID: "b"},
	}

	res := Match(declared, existing, nil, nil, tol())
	if len(res.Pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(res.Pairs))
	}
	for _, p := range res.Pairs {
		if p.Declared.Unit != p.Existing.Unit {
			t.Fatalf("expected matching units to pair, got declared unit %d vs existing unit %d", p.Declared.Unit, p.Existing.Unit)
		}
	}
}
