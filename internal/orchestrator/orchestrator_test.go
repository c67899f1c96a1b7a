package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kisync/kisync/internal/config"
	"github.com/kisync/kisync/internal/ir"
	"github.com/kisync/kisync/internal/kerrors"
	"github.com/kisync/kisync/internal/mirror"
)

func oneSheetTree() *ir.Tree {
	root := &ir.Sheet{
		ID:       "root",
		Name:     "main",
		FilePath: "main.kicad_sch",
		Page:     ir.PageA4,
		Components: []ir.Component{
			{Reference: "R1", LibID: "Device:R", Value: "10k", Unit: 1, SheetID: "root"},
			{Reference: "C1", LibID: "Device:C", Value: "100nF", Unit: 1, SheetID: "root"},
		},
		Nets: []ir.Net{
			{Name: "NET1", SheetID: "root", Pins: []ir.PinRef{{Reference: "R1", Pin: "1"}, {Reference: "C1", Pin: "1"}}},
		},
	}
	return &ir.Tree{RootID: "root", Sheets: map[string]*ir.Sheet{"root": root}}
}

func TestSyncCreatesSheetFromScratch(t *testing.T) {
	dir := t.TempDir()
	tree := oneSheetTree()

	report, err := Sync(dir, tree, config.Default())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(report.Sheets) != 1 {
		t.Fatalf("expected 1 sheet report, got %d", len(report.Sheets))
	}
	s := report.Sheets[0]
	if len(s.Added) != 2 {
		t.Fatalf("expected 2 additions on a from-scratch sync, got %v", s.Added)
	}
	if s.hasErrors() {
		t.Fatalf("unexpected errors: %v", s.Errors)
	}

	if _, exists, err := readIfExists(filepath.Join(dir, "main.kicad_sch")); err != nil || !exists {
		t.Fatalf("expected sheet file to be written: exists=%v err=%v", exists, err)
	}
	if _, exists, err := readIfExists(filepath.Join(dir, "project.json")); err != nil || !exists {
		t.Fatalf("expected mirror to be written: exists=%v err=%v", exists, err)
	}
}

func TestSyncIsIdempotentOnSecondRun(t *testing.T) {
	dir := t.TempDir()
	tree := oneSheetTree()

	if _, err := Sync(dir, tree, config.Default()); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	report, err := Sync(dir, tree, config.Default())
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if report.TotalEdits() != 0 {
		t.Fatalf("expected zero edits on an immediate re-sync, got %d", report.TotalEdits())
	}
	if report.ExitCode(false) != 0 {
		t.Fatalf("expected exit code 0 for a clean idempotent re-sync, got %d", report.ExitCode(false))
	}
}

func TestSyncAssertIdempotentPassesCleanly(t *testing.T) {
	dir := t.TempDir()
	tree := oneSheetTree()
	opts := config.Default()
	opts.AssertIdempotent = true

	report, err := Sync(dir, tree, opts)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	for _, s := range report.Sheets {
		if s.hasErrors() {
			t.Fatalf("idempotency self-check flagged a fresh sync: %v", s.Errors)
		}
	}
}

func TestPlanDoesNotWriteFiles(t *testing.T) {
	dir := t.TempDir()
	tree := oneSheetTree()

	plans, err := Plan(dir, tree, config.Default())
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plans["root"].Edits) != 3 {
		t.Fatalf("expected 3 planned edits (2 component additions, 1 net addition), got %d", len(plans["root"].Edits))
	}
	if _, exists, _ := readIfExists(filepath.Join(dir, "main.kicad_sch")); exists {
		t.Fatalf("plan must not write the sheet file")
	}
}

func TestSyncPropagatesLabelsAcrossBoundary(t *testing.T) {
	dir := t.TempDir()
	root := &ir.Sheet{
		ID: "root", Name: "main", FilePath: "main.kicad_sch", Page: ir.PageA4,
		ChildSheetIDs: []string{"sub"},
		Nets:          []ir.Net{{Name: "SPI_CLK", SheetID: "root"}},
	}
	sub := &ir.Sheet{
		ID: "sub", Name: "sub", ParentID: "root", FilePath: "sub.kicad_sch", Page: ir.PageA4,
		Components: []ir.Component{{Reference: "U1", LibID: "MCU:STM32", Value: "STM32", Unit: 1, SheetID: "sub"}},
		Nets:       []ir.Net{{Name: "SPI_CLK", SheetID: "sub"}},
	}
	tree := &ir.Tree{RootID: "root", Sheets: map[string]*ir.Sheet{"root": root, "sub": sub}}

	report, err := Sync(dir, tree, config.Default())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	var sawChildLabel, sawParentPin bool
	for _, s := range report.Sheets {
		if s.SheetID == "sub" && len(s.LabelsAdded) == 1 {
			sawChildLabel = true
		}
		if s.SheetID == "root" && len(s.LabelsAdded) == 1 {
			sawParentPin = true
		}
	}
	if !sawChildLabel || !sawParentPin {
		t.Fatalf("expected a label on sub and a sheet pin on root, got %+v", report.Sheets)
	}
}

func TestSyncDoesNotPropagateLabelsForPowerNets(t *testing.T) {
	dir := t.TempDir()
	root := &ir.Sheet{
		ID: "root", Name: "main", FilePath: "main.kicad_sch", Page: ir.PageA4,
		ChildSheetIDs: []string{"sub"},
		Nets:          []ir.Net{{Name: "GND", SheetID: "root", IsPower: true}},
	}
	sub := &ir.Sheet{
		ID: "sub", Name: "sub", ParentID: "root", FilePath: "sub.kicad_sch", Page: ir.PageA4,
		Components: []ir.Component{{Reference: "U1", LibID: "MCU:STM32", Value: "STM32", Unit: 1, SheetID: "sub"}},
		Nets:       []ir.Net{{Name: "GND", SheetID: "sub", IsPower: true}},
	}
	tree := &ir.Tree{RootID: "root", Sheets: map[string]*ir.Sheet{"root": root, "sub": sub}}

	report, err := Sync(dir, tree, config.Default())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	for _, s := range report.Sheets {
		if len(s.LabelsAdded) != 0 {
			t.Fatalf("expected no labels/pins for a power net crossing a boundary, sheet %s got %v", s.SheetID, s.LabelsAdded)
		}
	}
}

func TestMirrorRoundTripPreservesPowerNetFlag(t *testing.T) {
	dir := t.TempDir()
	root := &ir.Sheet{
		ID: "root", Name: "main", FilePath: "main.kicad_sch", Page: ir.PageA4,
		Components: []ir.Component{{Reference: "U1", LibID: "power:GND", Value: "GND", Unit: 1, SheetID: "root"}},
		Nets:       []ir.Net{{Name: "GND", SheetID: "root", Pins: []ir.PinRef{{Reference: "U1", Pin: "1"}}}},
	}
	tree := &ir.Tree{RootID: "root", Sheets: map[string]*ir.Sheet{"root": root}}

	if _, err := Sync(dir, tree, config.Default()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	data, _, err := readIfExists(filepath.Join(dir, "project.json"))
	if err != nil {
		t.Fatalf("reading mirror: %v", err)
	}
	project, err := mirror.Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal mirror: %v", err)
	}
	nets := project.NetsForSheet("root")
	if len(nets) != 1 || !nets[0].IsPower {
		t.Fatalf("expected the persisted mirror to mark GND as a power net (derived from U1's power: lib_id), got %+v", nets)
	}
}

func TestSyncRejectsReferenceDuplicatedAcrossSheets(t *testing.T) {
	dir := t.TempDir()
	root := &ir.Sheet{
		ID: "root", Name: "main", FilePath: "main.kicad_sch", Page: ir.PageA4,
		ChildSheetIDs: []string{"sub"},
		Components:    []ir.Component{{Reference: "R1", LibID: "Device:R", Value: "10k", Unit: 1, SheetID: "root"}},
	}
	sub := &ir.Sheet{
		ID: "sub", Name: "sub", ParentID: "root", FilePath: "sub.kicad_sch", Page: ir.PageA4,
		Components: []ir.Component{{Reference: "R1", LibID: "Device:R", Value: "4.7k", Unit: 1, SheetID: "sub"}},
	}
	tree := &ir.Tree{RootID: "root", Sheets: map[string]*ir.Sheet{"root": root, "sub": sub}}

	_, err := Sync(dir, tree, config.Default())
	if err == nil {
		t.Fatalf("expected an error for R1 declared on both root and sub")
	}
	kerr, ok := err.(*kerrors.Error)
	if !ok {
		t.Fatalf("expected a *kerrors.Error, got %T: %v", err, err)
	}
	if kerr.Kind != kerrors.DuplicateReference {
		t.Fatalf("expected kind %s, got %s", kerrors.DuplicateReference, kerr.Kind)
	}
}

func TestSyncDeletesOrphanedChildSheetFile(t *testing.T) {
	dir := t.TempDir()
	root := &ir.Sheet{
		ID: "root", Name: "main", FilePath: "main.kicad_sch", Page: ir.PageA4,
		ChildSheetIDs: []string{"sub"},
	}
	sub := &ir.Sheet{
		ID: "sub", Name: "sub", ParentID: "root", FilePath: "sub.kicad_sch", Page: ir.PageA4,
		Components: []ir.Component{{Reference: "U1", LibID: "MCU:STM32", Value: "STM32", Unit: 1, SheetID: "sub"}},
	}
	tree := &ir.Tree{RootID: "root", Sheets: map[string]*ir.Sheet{"root": root, "sub": sub}}

	if _, err := Sync(dir, tree, config.Default()); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	subPath := filepath.Join(dir, "sub.kicad_sch")
	if _, err := os.Stat(subPath); err != nil {
		t.Fatalf("expected sub.kicad_sch to exist after first sync: %v", err)
	}

	rootOnly := &ir.Sheet{ID: "root", Name: "main", FilePath: "main.kicad_sch", Page: ir.PageA4}
	tree2 := &ir.Tree{RootID: "root", Sheets: map[string]*ir.Sheet{"root": rootOnly}}

	report, err := Sync(dir, tree2, config.Default())
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if _, err := os.Stat(subPath); !os.IsNotExist(err) {
		t.Fatalf("expected sub.kicad_sch to be removed after its sheet is undeclared, stat err: %v", err)
	}

	var sawDeletion bool
	for _, s := range report.Sheets {
		if s.SheetID == "root" {
			for _, d := range s.Deleted {
				if d == "$sheet:sub.kicad_sch" {
					sawDeletion = true
				}
			}
		}
	}
	if !sawDeletion {
		t.Fatalf("expected root's report to record the child sheet deletion, got %+v", report.Sheets)
	}
}
