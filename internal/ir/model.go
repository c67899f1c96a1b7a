// Package ir defines the canonical, CAD-neutral circuit model shared by
// the declarative front-end and the CAD side of a sync. Nothing in this
// package knows about S-expressions or KiCad file layout; it is the
// common vocabulary the Matcher, Reconciler and Label Propagator operate
// on (spec component 1, "Canonical Model").
package ir

import "sort"

// PageSize is a standard schematic paper size.
type PageSize string

const (
	PageA0 PageSize = "A0"
	PageA1 PageSize = "A1"
	PageA2 PageSize = "A2"
	PageA3 PageSize = "A3"
	PageA4 PageSize = "A4"
	PageA5 PageSize = "A5"
)

// pageSizeOrder holds each standard page's (width, height) in millimeters,
// ordered smallest first so ChoosePageSize can scan for the first fit.
var pageSizeOrder = []struct {
	Size   PageSize
	Width  float64
	Height float64
}{
	{PageA5, 210, 148},
	{PageA4, 297, 210},
	{PageA3, 420, 297},
	{PageA2, 594, 420},
	{PageA1, 841, 594},
	{PageA0, 1189, 841},
}

// ChoosePageSize returns the smallest standard page size whose printable
// area (after subtracting margin on all sides) fits a bounding box of
// the given width and height. It returns PageA0 if nothing smaller fits.
func ChoosePageSize(width, height, margin float64) PageSize {
	for _, p := range pageSizeOrder {
		if width <= p.Width-2*margin && height <= p.Height-2*margin {
			return p.Size
		}
	}
	return PageA0
}

// Position is a 2D placement with rotation, in millimeters and degrees.
type Position struct {
	X        float64
	Y        float64
	Rotation float64 // degrees: 0, 90, 180, 270
	Mirror   string  // "", "x", or "y"
}

// DistanceSquared returns the squared Euclidean distance between two
// positions, ignoring rotation/mirror. Callers comparing distances (the
// matcher's tie-breaking, tolerance checks) never need the square root.
func (p Position) DistanceSquared(o Position) float64 {
	dx := p.X - o.X
	dy := p.Y - o.Y
	return dx*dx + dy*dy
}

// PinRef addresses one pin of one component: (reference, pin number).
type PinRef struct {
	Reference string
	Pin       string
}

// Property is one ordered name/value pair of a component (MPN, DNP,
// tolerance, user fields, ...). Order is preserved because it round-trips
// to the CAD file's own property ordering.
type Property struct {
	Name  string
	Value string
}

// Component is a placed instance of a symbol on a sheet (spec §3
// "Component").
type Component struct {
	Reference  string
	LibID      string
	Value      string
	Footprint  string
	Unit       int
	Position   Position
	UUID       string
	Properties []Property
	SheetID    string
	IsPower    bool // lib_id has the "power:" prefix, or explicitly flagged
}

// PropertyValue returns the named property's value and whether it was
// set.
func (c *Component) PropertyValue(name string) (string, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// SetProperty inserts or updates a named property, preserving the
// existing position in Properties when the name already exists.
func (c *Component) SetProperty(name, value string) {
	for i := range c.Properties {
		if c.Properties[i].Name == name {
			c.Properties[i].Value = value
			return
		}
	}
	c.Properties = append(c.Properties, Property{Name: name, Value: value})
}

// Net is a named, per-sheet connectivity set (spec §3 "Net"). Pins is
// logically a set: membership, not order, is meaningful.
type Net struct {
	Name    string
	SheetID string
	Pins    []PinRef
	IsPower bool
}

// HasPin reports whether ref is a member of the net.
func (n *Net) HasPin(ref PinRef) bool {
	for _, p := range n.Pins {
		if p == ref {
			return true
		}
	}
	return false
}

// LabelDirection is the electrical direction of a hierarchical label,
// inferred from the anchor pin's function.
type LabelDirection string

const (
	DirInput    LabelDirection = "input"
	DirOutput   LabelDirection = "output"
	DirBidir    LabelDirection = "bidirectional"
	DirPassive  LabelDirection = "passive"
	DirTriState LabelDirection = "tri_state"
)

// DirectionForPinType maps a symbol pin's electrical type to the
// hierarchical label direction that should be synthesized for it, per
// spec §4.5 ("input pin -> input label, etc.; bidir default for
// passive").
func DirectionForPinType(pinType string) LabelDirection {
	switch pinType {
	case "input":
		return DirInput
	case "output":
		return DirOutput
	case "bidirectional":
		return DirBidir
	case "tri_state":
		return DirTriState
	default:
		return DirBidir
	}
}

// HierLabel is a named port placed at a pin on a child sheet, exposing
// that net to the parent (spec §3 "HierarchicalLabel").
type HierLabel struct {
	NetName   string
	Direction LabelDirection
	Anchor    PinRef
	UUID      string
	SheetID   string
}

// SheetPin is the parent-side counterpart of a HierLabel, placed on the
// sheet symbol that instantiates the child (spec §3 "SheetPin").
type SheetPin struct {
	NetName   string
	Direction LabelDirection
	UUID      string
	// ChildSheetID is the sheet this pin connects into.
	ChildSheetID string
}

// OpaqueBlob identifies (without interpreting) a CAD node the core does
// not understand: text annotations, graphics, the title block, wires,
// junctions, and so on (spec §3 "OpaqueBlob"). Identity is
// (NodeKind, UUID); the actual bytes live in the schematic index's node
// tree, never in this struct.
type OpaqueBlob struct {
	NodeKind string
	UUID     string
}

// Sheet is one node of the hierarchy (spec §3 "Sheet").
type Sheet struct {
	ID             string
	Name           string
	ParentID       string // "" for the root sheet
	FilePath       string
	Page           PageSize
	ChildSheetIDs  []string
	Components     []Component
	Nets           []Net
	HierLabels     []HierLabel
	SheetPins      map[string][]SheetPin // keyed by child sheet ID
	OpaqueBlobs    []OpaqueBlob
}

// IsRoot reports whether this sheet has no parent.
func (s *Sheet) IsRoot() bool {
	return s.ParentID == ""
}

// ComponentByReference returns the first component with the given
// reference (the lowest unit, since callers build Components in unit
// order), matching spec §4.2.1's "lookup by bare reference returns the
// lowest unit" rule.
func (s *Sheet) ComponentByReference(ref string) (*Component, bool) {
	var found *Component
	for i := range s.Components {
		c := &s.Components[i]
		if c.Reference != ref {
			continue
		}
		if found == nil || c.Unit < found.Unit {
			found = c
		}
	}
	if found == nil {
		return nil, false
	}
	return found, true
}

// ComponentsByReference returns every unit sharing ref, ordered by unit.
func (s *Sheet) ComponentsByReference(ref string) []Component {
	var out []Component
	for _, c := range s.Components {
		if c.Reference == ref {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Unit < out[j].Unit })
	return out
}

// Tree is the full declared or loaded circuit hierarchy: one Sheet per
// node, keyed by ID, plus the root's ID for traversal.
type Tree struct {
	RootID string
	Sheets map[string]*Sheet
}

// DFS calls visit once per sheet in depth-first, children-before-parent
// order starting at root — the order the Sheet Orchestrator relies on so
// a parent's label propagation always sees finalized child labels
// (spec §4.7, "Serialize in reverse DFS order").
func (t *Tree) DFS(visit func(*Sheet)) {
	var walk func(id string)
	walk = func(id string) {
		sheet, ok := t.Sheets[id]
		if !ok {
			return
		}
		for _, childID := range sheet.ChildSheetIDs {
			walk(childID)
		}
		visit(sheet)
	}
	walk(t.RootID)
}

// Preorder calls visit root-first, then children — the order needed
// when a sheet addition must exist before any edit inside it is applied
// (spec §4.4 ordering rule 3).
func (t *Tree) Preorder(visit func(*Sheet)) {
	var walk func(id string)
	walk = func(id string) {
		sheet, ok := t.Sheets[id]
		if !ok {
			return
		}
		visit(sheet)
		for _, childID := range sheet.ChildSheetIDs {
			walk(childID)
		}
	}
	walk(t.RootID)
}
