// Package schematic implements the Schematic Index (spec component 2):
// an in-memory view of one parsed .kicad_sch file that indexes the
// entities the core cares about (components, hierarchical labels, sheet
// symbols and their pins) while leaving everything else — wires,
// junctions, graphics, the title block — untouched in the underlying
// node tree so it round-trips byte-stable.
package schematic

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/kisync/kisync/internal/ir"
	"github.com/kisync/kisync/internal/kerrors"
	"github.com/kisync/kisync/pkg/kicad/sexp"
)

const kicadSchKeyword = "kicad_sch"

// MinSupportedVersion is the earliest KiCad schematic format this index
// reads (6.0's file format generation).
const MinSupportedVersion = 20211014

// componentEntry pairs a parsed (symbol ...) node with its decoded IR
// view; mutations go through the node, decoded fields are refreshed on
// read so Components() always reflects the current node state.
type componentEntry struct {
	node *sexp.Node
	unit int
}

type labelEntry struct {
	node *sexp.Node
}

// sheetEntry is one child-sheet reference (a top-level `sheet` node)
// carrying its own hierarchical pins.
type sheetEntry struct {
	node    *sexp.Node
	childID string
}

// Index is the Schematic Index for one sheet file.
type Index struct {
	SheetID  string
	FilePath string

	doc  *sexp.Document
	root *sexp.Node

	namespace uuid.UUID

	placementSeq    int
	placementOrigin *ir.Position
	placementGridMM float64
}

// Load parses src as a .kicad_sch document and builds an Index over it.
// sheetID identifies this sheet in the declared hierarchy; namespace
// seeds deterministic UUID minting for any entity this index creates.
func Load(sheetID, filePath string, src []byte, namespace uuid.UUID) (*Index, error) {
	doc, err := sexp.Parse(src)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.CodecError, sheetID, "", err, "parsing %s", filePath)
	}
	if len(doc.Forms) == 0 || doc.Forms[0].Keyword() != kicadSchKeyword {
		return nil, kerrors.New(kerrors.CodecError, sheetID, "", "%s: root form is not a kicad_sch", filePath)
	}
	return &Index{SheetID: sheetID, FilePath: filePath, doc: doc, root: doc.Forms[0], namespace: namespace}, nil
}

// NewEmpty builds an Index for a sheet that doesn't exist on disk yet
// (spec §4.7 rule 4, sheet additions).
func NewEmpty(sheetID, filePath string, namespace uuid.UUID, page ir.PageSize) *Index {
	root := sexp.NewList(kicadSchKeyword,
		sexp.NewList("version", sexp.NewAtom("20231120", false)),
		sexp.NewList("generator", sexp.NewAtom("kisync", true)),
		sexp.NewList("uuid", sexp.NewAtom(mintUUID(namespace, sheetID, "$sheet", 0), true)),
		sexp.NewList("paper", sexp.NewAtom(string(page), true)),
	)
	doc := &sexp.Document{Forms: []*sexp.Node{root}}
	return &Index{SheetID: sheetID, FilePath: filePath, doc: doc, root: root, namespace: namespace}
}

func (idx *Index) componentNodes() []*sexp.Node {
	return idx.root.Children("symbol")
}

func (idx *Index) labelNodes() []*sexp.Node {
	return idx.root.Children("hierarchical_label")
}

func (idx *Index) sheetNodes() []*sexp.Node {
	return idx.root.Children("sheet")
}

// Components returns every component entity, ordered by reference then
// unit (spec §4.2 "components()").
func (idx *Index) Components() []ir.Component {
	var out []ir.Component
	for _, n := range idx.componentNodes() {
		out = append(out, decodeComponent(n, idx.SheetID))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Reference != out[j].Reference {
			return out[i].Reference < out[j].Reference
		}
		return out[i].Unit < out[j].Unit
	})
	return out
}

// FindByReference returns the lowest-unit component matching ref (spec
// §4.2.1: a bare-reference lookup must not fail just because the index
// is keyed on (reference, unit)).
func (idx *Index) FindByReference(ref string) (ir.Component, bool) {
	var found *ir.Component
	for _, n := range idx.componentNodes() {
		c := decodeComponent(n, idx.SheetID)
		if c.Reference != ref {
			continue
		}
		if found == nil || c.Unit < found.Unit {
			cc := c
			found = &cc
		}
	}
	if found == nil {
		return ir.Component{}, false
	}
	return *found, true
}

// FindByPosition returns every component within tol millimeters of pos
// (spec §4.2: "O(n) ok; tolerance default 2.54mm").
func (idx *Index) FindByPosition(pos ir.Position, tol float64) []ir.Component {
	tolSq := tol * tol
	var out []ir.Component
	for _, n := range idx.componentNodes() {
		c := decodeComponent(n, idx.SheetID)
		if c.Position.DistanceSquared(pos) <= tolSq {
			out = append(out, c)
		}
	}
	return out
}

// Labels returns every hierarchical label on this sheet.
func (idx *Index) Labels() []ir.HierLabel {
	var out []ir.HierLabel
	for _, n := range idx.labelNodes() {
		out = append(out, decodeLabel(n, idx.SheetID))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NetName < out[j].NetName })
	return out
}

// SheetPins returns the sheet-pin set for every child sheet symbol,
// keyed by the child sheet's file name (the only stable cross-reference
// available at this layer — sheet IDs are a declared-IR concept).
func (idx *Index) SheetPins() map[string][]ir.SheetPin {
	out := map[string][]ir.SheetPin{}
	for _, n := range idx.sheetNodes() {
		file := sheetFileName(n)
		var pins []ir.SheetPin
		for _, pinNode := range n.Children("pin") {
			pins = append(pins, decodeSheetPin(pinNode, file))
		}
		sort.Slice(pins, func(i, j int) bool { return pins[i].NetName < pins[j].NetName })
		out[file] = pins
	}
	return out
}

// ChildSheetFiles returns the file name of every child sheet symbol
// currently on this sheet.
func (idx *Index) ChildSheetFiles() []string {
	var out []string
	for _, n := range idx.sheetNodes() {
		out = append(out, sheetFileName(n))
	}
	sort.Strings(out)
	return out
}

// opaqueKinds are the top-level token kinds spec §6.1 lists as "treated
// as opaque": wires, junctions, graphics, the title block and anything
// else the core has no named accessor for.
var opaqueKinds = []string{
	"wire", "junction", "text", "gr_line", "gr_rect", "gr_arc",
	"no_connect", "bus", "bus_entry", "title_block",
}

// OpaqueBlobs enumerates the sheet's unknown nodes by (kind, uuid) for
// diagnostics (spec §3 "OpaqueBlob"). The bytes themselves are never
// copied out of the node tree — preservation is the Raw/Dirty span
// mechanism in pkg/kicad/sexp, not this list; this exists so callers can
// log or assert a preserved count without reaching into sexp internals.
func (idx *Index) OpaqueBlobs() []ir.OpaqueBlob {
	var out []ir.OpaqueBlob
	for _, item := range idx.root.Items {
		kind := item.Keyword()
		known := false
		for _, k := range opaqueKinds {
			if kind == k {
				known = true
				break
			}
		}
		if !known {
			continue
		}
		b := ir.OpaqueBlob{NodeKind: kind}
		if u, ok := item.Child("uuid"); ok {
			b.UUID, _ = u.String(1)
		}
		out = append(out, b)
	}
	return out
}

func sheetFileName(sheetNode *sexp.Node) string {
	for _, p := range sheetNode.Children("property") {
		name, _ := p.String(1)
		if name == "Sheetfile" {
			v, _ := p.String(2)
			return v
		}
	}
	return ""
}

// Serialize returns the updated CAD bytes, unmodified nodes re-emitted
// byte-stable (spec §4.2 "serialize()", testable property 2).
func (idx *Index) Serialize() []byte {
	return []byte(sexp.PrintDocument(idx.doc))
}

// PaperSize returns the sheet's current page size token, e.g. "A4".
func (idx *Index) PaperSize() string {
	if paper, ok := idx.root.Child("paper"); ok {
		v, _ := paper.String(1)
		return v
	}
	return ""
}

func decodeComponent(n *sexp.Node, sheetID string) ir.Component {
	c := ir.Component{SheetID: sheetID}

	if lib, ok := n.Child("lib_id"); ok {
		c.LibID, _ = lib.String(1)
	}
	if at, ok := n.Child("at"); ok {
		c.Position.X, _ = at.Float(1)
		c.Position.Y, _ = at.Float(2)
		if at.ArgCount() > 3 {
			c.Position.Rotation, _ = at.Float(3)
		}
	}
	if m, ok := n.Child("mirror"); ok {
		c.Position.Mirror, _ = m.String(1)
	}
	if u, ok := n.Child("unit"); ok {
		c.Unit, _ = u.Int(1)
	}
	if c.Unit == 0 {
		c.Unit = 1
	}
	if u, ok := n.Child("uuid"); ok {
		c.UUID, _ = u.String(1)
	}
	for _, p := range n.Children("property") {
		name, _ := p.String(1)
		value, _ := p.String(2)
		switch name {
		case "Reference":
			c.Reference = value
		case "Value":
			c.Value = value
		case "Footprint":
			c.Footprint = value
		default:
			c.Properties = append(c.Properties, ir.Property{Name: name, Value: value})
		}
	}
	c.IsPower = strings.HasPrefix(c.LibID, "power:")
	return c
}

func decodeLabel(n *sexp.Node, sheetID string) ir.HierLabel {
	l := ir.HierLabel{SheetID: sheetID}
	l.NetName, _ = n.String(1)
	if shape, ok := n.Child("shape"); ok {
		dir, _ := shape.String(1)
		l.Direction = ir.LabelDirection(dir)
	}
	// The anchor pin number isn't recoverable from the label node alone —
	// KiCad anchors a hierarchical label to a wire endpoint by
	// coordinate, not by an explicit pin reference. Identity for
	// propagation purposes is (sheet, net name); see the label package.
	if u, ok := n.Child("uuid"); ok {
		l.UUID, _ = u.String(1)
	}
	return l
}

func decodeSheetPin(n *sexp.Node, childSheetFile string) ir.SheetPin {
	p := ir.SheetPin{ChildSheetID: childSheetFile}
	p.NetName, _ = n.String(1)
	if n.ArgCount() > 2 {
		dir, _ := n.String(2)
		p.Direction = ir.LabelDirection(dir)
	}
	if u, ok := n.Child("uuid"); ok {
		p.UUID, _ = u.String(1)
	}
	return p
}

func mintUUID(namespace uuid.UUID, sheetID, reference string, unit int) string {
	name := fmt.Sprintf("%s/%s/%d", sheetID, reference, unit)
	return uuid.NewSHA1(namespace, []byte(name)).String()
}
