// Package mirror implements the canonical JSON mirror (spec §6.4 "<project>.json",
// §6.5 "Canonical JSON schema"): a sorted-key, fixed-precision snapshot
// of the declared IR, written after every sync. It doubles as the
// Matcher's "previous nets" input (internal/match), since this engine
// treats on-disk wire geometry as an opaque blob rather than a source of
// net topology (spec §9).
package mirror

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kisync/kisync/internal/ir"
)

// Float3 marshals as a JSON number fixed to 3 decimal places, making the
// mirror diff-stable across syncs that don't change geometry (spec §6.5,
// test 17.2 determinism).
type Float3 float64

func (f Float3) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(f), 'f', 3, 64)), nil
}

func (f *Float3) UnmarshalJSON(data []byte) error {
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = Float3(v)
	return nil
}

// PositionJSON is the on-disk shape of ir.Position.
type PositionJSON struct {
	X        Float3 `json:"x"`
	Y        Float3 `json:"y"`
	Rotation Float3 `json:"rotation"`
}

// ComponentJSON is the on-disk shape of one ir.Component.
type ComponentJSON struct {
	LibID      string            `json:"lib_id"`
	Value      string            `json:"value,omitempty"`
	Footprint  string            `json:"footprint,omitempty"`
	Unit       int               `json:"unit"`
	Properties map[string]string `json:"properties,omitempty"`
	Position   *PositionJSON     `json:"position,omitempty"`
}

// PinJSON is one (reference, pin number) pair.
type PinJSON struct {
	Ref string `json:"ref"`
	Pin string `json:"pin"`
}

// NetJSON is the on-disk shape of one ir.Net. IsPower is stored
// explicitly, so a declared-IR author can mark a power net that carries
// no component pins yet; Encode and Decode also set it for any net with
// a pin on a power: component (spec §4.5 "power nets ... detected by
// symbol lib_id prefix power: or explicit is_power flag").
type NetJSON struct {
	Pins    []PinJSON `json:"pins"`
	IsPower bool      `json:"is_power,omitempty"`
}

// SheetJSON is the per-sheet schema spec §6.5 defines.
type SheetJSON struct {
	Name       string                   `json:"name"`
	SheetID    string                   `json:"sheet_id"`
	Parent     string                   `json:"parent,omitempty"`
	Components map[string]ComponentJSON `json:"components"`
	Nets       map[string]NetJSON       `json:"nets"`
	Subsheets  []string                 `json:"subsheets,omitempty"`
}

// Project is the full mirror: every sheet keyed by sheet ID. Go's
// encoding/json sorts map[string]* keys on marshal, which is what gives
// the mirror its stable key ordering without a dependency on an
// ordered-map library.
type Project map[string]SheetJSON

// Encode builds the canonical mirror for a full declared/synced tree.
func Encode(tree *ir.Tree) Project {
	p := Project{}
	for id, sheet := range tree.Sheets {
		p[id] = encodeSheet(sheet)
	}
	return p
}

func encodeSheet(s *ir.Sheet) SheetJSON {
	sj := SheetJSON{Name: s.Name, SheetID: s.ID, Parent: s.ParentID}
	sj.Components = map[string]ComponentJSON{}
	for _, c := range s.Components {
		key := componentKey(c.Reference, c.Unit)
		props := map[string]string{}
		for _, p := range c.Properties {
			props[p.Name] = p.Value
		}
		cj := ComponentJSON{
			LibID:     c.LibID,
			Value:     c.Value,
			Footprint: c.Footprint,
			Unit:      c.Unit,
		}
		if len(props) > 0 {
			cj.Properties = props
		}
		if c.Position.X != 0 || c.Position.Y != 0 || c.Position.Rotation != 0 {
			cj.Position = &PositionJSON{X: Float3(c.Position.X), Y: Float3(c.Position.Y), Rotation: Float3(c.Position.Rotation)}
		}
		sj.Components[key] = cj
	}
	powerByRef := map[string]bool{}
	for _, c := range s.Components {
		if c.IsPower || strings.HasPrefix(c.LibID, "power:") {
			powerByRef[c.Reference] = true
		}
	}
	sj.Nets = map[string]NetJSON{}
	for _, n := range s.Nets {
		isPower := n.IsPower
		pins := make([]PinJSON, 0, len(n.Pins))
		for _, p := range n.Pins {
			pins = append(pins, PinJSON{Ref: p.Reference, Pin: p.Pin})
			if powerByRef[p.Reference] {
				isPower = true
			}
		}
		sort.Slice(pins, func(i, j int) bool {
			if pins[i].Ref != pins[j].Ref {
				return pins[i].Ref < pins[j].Ref
			}
			return pins[i].Pin < pins[j].Pin
		})
		sj.Nets[n.Name] = NetJSON{Pins: pins, IsPower: isPower}
	}
	sj.Subsheets = append(sj.Subsheets, s.ChildSheetIDs...)
	return sj
}

// componentKey disambiguates multi-unit symbols in the flat
// reference-keyed map; unit 1 uses the bare reference to keep the
// common single-unit case reading naturally.
func componentKey(ref string, unit int) string {
	if unit <= 1 {
		return ref
	}
	return fmt.Sprintf("%s.%d", ref, unit)
}

// Marshal renders p as indented, sorted-key JSON bytes.
func Marshal(p Project) ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Unmarshal parses previously-persisted mirror bytes.
func Unmarshal(data []byte) (Project, error) {
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("mirror: parsing json: %w", err)
	}
	return p, nil
}

// Decode reconstructs a full *ir.Tree from a mirror Project, the
// declared-IR input shape the CLI accepts (spec §6.2's "front-end"
// delivers a tree of sheets + component/net records; this engine treats
// the canonical JSON schema it already emits, spec §6.4/§6.5, as that
// exchange format rather than inventing a second one).
func Decode(p Project) (*ir.Tree, error) {
	tree := &ir.Tree{Sheets: map[string]*ir.Sheet{}}
	for id, sj := range p {
		sheet := &ir.Sheet{
			ID:            id,
			Name:          sj.Name,
			ParentID:      sj.Parent,
			FilePath:      sanitizeFileName(sj.Name) + ".kicad_sch",
			Page:          ir.PageA4,
			ChildSheetIDs: append([]string{}, sj.Subsheets...),
		}
		var refs []string
		for ref := range sj.Components {
			refs = append(refs, ref)
		}
		sort.Strings(refs)
		for _, ref := range refs {
			cj := sj.Components[ref]
			c := ir.Component{
				Reference: baseReference(ref),
				LibID:     cj.LibID,
				Value:     cj.Value,
				Footprint: cj.Footprint,
				Unit:      cj.Unit,
				SheetID:   id,
				IsPower:   strings.HasPrefix(cj.LibID, "power:"),
			}
			if c.Unit == 0 {
				c.Unit = 1
			}
			if cj.Position != nil {
				c.Position = ir.Position{X: float64(cj.Position.X), Y: float64(cj.Position.Y), Rotation: float64(cj.Position.Rotation)}
			}
			var propNames []string
			for name := range cj.Properties {
				propNames = append(propNames, name)
			}
			sort.Strings(propNames)
			for _, name := range propNames {
				c.Properties = append(c.Properties, ir.Property{Name: name, Value: cj.Properties[name]})
			}
			sheet.Components = append(sheet.Components, c)
		}
		powerByRef := map[string]bool{}
		for _, c := range sheet.Components {
			if c.IsPower {
				powerByRef[c.Reference] = true
			}
		}
		var netNames []string
		for name := range sj.Nets {
			netNames = append(netNames, name)
		}
		sort.Strings(netNames)
		for _, name := range netNames {
			nj := sj.Nets[name]
			n := ir.Net{Name: name, SheetID: id, IsPower: nj.IsPower}
			for _, pj := range nj.Pins {
				n.Pins = append(n.Pins, ir.PinRef{Reference: pj.Ref, Pin: pj.Pin})
				if powerByRef[pj.Ref] {
					n.IsPower = true
				}
			}
			sheet.Nets = append(sheet.Nets, n)
		}
		tree.Sheets[id] = sheet
		if sheet.IsRoot() {
			tree.RootID = id
		}
	}
	if tree.RootID == "" {
		return nil, fmt.Errorf("mirror: no root sheet (a sheet with empty parent) found")
	}
	return tree, nil
}

// baseReference strips the ".N" multi-unit disambiguator componentKey
// adds, recovering the bare reference the IR stores separately from
// Unit.
func baseReference(key string) string {
	if i := lastDot(key); i >= 0 {
		if _, err := strconv.Atoi(key[i+1:]); err == nil {
			return key[:i]
		}
	}
	return key
}

// sanitizeFileName mirrors spec §6.4's "filename = sanitized subcircuit
// name": lowercase, spaces and anything outside [a-z0-9_-] become "_".
func sanitizeFileName(name string) string {
	if name == "" {
		return "sheet"
	}
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			out = append(out, r)
		case r >= 'A' && r <= 'Z':
			out = append(out, r-'A'+'a')
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}

// NetsForSheet reconstructs the []ir.Net view of one sheet's persisted
// nets, the shape internal/match's connection-topology strategy expects
// as its "previous nets" input.
func (p Project) NetsForSheet(sheetID string) []ir.Net {
	sj, ok := p[sheetID]
	if !ok {
		return nil
	}
	var nets []ir.Net
	for name, nj := range sj.Nets {
		pins := make([]ir.PinRef, 0, len(nj.Pins))
		for _, pj := range nj.Pins {
			pins = append(pins, ir.PinRef{Reference: pj.Ref, Pin: pj.Pin})
		}
		nets = append(nets, ir.Net{Name: name, SheetID: sheetID, Pins: pins, IsPower: nj.IsPower})
	}
	sort.Slice(nets, func(i, j int) bool { return nets[i].Name < nets[j].Name })
	return nets
}
