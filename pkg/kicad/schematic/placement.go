package schematic

import "github.com/kisync/kisync/internal/ir"

// defaultPlacementGridMM is the fresh-component grid spacing (spec
// §4.6.1: "2.54mm spacing", one CAD grid unit) used until SetPlacementGrid
// overrides it.
const defaultPlacementGridMM = 2.54

// placementColumns bounds how wide the fresh-placement grid grows
// before wrapping to a new row, keeping a long run of additions from
// producing one absurdly wide row.
const placementColumns = 10

// SetPlacementGrid overrides the spacing nextPlacement advances by,
// wiring config.Options.PlacementGridMM through to the applier. Must be
// called before the first AddComponent/AddLabel edit; it is a no-op
// once placementOrigin has already been computed.
func (idx *Index) SetPlacementGrid(mm float64) {
	if mm > 0 && idx.placementOrigin == nil {
		idx.placementGridMM = mm
	}
}

func (idx *Index) gridMM() float64 {
	if idx.placementGridMM > 0 {
		return idx.placementGridMM
	}
	return defaultPlacementGridMM
}

// nextPlacement returns the position for the next freshly added entity
// (component or synthesized label), advancing a deterministic grid
// below the sheet's existing bounding box (spec §4.6.1). The origin is
// computed once per Index lifetime from the components present at
// first call, then advanced by placementSeq — so repeated additions in
// one sync never collide, and re-running placement against identical
// input reproduces the same sequence (test 17.2).
func (idx *Index) nextPlacement() ir.Position {
	if idx.placementOrigin == nil {
		idx.placementOrigin = idx.computePlacementOrigin()
	}
	grid := idx.gridMM()
	row := idx.placementSeq / placementColumns
	col := idx.placementSeq % placementColumns
	idx.placementSeq++

	return ir.Position{
		X: idx.placementOrigin.X + float64(col)*grid,
		Y: idx.placementOrigin.Y + float64(row)*grid,
	}
}

func (idx *Index) computePlacementOrigin() *ir.Position {
	grid := idx.gridMM()
	minX, maxY := 0.0, 0.0
	found := false
	for _, n := range idx.componentNodes() {
		c := decodeComponent(n, idx.SheetID)
		if !found || c.Position.X < minX {
			minX = c.Position.X
		}
		if !found || c.Position.Y > maxY {
			maxY = c.Position.Y
		}
		found = true
	}
	if !found {
		return &ir.Position{X: grid * 4, Y: grid * 4}
	}
	return &ir.Position{X: minX, Y: maxY + grid*4}
}

// boundingBox computes the extent of every component's position on the
// sheet, used by ChangePageSize to decide whether the current paper
// still fits (spec §4.6 "ChangePageSize"). Labels and sheet symbols are
// not included.
func (idx *Index) boundingBox() (width, height float64) {
	minX, minY, maxX, maxY := 0.0, 0.0, 0.0, 0.0
	found := false
	consider := func(p ir.Position) {
		if !found || p.X < minX {
			minX = p.X
		}
		if !found || p.Y < minY {
			minY = p.Y
		}
		if !found || p.X > maxX {
			maxX = p.X
		}
		if !found || p.Y > maxY {
			maxY = p.Y
		}
		found = true
	}
	for _, n := range idx.componentNodes() {
		consider(decodeComponent(n, idx.SheetID).Position)
	}
	if !found {
		return 0, 0
	}
	return maxX - minX, maxY - minY
}

// RequiredPageSize returns the smallest standard page size that fits
// the sheet's current bounding box with the given margin.
func (idx *Index) RequiredPageSize(marginMM float64) ir.PageSize {
	w, h := idx.boundingBox()
	return ir.ChoosePageSize(w, h, marginMM)
}
