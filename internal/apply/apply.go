// Package apply drives an EditPlan through a Schematic Index (spec
// component 6, "Edit Applier"). The transactional contract (spec §5
// "Transactional discipline": on any applier error, roll back to the
// pre-sync in-memory Index and do not write) is upheld by the caller,
// not this package: Index mutation happens directly on the tree the
// caller loaded, so on error the caller simply discards that Index and
// never calls Serialize/writes it to disk — there is nothing to undo
// in memory that matters once the bytes are never persisted.
package apply

import (
	"fmt"

	"github.com/kisync/kisync/internal/editplan"
	"github.com/kisync/kisync/pkg/kicad/schematic"
)

// Apply executes every edit in plan against idx, in order, stopping at
// the first failure (spec §4.4 "Failure semantics": no partial
// application is ever written, though this function itself does apply
// edits one at a time in-memory up to the failure point).
func Apply(idx *schematic.Index, plan *editplan.Plan) error {
	for i, e := range plan.Edits {
		if err := idx.Apply(e); err != nil {
			return fmt.Errorf("apply: sheet %s edit %d (%s): %w", plan.SheetID, i, editplan.Kind(e), err)
		}
	}
	return nil
}
