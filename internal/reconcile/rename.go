package reconcile

import (
	"fmt"
	"sort"

	"github.com/kisync/kisync/internal/editplan"
	"github.com/kisync/kisync/internal/kerrors"
	"github.com/kisync/kisync/internal/match"
)

// renameGroup is every matched unit sharing one (oldRef, newRef) pair —
// a multi-unit symbol renames all its units together.
type renameGroup struct {
	oldRef string
	newRef string
	units  []int
}

func groupRenames(pairs []match.Pair) (map[string]*renameGroup, error) {
	groups := map[string]*renameGroup{}
	for _, p := range pairs {
		if !p.IsRename() {
			continue
		}
		g, ok := groups[p.Existing.Reference]
		if !ok {
			g = &renameGroup{oldRef: p.Existing.Reference, newRef: p.Declared.Reference}
			groups[p.Existing.Reference] = g
		}
		if g.newRef != p.Declared.Reference {
			return nil, &PlanError{Conflicts: []*kerrors.Error{kerrors.New(kerrors.RenameConflict, "", p.Existing.Reference,
				"existing reference %q renamed to two different targets: %q and %q", p.Existing.Reference, g.newRef, p.Declared.Reference)}}
		}
		g.units = append(g.units, p.Existing.Unit)
	}
	return groups, nil
}

// planRenames sequences every rename group into RenameComponent edits
// safe to apply one at a time, breaking any cycle (spec scenario S3,
// SPEC_FULL.md §5 "swap-rename") with a temporary reference. It returns
// the ordered edits plus a map from every old reference to its final
// new reference, for use by net reconciliation.
func planRenames(groups map[string]*renameGroup) ([]editplan.Edit, map[string]string, error) {
	renameOf := map[string]string{}
	for old, g := range groups {
		renameOf[old] = g.newRef
	}

	var oldRefs []string
	for old := range groups {
		oldRefs = append(oldRefs, old)
	}
	sort.Strings(oldRefs)

	visited := map[string]bool{}
	var edits []editplan.Edit
	tempCounter := 0

	emit := func(old, new string) {
		g, ok := groups[old]
		if !ok {
			// old is a temporary reference from planCycle: it carries the
			// units of the group whose final target is new.
			for _, cand := range groups {
				if cand.newRef == new {
					g = cand
					break
				}
			}
		}
		for _, unit := range g.units {
			edits = append(edits, editplan.RenameComponent{OldReference: old, NewReference: new, Unit: unit})
		}
	}

	for _, start := range oldRefs {
		if visited[start] {
			continue
		}

		// Follow the chain of dependent renames: a link "cur -> next"
		// is a dependency (next must vacate before cur can take its
		// place) only when next is itself an old reference scheduled to
		// move elsewhere. The chain ends when it reaches a target that
		// nobody else renames away, or closes back on its own start.
		chain := []string{start}
		cyclic := false
		cur := start
		for {
			next := renameOf[cur]
			if _, isOld := groups[next]; !isOld {
				break
			}
			if next == start {
				cyclic = true
				break
			}
			if visited[next] {
				break
			}
			chain = append(chain, next)
			cur = next
		}

		for _, c := range chain {
			visited[c] = true
		}

		if cyclic {
			if err := planCycle(chain, renameOf, &tempCounter, emit); err != nil {
				return nil, nil, err
			}
		} else {
			planChain(chain, renameOf, emit)
		}
	}

	return edits, renameOf, nil
}

// planChain emits a non-cyclic dependency chain tail-first: the
// dependency furthest down the chain (whose target name is not itself
// about to be vacated) renames first, so no two components are ever
// named identically mid-plan.
func planChain(chain []string, renameOf map[string]string, emit func(old, new string)) {
	for i := len(chain) - 1; i >= 0; i-- {
		emit(chain[i], renameOf[chain[i]])
	}
}

// planCycle breaks a rename cycle [a0, a1, ..., ak-1] (renameOf[ai] =
// a(i+1 mod k)) using one temporary reference, per SPEC_FULL.md §5:
//
//	a0 -> temp
//	ak-1 -> renameOf[ak-1]   (== a0, now vacated)
//	...
//	a1 -> renameOf[a1]        (== a2, vacated the step before)
//	temp -> renameOf[a0]      (== a1, vacated the step before)
func planCycle(chain []string, renameOf map[string]string, tempCounter *int, emit func(old, new string)) error {
	if len(chain) == 0 {
		return fmt.Errorf("reconcile: empty rename cycle")
	}
	*tempCounter++
	temp := fmt.Sprintf("_tmp_%d", *tempCounter)

	a0 := chain[0]
	target0 := renameOf[a0]

	emit(a0, temp)
	for i := len(chain) - 1; i >= 1; i-- {
		emit(chain[i], renameOf[chain[i]])
	}
	emit(temp, target0)
	return nil
}
