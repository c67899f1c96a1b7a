package reconcile

import (
	"sort"

	"github.com/kisync/kisync/internal/editplan"
	"github.com/kisync/kisync/internal/ir"
)

func pinSignature(pins []ir.PinRef) string {
	sig := make([]string, len(pins))
	for i, p := range pins {
		sig[i] = p.Reference + ":" + p.Pin
	}
	sort.Strings(sig)
	out := ""
	for _, s := range sig {
		out += s + "|"
	}
	return out
}

func remapPins(pins []ir.PinRef, renameOf map[string]string) []ir.PinRef {
	out := make([]ir.PinRef, len(pins))
	for i, p := range pins {
		ref := p.Reference
		if newRef, ok := renameOf[ref]; ok {
			ref = newRef
		}
		out[i] = ir.PinRef{Reference: ref, Pin: p.Pin}
	}
	return out
}

// reconcileNets diffs declared net membership against the previously
// persisted membership (the canonical JSON mirror), expressing changes
// as Add/Update/Rename/DeleteNet edits. renameOf rewrites any previous
// pin still citing an old component reference before comparing, so a
// component rename alone never looks like a net membership change.
func reconcileNets(declaredNets, previousNets []ir.Net, renameOf map[string]string) []editplan.Edit {
	declaredByName := map[string]ir.Net{}
	for _, n := range declaredNets {
		declaredByName[n.Name] = n
	}
	previousByName := map[string]ir.Net{}
	for _, n := range previousNets {
		previousByName[n.Name] = ir.Net{Name: n.Name, Pins: remapPins(n.Pins, renameOf)}
	}

	var edits []editplan.Edit
	matchedPrevious := map[string]bool{}
	matchedDeclared := map[string]bool{}

	// Pass 1: exact name matches — diff membership.
	var names []string
	for name := range declaredByName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		prev, ok := previousByName[name]
		if !ok {
			continue
		}
		matchedDeclared[name] = true
		matchedPrevious[name] = true
		if add, remove := diffPins(declaredByName[name].Pins, prev.Pins); len(add) > 0 || len(remove) > 0 {
			edits = append(edits, editplan.UpdateNetMembership{NetName: name, AddPins: add, RemovePins: remove})
		}
	}

	// Pass 2: renamed nets — unmatched previous net whose pin signature
	// exactly matches an unmatched declared net under a different name.
	var prevNames []string
	for name := range previousByName {
		if !matchedPrevious[name] {
			prevNames = append(prevNames, name)
		}
	}
	sort.Strings(prevNames)
	for _, prevName := range prevNames {
		prevSig := pinSignature(previousByName[prevName].Pins)
		if prevSig == "" {
			continue
		}
		var declNames []string
		for name := range declaredByName {
			if !matchedDeclared[name] {
				declNames = append(declNames, name)
			}
		}
		sort.Strings(declNames)
		for _, declName := range declNames {
			if pinSignature(declaredByName[declName].Pins) == prevSig {
				edits = append(edits, editplan.RenameNet{OldName: prevName, NewName: declName})
				matchedPrevious[prevName] = true
				matchedDeclared[declName] = true
				break
			}
		}
	}

	// Pass 3: remaining unmatched previous nets are deletions, remaining
	// unmatched declared nets are additions.
	for _, name := range prevNames {
		if !matchedPrevious[name] {
			edits = append(edits, editplan.DeleteNet{NetName: name})
		}
	}
	for _, name := range names {
		if !matchedDeclared[name] {
			edits = append(edits, editplan.AddNet{Net: declaredByName[name]})
		}
	}

	return edits
}

func diffPins(declared, previous []ir.PinRef) (add []ir.PinRef, remove []ir.PinRef) {
	declSet := map[string]ir.PinRef{}
	for _, p := range declared {
		declSet[p.Reference+":"+p.Pin] = p
	}
	prevSet := map[string]ir.PinRef{}
	for _, p := range previous {
		prevSet[p.Reference+":"+p.Pin] = p
	}

	var addKeys, removeKeys []string
	for k := range declSet {
		if _, ok := prevSet[k]; !ok {
			addKeys = append(addKeys, k)
		}
	}
	for k := range prevSet {
		if _, ok := declSet[k]; !ok {
			removeKeys = append(removeKeys, k)
		}
	}
	sort.Strings(addKeys)
	sort.Strings(removeKeys)
	for _, k := range addKeys {
		add = append(add, declSet[k])
	}
	for _, k := range removeKeys {
		remove = append(remove, prevSet[k])
	}
	return add, remove
}
