package orchestrator

// SheetReport is one sheet's action tally (spec §6.3 SyncReport: "ordered
// list of per-sheet (added[], updated[], renamed[], deleted[],
// labels_added[], labels_removed[], warnings[], errors[])").
type SheetReport struct {
	SheetID       string
	Added         []string
	Updated       []string
	Renamed       []string
	Deleted       []string
	LabelsAdded   []string
	LabelsRemoved []string
	Warnings      []string
	Errors        []string
}

func (r *SheetReport) hasErrors() bool   { return len(r.Errors) > 0 }
func (r *SheetReport) hasWarnings() bool { return len(r.Warnings) > 0 }

// SyncReport is the full sync(...) return value (spec §6.3).
type SyncReport struct {
	Sheets []SheetReport
}

// ExitCode implements spec §7's boundary exit code rule: 0 success, 1
// warnings (when not strict), 2 errors. strict escalates warnings to
// errors, so a warning-only report under strict mode returns 2.
func (r *SyncReport) ExitCode(strict bool) int {
	sawWarning, sawError := false, false
	for _, s := range r.Sheets {
		if s.hasErrors() {
			sawError = true
		}
		if s.hasWarnings() {
			sawWarning = true
		}
	}
	switch {
	case sawError:
		return 2
	case sawWarning && strict:
		return 2
	case sawWarning:
		return 1
	default:
		return 0
	}
}

// TotalEdits sums every recorded action across all sheets; an immediate
// re-sync of unchanged input totals 0.
func (r *SyncReport) TotalEdits() int {
	total := 0
	for _, s := range r.Sheets {
		total += len(s.Added) + len(s.Updated) + len(s.Renamed) + len(s.Deleted) + len(s.LabelsAdded) + len(s.LabelsRemoved)
	}
	return total
}
