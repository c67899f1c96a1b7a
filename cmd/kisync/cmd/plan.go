package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/kisync/kisync/internal/editplan"
	"github.com/kisync/kisync/internal/orchestrator"
)

var planCmd = &cobra.Command{
	Use:   "plan <project_root> <declared.json>",
	Short: "Show what sync would do, without writing any file",
	Args:  cobra.ExactArgs(2),
	RunE:  runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().BoolVar(&forceRegenerate, "force-regenerate", false, "treat every declared component as new (spec options.force_regenerate)")
}

func runPlan(c *cobra.Command, args []string) error {
	setupLogging()
	projectRoot, declaredPath := args[0], args[1]

	opts, err := loadOptions(projectRoot)
	if err != nil {
		return err
	}
	opts.ForceRegenerate = opts.ForceRegenerate || forceRegenerate

	tree, err := loadDeclaredTree(declaredPath)
	if err != nil {
		return err
	}

	plans, err := orchestrator.Plan(projectRoot, tree, opts)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}

	var sheetIDs []string
	for id := range plans {
		sheetIDs = append(sheetIDs, id)
	}
	sort.Strings(sheetIDs)

	for _, id := range sheetIDs {
		plan := plans[id]
		fmt.Printf("sheet %s (%d edits):\n", id, len(plan.Edits))
		for _, e := range plan.Edits {
			fmt.Printf("  %-20s %s\n", editplan.Kind(e), describeEdit(e))
		}
	}
	return nil
}

func describeEdit(e editplan.Edit) string {
	switch ed := e.(type) {
	case editplan.AddComponent:
		return ed.Component.Reference
	case editplan.UpdateComponent:
		return ed.Reference
	case editplan.RenameComponent:
		return fmt.Sprintf("%s -> %s", ed.OldReference, ed.NewReference)
	case editplan.DeleteComponent:
		return ed.Reference
	case editplan.AddNet:
		return ed.Net.Name
	case editplan.UpdateNetMembership:
		return ed.NetName
	case editplan.RenameNet:
		return fmt.Sprintf("%s -> %s", ed.OldName, ed.NewName)
	case editplan.DeleteNet:
		return ed.NetName
	case editplan.ChangePageSize:
		return string(ed.NewSize)
	default:
		return ""
	}
}
