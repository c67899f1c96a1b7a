package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kisync/kisync/internal/config"
	"github.com/kisync/kisync/internal/ir"
	"github.com/kisync/kisync/internal/mirror"
	"github.com/kisync/kisync/internal/orchestrator"
)

var (
	forceRegenerate bool
	generatePCB     bool
	strict          bool
)

var syncCmd = &cobra.Command{
	Use:   "sync <project_root> <declared.json>",
	Short: "Apply a declared circuit IR into the KiCad project at project_root",
	Args:  cobra.ExactArgs(2),
	RunE:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVar(&forceRegenerate, "force-regenerate", false, "treat every declared component as new (spec options.force_regenerate)")
	syncCmd.Flags().BoolVar(&generatePCB, "generate-pcb", false, "accepted for interface completeness; no PCB is produced (out of scope)")
	syncCmd.Flags().BoolVar(&strict, "strict", false, "escalate warnings to errors")
}

func runSync(c *cobra.Command, args []string) error {
	setupLogging()
	projectRoot, declaredPath := args[0], args[1]

	opts, err := loadOptions(projectRoot)
	if err != nil {
		return err
	}
	opts.ForceRegenerate = opts.ForceRegenerate || forceRegenerate
	opts.GenerateStandalonePCB = opts.GenerateStandalonePCB || generatePCB
	opts.Strict = opts.Strict || strict

	tree, err := loadDeclaredTree(declaredPath)
	if err != nil {
		return err
	}

	report, err := orchestrator.Sync(projectRoot, tree, opts)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	printReport(report)
	os.Exit(report.ExitCode(opts.Strict))
	return nil
}

func loadOptions(projectRoot string) (config.Options, error) {
	path := configPath
	if path == "" {
		path = filepath.Join(projectRoot, "kisync.yaml")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return config.Default(), nil
		}
		return config.Options{}, err
	}
	return config.Load(path)
}

func loadDeclaredTree(path string) (*ir.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading declared IR %s: %w", path, err)
	}
	project, err := mirror.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("parsing declared IR %s: %w", path, err)
	}
	tree, err := mirror.Decode(project)
	if err != nil {
		return nil, fmt.Errorf("decoding declared IR %s: %w", path, err)
	}
	return tree, nil
}

func printReport(report *orchestrator.SyncReport) {
	for _, s := range report.Sheets {
		log.Infof("sheet %s: +%d ~%d ->%d -%d labels+%d labels-%d",
			s.SheetID, len(s.Added), len(s.Updated), len(s.Renamed), len(s.Deleted), len(s.LabelsAdded), len(s.LabelsRemoved))
		for _, a := range s.Added {
			fmt.Printf("  added      %s\n", a)
		}
		for _, u := range s.Updated {
			fmt.Printf("  updated    %s\n", u)
		}
		for _, r := range s.Renamed {
			fmt.Printf("  renamed    %s\n", r)
		}
		for _, d := range s.Deleted {
			fmt.Printf("  deleted    %s\n", d)
		}
		for _, l := range s.LabelsAdded {
			fmt.Printf("  label +    %s\n", l)
		}
		for _, l := range s.LabelsRemoved {
			fmt.Printf("  label -    %s\n", l)
		}
		for _, w := range s.Warnings {
			fmt.Printf("  warning    %s\n", w)
		}
		for _, e := range s.Errors {
			fmt.Printf("  error      %s\n", e)
		}
	}
}
