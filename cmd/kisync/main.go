// Command kisync synchronizes a declared circuit IR into KiCad schematic
// files (spec §6.3, "sync(project_root, declared_ir, options) -> SyncReport").
package main

import "github.com/kisync/kisync/cmd/kisync/cmd"

func main() {
	cmd.Execute()
}
