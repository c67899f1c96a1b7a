package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kisync/kisync/internal/kerrors"
)

// atomicWrite writes data to path via a temp file in the same directory
// followed by a rename, so a crash or cancellation mid-write never
// corrupts the previous file (spec §5 "Cancellation", testable property
// 7 "Atomic write").
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".kisync-tmp-*")
	if err != nil {
		return kerrors.Wrap(kerrors.WriteFailure, "", path, err, "creating temp file for %s", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed; cleans up on any early return

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return kerrors.Wrap(kerrors.WriteFailure, "", path, err, "writing %s", path)
	}
	if err := tmp.Close(); err != nil {
		return kerrors.Wrap(kerrors.WriteFailure, "", path, err, "closing %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return kerrors.Wrap(kerrors.WriteFailure, "", path, err, "renaming into place %s", path)
	}
	return nil
}

func readIfExists(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, true, nil
}
