package io

import (
	"fmt"
	"os"
	"path/filepath"
)

// MakeDirForFile creates the parent directory of filePath, creator is only
// used in the error message.
func MakeDirForFile(filePath string, creator string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create dir for %s: %w", creator, err)
	}
	return nil
}
