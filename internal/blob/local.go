package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/cascade/internal/ir"
)

// LocalCleaner removes files below a root directory.
type LocalCleaner struct {
	root  string
	model *ir.Model
}

// NewLocalCleaner creates a cleaner for files stored under root.
func NewLocalCleaner(root string, model *ir.Model) *LocalCleaner {
	return &LocalCleaner{root: root, model: model}
}

// Clean removes every file of the deleted rows. Files already gone are not
// an error.
func (c *LocalCleaner) Clean(ctx context.Context, deleted map[string][]int64) error {
	var errs []error
	for _, key := range Keys(c.model, deleted) {
		if err := ctx.Err(); err != nil {
			return err
		}
		path, err := c.path(key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.RemoveAll(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// path resolves key below root and rejects keys escaping it.
func (c *LocalCleaner) path(key string) (string, error) {
	path := filepath.Join(c.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(c.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("blob key %q outside %s", key, c.root)
	}
	return path, nil
}
