package mirror

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	apperrors "muwi-backup/internal/errors"
)

// LocalProvider mirrors copies into a directory, typically on another volume.
type LocalProvider struct {
	dir         string
	permissions os.FileMode
}

// NewLocalProvider creates a LocalProvider rooted at BasePath/prefix
func NewLocalProvider(config *LocalConfig, prefix string) (*LocalProvider, error) {
	if config == nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeValidation, "local mirror configuration is required", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeValidation, "invalid local mirror configuration", err)
	}

	permissions := config.Permissions
	if permissions == 0 {
		permissions = 0o755
	}

	provider := &LocalProvider{
		dir:         filepath.Join(config.BasePath, filepath.FromSlash(strings.Trim(prefix, "/"))),
		permissions: permissions,
	}
	if err := os.MkdirAll(provider.dir, permissions); err != nil {
		return nil, storageError("failed to create mirror directory", err)
	}
	return provider, nil
}

// Put writes content atomically through a temporary file
func (lp *LocalProvider) Put(ctx context.Context, name string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(lp.dir, filepath.Base(name))
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return storageError("failed to write mirror copy", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return storageError("failed to finalize mirror copy", err)
	}
	return nil
}

// Get reads a mirrored copy
func (lp *LocalProvider) Get(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(filepath.Join(lp.dir, filepath.Base(name)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewAppError(apperrors.ErrorTypeValidation, "mirror copy not found: "+name, err)
		}
		return nil, storageError("failed to read mirror copy", err)
	}
	return content, nil
}

// List returns the mirrored copies in the directory
func (lp *LocalProvider) List(ctx context.Context) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(lp.dir)
	if err != nil {
		return nil, storageError("failed to list mirror directory", err)
	}

	var objects []Object
	for _, entry := range entries {
		if entry.IsDir() || strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		objects = append(objects, Object{Name: entry.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return objects, nil
}

// Delete removes the named copies; missing files are ignored
func (lp *LocalProvider) Delete(ctx context.Context, names []string) error {
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.Remove(filepath.Join(lp.dir, filepath.Base(name))); err != nil && !os.IsNotExist(err) {
			return storageError("failed to delete mirror copy", err)
		}
	}
	return nil
}

// Describe returns the mirror directory
func (lp *LocalProvider) Describe() string {
	return "local:" + lp.dir
}
