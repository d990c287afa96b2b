package host

import (
	"context"
	"os"
	"path/filepath"
)

// Picker stands in for the native file dialogs of a desktop shell.
// Every method returns "" when the user cancels.
type Picker interface {
	PickDirectory(ctx context.Context) (string, error)
	PickSaveFile(ctx context.Context, defaultName string) (string, error)
	PickOpenFile(ctx context.Context) (string, error)
}

// StaticPicker answers every dialog with preconfigured paths, as the CLI does
// with its flags.
type StaticPicker struct {
	Directory string
	SavePath  string
	OpenPath  string
}

func (p StaticPicker) PickDirectory(context.Context) (string, error) {
	return p.Directory, nil
}

// PickSaveFile returns SavePath, or defaultName inside it when SavePath is a directory.
func (p StaticPicker) PickSaveFile(_ context.Context, defaultName string) (string, error) {
	if p.SavePath == "" {
		return "", nil
	}
	if info, err := os.Stat(p.SavePath); err == nil && info.IsDir() {
		return filepath.Join(p.SavePath, defaultName), nil
	}
	return p.SavePath, nil
}

func (p StaticPicker) PickOpenFile(context.Context) (string, error) {
	return p.OpenPath, nil
}
