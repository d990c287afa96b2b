package backup

import (
	"context"
	"time"

	"github.com/juju/clock"
)

// BrowserPrimitives are the user-driven transfer operations of a sandboxed environment.
type BrowserPrimitives interface {
	// Download offers content to the user under the given file name.
	Download(ctx context.Context, name string, content []byte) error
	// PickFile lets the user choose a file and returns its content. nil means cancelled.
	PickFile(ctx context.Context) ([]byte, error)
}

type sandboxBackend struct {
	primitives BrowserPrimitives
	clock      clock.Clock
}

// NewSandboxBackend creates a Backend limited to downloads and uploads.
func NewSandboxBackend(primitives BrowserPrimitives, clk clock.Clock) Backend {
	if clk == nil {
		clk = clock.WallClock
	}
	return &sandboxBackend{primitives: primitives, clock: clk}
}

// DownloadFileName returns the name offered for a snapshot saved at t.
func DownloadFileName(t time.Time) string {
	return "muwi-backup-" + formatBackupDate(t) + ".json"
}

func (b *sandboxBackend) Save(ctx context.Context, content []byte) (string, error) {
	name := DownloadFileName(b.clock.Now())
	if err := b.primitives.Download(ctx, name, content); err != nil {
		return "", NewIOError(messageOr(err, MsgUnknownSaveError), err)
	}
	return name, nil
}

// Load surfaces ingest rejections and collapses any other failed read into "nothing selected".
func (b *sandboxBackend) Load(ctx context.Context) ([]byte, error) {
	content, err := b.primitives.PickFile(ctx)
	if err != nil {
		if KindOf(err) == ErrorKindValidation {
			return nil, err
		}
		return nil, nil
	}
	return content, nil
}
