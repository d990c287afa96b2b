package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"muwi-backup/internal/backup"
)

// uploadOverhead leaves room for multipart boundaries and headers around a
// snapshot of the maximum size.
const uploadOverhead = 1 << 20

type exchangeKey struct{}

type exchange struct {
	w       http.ResponseWriter
	r       *http.Request
	written bool
}

func withExchange(ctx context.Context, w http.ResponseWriter, r *http.Request) (context.Context, *exchange) {
	ex := &exchange{w: w, r: r}
	return context.WithValue(ctx, exchangeKey{}, ex), ex
}

func exchangeFrom(ctx context.Context) (*exchange, error) {
	ex, ok := ctx.Value(exchangeKey{}).(*exchange)
	if !ok || ex == nil {
		return nil, errors.New("no HTTP request in context")
	}
	return ex, nil
}

// Primitives implements backup.BrowserPrimitives over the HTTP request carried
// in the context: a download becomes the response body and a picked file is the
// "file" part of a multipart upload.
type Primitives struct{}

var _ backup.BrowserPrimitives = Primitives{}

// Download writes content as an attachment named name.
func (Primitives) Download(ctx context.Context, name string, content []byte) error {
	ex, err := exchangeFrom(ctx)
	if err != nil {
		return err
	}

	header := ex.w.Header()
	header.Set("Content-Type", "application/json")
	header.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	header.Set("Cache-Control", "no-store")
	ex.w.WriteHeader(http.StatusOK)
	ex.written = true

	if _, err := ex.w.Write(content); err != nil {
		return fmt.Errorf("failed to write download: %w", err)
	}
	return nil
}

// PickFile reads the uploaded "file" part. A request without one is a cancelled pick.
func (Primitives) PickFile(ctx context.Context) ([]byte, error) {
	ex, err := exchangeFrom(ctx)
	if err != nil {
		return nil, err
	}

	ex.r.Body = http.MaxBytesReader(ex.w, ex.r.Body, backup.MaxBackupFileSize+uploadOverhead)
	file, header, err := ex.r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, backup.NewValidationError(backup.MsgFileTooLarge, err)
		}
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	if header.Size > backup.MaxBackupFileSize {
		return nil, backup.NewValidationError(backup.MsgFileTooLarge, nil)
	}

	content, err := io.ReadAll(io.LimitReader(file, backup.MaxBackupFileSize+1))
	if err != nil {
		return nil, err
	}
	if len(content) > backup.MaxBackupFileSize {
		return nil, backup.NewValidationError(backup.MsgFileTooLarge, nil)
	}
	return content, nil
}
