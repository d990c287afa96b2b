package mirror

import (
	"context"
	"fmt"
	"time"

	apperrors "muwi-backup/internal/errors"
)

// Object describes one mirrored copy.
type Object struct {
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Provider stores mirrored copies under flat object names.
type Provider interface {
	Put(ctx context.Context, name string, content []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]Object, error)
	Delete(ctx context.Context, names []string) error
	Describe() string
}

// NewProvider creates the provider selected by config
func NewProvider(ctx context.Context, config *Config) (Provider, error) {
	if config == nil {
		return nil, apperrors.NewAppError(apperrors.ErrorTypeValidation, "mirror configuration is required", nil)
	}

	switch config.Provider {
	case ProviderLocal:
		return NewLocalProvider(config.Local, config.Prefix)
	case ProviderS3:
		return NewS3Provider(config.S3, config.Prefix)
	case ProviderAzure:
		return NewAzureProvider(config.Azure, config.Prefix)
	case ProviderGCS:
		return NewGCSProvider(ctx, config.GCS, config.Prefix)
	default:
		return nil, apperrors.NewAppError(apperrors.ErrorTypeValidation,
			fmt.Sprintf("unsupported mirror provider: %s", config.Provider), nil)
	}
}

func storageError(message string, cause error) error {
	return apperrors.NewAppError(apperrors.ErrorTypeStorage, message, cause)
}
