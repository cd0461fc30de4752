package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aldoetobex/legal-consult-backend/pkg/config"
)

// Provider is a remote object store. Upload returns a URL clients can fetch
// the object from; key doubles as the storage id used for deletion.
type Provider interface {
	Name() string
	Upload(ctx context.Context, key string, r io.Reader, contentType string, size int64) (string, error)
	Delete(ctx context.Context, key string) error
}

// Provider names accepted in STORAGE_PROVIDER.
const (
	ProviderLocal    = "local"
	ProviderSupabase = "supabase"
	ProviderS3       = "s3"
)

// NewProvider builds the provider selected by cfg.StorageProvider.
func NewProvider(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.StorageProvider {
	case ProviderLocal, "":
		return NewLocal(cfg.LocalStorageDir, cfg.LocalStorageBaseURL)
	case ProviderSupabase:
		return NewSupabase(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)
	case ProviderS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			AccessKey: cfg.AWSAccessKeyID,
			SecretKey: cfg.AWSSecretAccessKey,
		})
	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.StorageProvider)
	}
}
