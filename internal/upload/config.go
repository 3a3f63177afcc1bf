package upload

import (
	"fmt"
	"path"

	"github.com/maxg/didit-sub000/internal/config"
)

// Archive uploader for the configured backend, wrapped in retries. Nil when archiving is off.
func FromConfig(cfg *config.ArchiveConfig) (Uploader, error) {
	switch cfg.Backend {
	case config.ArchiveNone:
		return nil, nil
	case config.ArchiveS3:
		if cfg.S3 == nil {
			return nil, fmt.Errorf("archive backend %q requires archive.s3", cfg.Backend)
		}
		u, err := NewMinioUploader(cfg.S3.Endpoint, cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, cfg.S3.SSLEnabled, cfg.S3.BucketName)
		if err != nil {
			return nil, err
		}
		return NewRetryUploader(u), nil
	case config.ArchiveAzure:
		if cfg.Azure == nil {
			return nil, fmt.Errorf("archive backend %q requires archive.azure", cfg.Backend)
		}
		u, err := NewAzureUploader(cfg.Azure.AccountName, cfg.Azure.AccountKey, cfg.Azure.ServiceURL, cfg.Azure.Container)
		if err != nil {
			return nil, err
		}
		return NewRetryUploader(u), nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".json":
		return "application/json"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
