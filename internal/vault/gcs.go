// Path: internal/vault/gcs.go
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/AhmadSaeedZaidi/viralvelocity-sub000/internal/config"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSVault stores artifacts as objects in a Cloud Storage bucket.
type GCSVault struct {
	client *storage.Client
	bucket *storage.BucketHandle
	name   string
}

// NewGCSVault connects to the configured bucket. Credentials come from the
// configured service-account file, or ambient credentials when unset.
func NewGCSVault(ctx context.Context, cfg config.VaultConfig) (*GCSVault, error) {
	if cfg.GCSBucket == "" {
		return nil, fmt.Errorf("GCS_BUCKET_NAME required for gcs vault")
	}

	var opts []option.ClientOption
	if cfg.GCSCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.GCSCredentials))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &GCSVault{
		client: client,
		bucket: client.Bucket(cfg.GCSBucket),
		name:   cfg.GCSBucket,
	}, nil
}

// Close releases the underlying client.
func (v *GCSVault) Close(context.Context) error {
	return v.client.Close()
}

// AppendMetrics implements Vault.
func (v *GCSVault) AppendMetrics(ctx context.Context, rows []MetricRow, date string) error {
	return appendMetrics(ctx, v, rows, date)
}

// StoreJSON implements Vault.
func (v *GCSVault) StoreJSON(ctx context.Context, path string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal artifact %s: %w", path, err)
	}
	_, err = v.StoreBinary(ctx, path, payload, "application/json")
	return err
}

// FetchJSON implements Vault.
func (v *GCSVault) FetchJSON(ctx context.Context, path string, out any) error {
	data, err := v.FetchBinary(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal artifact %s: %w", path, err)
	}
	return nil
}

// List implements Vault.
func (v *GCSVault) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	it := v.bucket.Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", prefix, err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// StoreBinary implements Vault.
func (v *GCSVault) StoreBinary(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	w := v.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close object %s: %w", path, err)
	}
	return fmt.Sprintf("gs://%s/%s", v.name, path), nil
}

// FetchBinary implements Vault.
func (v *GCSVault) FetchBinary(ctx context.Context, path string) ([]byte, error) {
	r, err := v.bucket.Object(path).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open object %s: %w", path, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", path, err)
	}
	return data, nil
}
