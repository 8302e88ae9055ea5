// Package sigstore abstracts the blob store holding signature images. The
// engine needs a single upsert-style Put; the concrete backend is a
// collaborator, not part of the lifecycle rules.
package sigstore

import (
	"context"
	"fmt"
)

type Client interface {
	// Put stores data at bucket/path with upsert semantics and returns the
	// public URL. Retrying with the same inputs overwrites the object.
	Put(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error)
}

// ObjectPath is the deterministic per-service path, which makes a retried
// upload land on the same object.
func ObjectPath(serviceID uint64) string {
	return fmt.Sprintf("service-%d.png", serviceID)
}
