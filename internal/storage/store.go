// Package storage keeps the uploaded certificate documents.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/gosimple/slug"
)

// ErrNotFound is returned when an object key has no stored document.
var ErrNotFound = errors.New("storage: object not found")

// DocumentStore persists certificate PDFs by object key.
type DocumentStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// PresignedURL returns a time-limited download URL for key.
	PresignedURL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// ObjectKey lays documents out per organization and entity so a bucket
// listing stays readable:
//
//	orgs/1001/entities/acme-plumbing-llc-42/77.pdf
func ObjectKey(orgID int64, entityName string, entityID, certificateID int64) string {
	name := slug.Make(entityName)
	if name == "" {
		name = "entity"
	}
	return fmt.Sprintf("orgs/%d/entities/%s-%d/%d.pdf", orgID, name, entityID, certificateID)
}
