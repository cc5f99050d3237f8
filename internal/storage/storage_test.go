package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/smallbiznis/covercheck/internal/config"
)

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "orgs/1001/entities/acme-plumbing-llc-42/77.pdf", ObjectKey(1001, "Acme Plumbing, LLC", 42, 77))
	assert.Equal(t, "orgs/1/entities/entity-2/3.pdf", ObjectKey(1, "!!!", 2, 3))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.PresignedURL(ctx, "missing.pdf")
	require.ErrorIs(t, err, ErrNotFound)

	data := []byte("%PDF-1.7")
	require.NoError(t, store.Put(ctx, "orgs/1/a.pdf", data, "application/pdf"))
	data[0] = 'x'

	got, contentType, ok := store.Get("orgs/1/a.pdf")
	require.True(t, ok)
	assert.Equal(t, "%PDF-1.7", string(got))
	assert.Equal(t, "application/pdf", contentType)

	link, err := store.PresignedURL(ctx, "orgs/1/a.pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(link, "orgs/1/a.pdf"))

	require.NoError(t, store.Delete(ctx, "orgs/1/a.pdf"))
	assert.Equal(t, 0, store.Len())
}

func TestNewDocumentStoreFallsBackToMemory(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	store, err := NewDocumentStore(lc, config.Config{Storage: config.StorageConfig{Endpoint: "localhost:9000"}}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
}

func TestNewMinioStorePresignsWithoutNetwork(t *testing.T) {
	store, err := NewMinioStore(config.StorageConfig{
		Endpoint:   "localhost:9000",
		AccessKey:  "minio",
		SecretKey:  "minio123",
		Bucket:     "certificates",
		ExpireDays: 2,
	})
	require.NoError(t, err)

	// Presigning is computed locally when the region is known.
	store.client, err = minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("minio", "minio123", ""),
		Region: "us-east-1",
	})
	require.NoError(t, err)

	link, err := store.PresignedURL(context.Background(), "orgs/1/entities/acme-1/2.pdf")
	require.NoError(t, err)
	assert.Contains(t, link, "http://localhost:9000/certificates/orgs/1/entities/acme-1/2.pdf")
	assert.Contains(t, link, "X-Amz-Expires=172800")
}
