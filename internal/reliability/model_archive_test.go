package reliability

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	objects map[string][]byte
	meta    map[string]map[string]string
	failPut bool
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, meta: map[string]map[string]string{}}
}

func (m *memStore) Upload(_ context.Context, key string, body io.Reader, metadata map[string]string) error {
	if m.failPut {
		return errors.New("access denied")
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[key] = b
	m.meta[key] = metadata
	return nil
}

func (m *memStore) List(_ context.Context, prefix string) ([]types.Object, error) {
	var out []types.Object
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(v)))})
		}
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func version(id int64, at time.Time) domain.ModelVersion {
	return domain.ModelVersion{
		ID:        id,
		ModelType: "ridge_severity",
		Accuracy:  0.4,
		Features:  []string{"confidence", "is_verified"},
		Snapshot:  []byte{0x93, 0x01, 0x02, 0x03},
		CreatedAt: at,
	}
}

func TestModelArchive_ArchiveAndRead(t *testing.T) {
	store := newMemStore()
	a := NewModelArchive(store, "models/", 0, zerolog.Nop())
	at := time.Date(2026, 3, 10, 14, 5, 9, 0, time.UTC)

	require.NoError(t, a.Archive(context.Background(), version(7, at)))

	key := "models/model-7-20260310-140509.tar.gz"
	require.Contains(t, store.objects, key)
	assert.Equal(t, "7", store.meta[key]["version-id"])

	snapshot, meta, err := ReadArchive(bytes.NewReader(store.objects[key]))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x93, 0x01, 0x02, 0x03}, snapshot)
	assert.Equal(t, int64(7), meta.VersionID)
	assert.Equal(t, checksum(snapshot), meta.Checksum)
	assert.Equal(t, []string{"confidence", "is_verified"}, meta.Features)
}

func TestModelArchive_RotateKeepsNewest(t *testing.T) {
	store := newMemStore()
	a := NewModelArchive(store, "models/", 2, zerolog.Nop())
	base := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	for i := int64(1); i <= 4; i++ {
		require.NoError(t, a.Archive(context.Background(), version(i, base.Add(time.Duration(i)*time.Hour))))
	}
	store.objects["models/notes.txt"] = []byte("x")

	list, err := a.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(4), list[0].VersionID)
	assert.Equal(t, int64(3), list[1].VersionID)
}

func TestModelArchive_Errors(t *testing.T) {
	store := newMemStore()
	a := NewModelArchive(store, "models/", 0, zerolog.Nop())

	v := version(1, time.Now())
	v.Snapshot = nil
	assert.Error(t, a.Archive(context.Background(), v))

	store.failPut = true
	assert.Error(t, a.Archive(context.Background(), version(2, time.Now())))
}

func TestReadArchive_DetectsTampering(t *testing.T) {
	body, err := buildArchive([]byte{1, 2, 3}, ArchiveMetadata{Checksum: "sha256:00"})
	require.NoError(t, err)
	_, _, err = ReadArchive(bytes.NewReader(body))
	assert.ErrorContains(t, err, "checksum mismatch")
}

func TestParseArchiveKey(t *testing.T) {
	info, ok := parseArchiveKey("model-12-20260101-000000.tar.gz")
	require.True(t, ok)
	assert.Equal(t, int64(12), info.VersionID)

	for _, bad := range []string{"model-x-20260101-000000.tar.gz", "model-1.tar.gz", "backup.tar.gz"} {
		_, ok := parseArchiveKey(bad)
		assert.False(t, ok, bad)
	}
}
