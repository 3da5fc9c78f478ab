package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/islandsafe/patrolplan/internal/domain"
	"github.com/rs/zerolog"
)

const archiveTimeFormat = "20060102-150405"

// ObjectStore is the bucket surface the archive needs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, metadata map[string]string) error
	List(ctx context.Context, prefix string) ([]types.Object, error)
	Delete(ctx context.Context, key string) error
}

// ArchiveMetadata is written next to the snapshot inside each archive.
type ArchiveMetadata struct {
	CreatedAt time.Time `json:"created_at"`
	ModelType string    `json:"model_type"`
	Checksum  string    `json:"checksum"`
	Features  []string  `json:"features"`
	VersionID int64     `json:"version_id"`
	Accuracy  float64   `json:"accuracy"`
	SizeBytes int       `json:"size_bytes"`
}

// ArchiveInfo describes one stored archive.
type ArchiveInfo struct {
	CreatedAt time.Time `json:"created_at"`
	Key       string    `json:"key"`
	VersionID int64     `json:"version_id"`
	SizeBytes int64     `json:"size_bytes"`
}

// ModelArchive uploads each trained model as a tar.gz holding the msgpack
// snapshot and a metadata file.
type ModelArchive struct {
	store  ObjectStore
	prefix string
	keep   int
	log    zerolog.Logger
}

// NewModelArchive creates an archive under prefix. keep > 0 deletes all
// but the newest keep archives after each upload.
func NewModelArchive(store ObjectStore, prefix string, keep int, log zerolog.Logger) *ModelArchive {
	return &ModelArchive{
		store:  store,
		prefix: prefix,
		keep:   keep,
		log:    log.With().Str("service", "model_archive").Logger(),
	}
}

// Archive uploads v.
func (a *ModelArchive) Archive(ctx context.Context, v domain.ModelVersion) error {
	if len(v.Snapshot) == 0 {
		return fmt.Errorf("model version %d has no snapshot", v.ID)
	}
	start := time.Now()

	meta := ArchiveMetadata{
		CreatedAt: v.CreatedAt.UTC(),
		ModelType: v.ModelType,
		Checksum:  checksum(v.Snapshot),
		Features:  v.Features,
		VersionID: v.ID,
		Accuracy:  v.Accuracy,
		SizeBytes: len(v.Snapshot),
	}
	body, err := buildArchive(v.Snapshot, meta)
	if err != nil {
		return fmt.Errorf("failed to build archive for version %d: %w", v.ID, err)
	}

	key := a.keyFor(v)
	err = a.store.Upload(ctx, key, bytes.NewReader(body), map[string]string{
		"version-id": strconv.FormatInt(v.ID, 10),
		"checksum":   meta.Checksum,
	})
	if err != nil {
		return err
	}

	a.log.Info().
		Str("key", key).
		Int("size_bytes", len(body)).
		Dur("duration_ms", time.Since(start)).
		Msg("Model archived")

	if a.keep > 0 {
		if err := a.Rotate(ctx, a.keep); err != nil {
			a.log.Warn().Err(err).Msg("Archive rotation failed")
		}
	}
	return nil
}

func (a *ModelArchive) keyFor(v domain.ModelVersion) string {
	return fmt.Sprintf("%smodel-%d-%s.tar.gz", a.prefix, v.ID, v.CreatedAt.UTC().Format(archiveTimeFormat))
}

// List returns stored archives newest first.
func (a *ModelArchive) List(ctx context.Context) ([]ArchiveInfo, error) {
	objects, err := a.store.List(ctx, a.prefix+"model-")
	if err != nil {
		return nil, err
	}

	out := make([]ArchiveInfo, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}
		info, ok := parseArchiveKey(strings.TrimPrefix(*obj.Key, a.prefix))
		if !ok {
			a.log.Warn().Str("key", *obj.Key).Msg("Skipping unrecognised archive key")
			continue
		}
		info.Key = *obj.Key
		if obj.Size != nil {
			info.SizeBytes = *obj.Size
		}
		out = append(out, info)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].VersionID > out[j].VersionID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Rotate deletes all but the newest keep archives.
func (a *ModelArchive) Rotate(ctx context.Context, keep int) error {
	list, err := a.List(ctx)
	if err != nil {
		return err
	}
	if len(list) <= keep {
		return nil
	}

	deleted := 0
	for _, info := range list[keep:] {
		if err := a.store.Delete(ctx, info.Key); err != nil {
			a.log.Error().Err(err).Str("key", info.Key).Msg("Failed to delete old archive")
			continue
		}
		deleted++
	}
	a.log.Info().Int("deleted", deleted).Int("remaining", len(list)-deleted).Msg("Archive rotation completed")
	return nil
}

// parseArchiveKey reads "model-<id>-<yyyymmdd-hhmmss>.tar.gz".
func parseArchiveKey(name string) (ArchiveInfo, bool) {
	if !strings.HasPrefix(name, "model-") || !strings.HasSuffix(name, ".tar.gz") {
		return ArchiveInfo{}, false
	}
	rest := strings.TrimSuffix(strings.TrimPrefix(name, "model-"), ".tar.gz")
	idPart, ts, ok := strings.Cut(rest, "-")
	if !ok {
		return ArchiveInfo{}, false
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return ArchiveInfo{}, false
	}
	created, err := time.Parse(archiveTimeFormat, ts)
	if err != nil {
		return ArchiveInfo{}, false
	}
	return ArchiveInfo{CreatedAt: created, VersionID: id}, true
}

func checksum(b []byte) string {
	return fmt.Sprintf("sha256:%x", sha256.Sum256(b))
}

func buildArchive(snapshot []byte, meta ArchiveMetadata) ([]byte, error) {
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	files := []struct {
		name string
		data []byte
	}{
		{"snapshot.msgpack", snapshot},
		{"metadata.json", metaJSON},
	}
	for _, f := range files {
		hdr := &tar.Header{
			Name:    f.name,
			Size:    int64(len(f.data)),
			Mode:    0o644,
			ModTime: meta.CreatedAt,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := tw.Write(f.data); err != nil {
			return nil, err
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadArchive extracts the snapshot and metadata from an archive built
// by Archive and verifies the checksum.
func ReadArchive(r io.Reader) ([]byte, *ArchiveMetadata, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer gz.Close()

	var (
		snapshot []byte
		meta     *ArchiveMetadata
	)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read archive: %w", err)
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", hdr.Name, err)
		}
		switch hdr.Name {
		case "snapshot.msgpack":
			snapshot = data
		case "metadata.json":
			meta = &ArchiveMetadata{}
			if err := json.Unmarshal(data, meta); err != nil {
				return nil, nil, fmt.Errorf("failed to decode metadata: %w", err)
			}
		}
	}

	if snapshot == nil || meta == nil {
		return nil, nil, fmt.Errorf("archive is missing snapshot or metadata")
	}
	if got := checksum(snapshot); got != meta.Checksum {
		return nil, nil, fmt.Errorf("checksum mismatch: got %s, want %s", got, meta.Checksum)
	}
	return snapshot, meta, nil
}
