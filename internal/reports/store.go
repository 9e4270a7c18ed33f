package reports

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrExportNotFound indicates an unknown or expired export id.
var ErrExportNotFound = errors.New("reports: export not found")

// ExportStatus is the lifecycle state of an asynchronous export.
type ExportStatus string

const (
	ExportPending ExportStatus = "pending"
	ExportReady   ExportStatus = "ready"
	ExportFailed  ExportStatus = "failed"
)

// ExportRecord describes an asynchronous export.
type ExportRecord struct {
	ID          string       `json:"id"`
	Status      ExportStatus `json:"status"`
	Kind        Kind         `json:"kind"`
	Format      OutputFormat `json:"format"`
	Name        string       `json:"name,omitempty"`
	ContentType string       `json:"contentType,omitempty"`
	Error       string       `json:"error,omitempty"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// ArtifactStore keeps finished exports in Redis until they expire.
type ArtifactStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewArtifactStore builds a store whose entries live for ttl.
func NewArtifactStore(client *redis.Client, ttl time.Duration) *ArtifactStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ArtifactStore{client: client, ttl: ttl}
}

func metaKey(id string) string { return "shopreports:export:" + id + ":meta" }
func dataKey(id string) string { return "shopreports:export:" + id + ":data" }

// MarkPending records a queued export.
func (s *ArtifactStore) MarkPending(ctx context.Context, id string, req Request) error {
	return s.putMeta(ctx, ExportRecord{ID: id, Status: ExportPending, Kind: req.Kind, Format: req.Format})
}

// Complete stores the artifact bytes and flips the record to ready.
func (s *ArtifactStore) Complete(ctx context.Context, id string, art Artifact) error {
	record := ExportRecord{
		ID:          id,
		Status:      ExportReady,
		Format:      art.Format,
		Name:        art.Name,
		ContentType: art.ContentType,
	}
	if prev, err := s.record(ctx, id); err == nil {
		record.Kind = prev.Kind
	}
	payload, err := s.encode(record)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, dataKey(id), art.Data, s.ttl)
		pipe.Set(ctx, metaKey(id), payload, s.ttl)
		return nil
	})
	return err
}

// Fail records a terminal failure with a user facing message.
func (s *ArtifactStore) Fail(ctx context.Context, id string, message string) error {
	record := ExportRecord{ID: id, Status: ExportFailed, Error: message}
	if prev, err := s.record(ctx, id); err == nil {
		record.Kind, record.Format = prev.Kind, prev.Format
	}
	return s.putMeta(ctx, record)
}

// Get returns the export record and, once ready, its bytes.
func (s *ArtifactStore) Get(ctx context.Context, id string) (ExportRecord, []byte, error) {
	record, err := s.record(ctx, id)
	if err != nil {
		return ExportRecord{}, nil, err
	}
	if record.Status != ExportReady {
		return record, nil, nil
	}
	data, err := s.client.Get(ctx, dataKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ExportRecord{}, nil, ErrExportNotFound
	}
	if err != nil {
		return ExportRecord{}, nil, err
	}
	return record, data, nil
}

func (s *ArtifactStore) record(ctx context.Context, id string) (ExportRecord, error) {
	raw, err := s.client.Get(ctx, metaKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ExportRecord{}, ErrExportNotFound
	}
	if err != nil {
		return ExportRecord{}, err
	}
	var record ExportRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return ExportRecord{}, err
	}
	return record, nil
}

func (s *ArtifactStore) putMeta(ctx context.Context, record ExportRecord) error {
	payload, err := s.encode(record)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, metaKey(record.ID), payload, s.ttl).Err()
}

func (s *ArtifactStore) encode(record ExportRecord) ([]byte, error) {
	record.UpdatedAt = time.Now().UTC()
	return json.Marshal(record)
}
