package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"procura/internal/core/id"
	"procura/internal/domain/audit"
)

// CompressionAlgo specifies the compression algorithm used for a stored
// snapshot.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditRecord is a stored audit log row.
type AuditRecord struct {
	ID                 id.ID           `db:"id"`
	EntityType         string          `db:"entity_type"`
	EntityID           id.ID           `db:"entity_id"`
	Action             string          `db:"action"`
	Actor              string          `db:"actor"`
	Snapshot           json.RawMessage `db:"snapshot"`
	SnapshotCompressed []byte          `db:"snapshot_compressed"`
	CompressionAlgo    CompressionAlgo `db:"compression_algo"`
	CreatedAt          time.Time       `db:"created_at"`
}

// AuditService implements audit.Recorder with zstd compression for large
// snapshots. Writes join the ambient transaction, so an audit row never
// survives a rolled-back operation.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ audit.Recorder = (*AuditService)(nil)

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024, // 10KB
	}, nil
}

// Record implements audit.Recorder.
func (s *AuditService) Record(ctx context.Context, e audit.Entry) error {
	snapshot, err := json.Marshal(e.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	rec := AuditRecord{
		ID:              id.New(),
		EntityType:      e.EntityType,
		EntityID:        e.EntityID,
		Action:          e.Action,
		Actor:           e.Actor,
		Snapshot:        snapshot,
		CompressionAlgo: CompressionNone,
		CreatedAt:       time.Now().UTC(),
	}

	if len(rec.Snapshot) > s.compressThreshold {
		rec.SnapshotCompressed = s.encoder.EncodeAll(rec.Snapshot, nil)
		rec.Snapshot = nil
		rec.CompressionAlgo = CompressionZstd
	}

	const sql = `
		INSERT INTO sys_audit_log (
			id, entity_type, entity_id, action, actor,
			snapshot, snapshot_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	querier := s.txManager.GetQuerier(ctx)
	_, err = querier.Exec(ctx, sql,
		rec.ID, rec.EntityType, rec.EntityID, rec.Action, rec.Actor,
		rec.Snapshot, rec.SnapshotCompressed, rec.CompressionAlgo, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}

	return nil
}

// GetEntityHistory retrieves audit history for an entity, newest first.
// Compressed snapshots are decompressed transparently.
func (s *AuditService) GetEntityHistory(
	ctx context.Context,
	entityType string,
	entityID id.ID,
	limit int,
) ([]AuditRecord, error) {
	const sql = `
		SELECT id, entity_type, entity_id, action, actor,
		       snapshot, snapshot_compressed, compression_algo, created_at
		FROM sys_audit_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, sql, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []AuditRecord
	for rows.Next() {
		var rec AuditRecord
		err := rows.Scan(
			&rec.ID, &rec.EntityType, &rec.EntityID, &rec.Action, &rec.Actor,
			&rec.Snapshot, &rec.SnapshotCompressed, &rec.CompressionAlgo,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}

		if rec.CompressionAlgo == CompressionZstd && len(rec.SnapshotCompressed) > 0 {
			decompressed, err := s.decoder.DecodeAll(rec.SnapshotCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress snapshot: %w", err)
			}
			rec.Snapshot = decompressed
			rec.SnapshotCompressed = nil
		}

		records = append(records, rec)
	}

	return records, rows.Err()
}
