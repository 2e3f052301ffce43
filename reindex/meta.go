package reindex

import (
	"context"
	"time"

	"github.com/poiesic/sift/core"
	"github.com/poiesic/sift/storage"
)

// NeedsReindex reports whether the indices of a store must be rebuilt: its
// metadata names another schema version, or it holds records but no metadata.
func NeedsReindex(ctx context.Context, meta storage.MetaRepository, records storage.RecordRepository) (bool, error) {
	m, err := meta.LoadMeta(ctx)
	if err != nil {
		return false, err
	}
	if m != nil {
		return m.SchemaVersion != core.IndexSchemaVersion, nil
	}
	n, err := records.CountRecords(ctx)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// StampEmpty saves current metadata for a store that has neither records nor
// metadata, so a store created by this version never needs a rebuild.
func StampEmpty(ctx context.Context, meta storage.MetaRepository, records storage.RecordRepository) error {
	m, err := meta.LoadMeta(ctx)
	if err != nil || m != nil {
		return err
	}
	n, err := records.CountRecords(ctx)
	if err != nil || n > 0 {
		return err
	}
	return meta.SaveMeta(ctx, &core.IndexMeta{
		SchemaVersion: core.IndexSchemaVersion,
		RebuiltAt:     time.Now().UTC(),
	})
}
