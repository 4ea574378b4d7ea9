package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/filedex/internal/db"
	"github.com/kailas-cloud/filedex/internal/domain"
)

// segmentRow is the JSON-serializable representation of a parsed segment.
type segmentRow struct {
	Ordinal int    `json:"ordinal"`
	Text    string `json:"text"`
	Page    int    `json:"page"`
}

// SaveSegments persists the parse stage output as one JSON value. A re-drive
// from the chunk stage reads this instead of re-parsing the blob.
func (r *Repo) SaveSegments(ctx context.Context, fileID string, segments []domain.Segment) error {
	rows := make([]segmentRow, len(segments))
	for i, s := range segments {
		rows[i] = segmentRow{Ordinal: s.Ordinal, Text: s.Text, Page: s.Page}
	}

	data, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}
	if err := r.store.Set(ctx, segmentsKey(fileID), data); err != nil {
		return fmt.Errorf("set segments %s: %w", fileID, err)
	}
	return nil
}

// GetSegments returns the persisted parse output.
func (r *Repo) GetSegments(ctx context.Context, fileID string) ([]domain.Segment, error) {
	data, err := r.store.Get(ctx, segmentsKey(fileID))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get segments %s: %w", fileID, err)
	}

	var rows []segmentRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal segments %s: %w", fileID, err)
	}

	segments := make([]domain.Segment, len(rows))
	for i, row := range rows {
		segments[i] = domain.Segment{Ordinal: row.Ordinal, Text: row.Text, Page: row.Page}
	}
	return segments, nil
}

// DeleteSegments removes the persisted parse output.
func (r *Repo) DeleteSegments(ctx context.Context, fileID string) error {
	if err := r.store.Del(ctx, segmentsKey(fileID)); err != nil {
		return fmt.Errorf("del segments %s: %w", fileID, err)
	}
	return nil
}

func segmentsKey(fileID string) string {
	return fmt.Sprintf("%sfile:%s:segments", domain.KeyPrefix, fileID)
}
