package file

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/filedex/internal/domain"
)

// fileToHash converts a domain File to a map for HSET.
func fileToHash(f *domain.File) map[string]string {
	return map[string]string{
		"id":           f.ID,
		"collection":   f.Collection,
		"name":         f.Name,
		"mime":         f.MIME,
		"size":         strconv.FormatInt(f.Size, 10),
		"blob_path":    f.BlobPath,
		"status":       string(f.Status),
		"failed_stage": string(f.FailedStage),
		"error_kind":   string(f.ErrorKind),
		"error_detail": f.ErrorDetail,
		"created_at":   strconv.FormatInt(f.CreatedAt, 10),
		"updated_at":   strconv.FormatInt(f.UpdatedAt, 10),
	}
}

// fileFromHash hydrates a domain File from an HGETALL result map.
func fileFromHash(m map[string]string) (*domain.File, error) {
	size, err := strconv.ParseInt(m["size"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid size: %w", err)
	}
	createdAt, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	updatedAt, err := strconv.ParseInt(m["updated_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid updated_at: %w", err)
	}

	return &domain.File{
		ID:          m["id"],
		Collection:  m["collection"],
		Name:        m["name"],
		MIME:        m["mime"],
		Size:        size,
		BlobPath:    m["blob_path"],
		Status:      domain.FileStatus(m["status"]),
		FailedStage: domain.Stage(m["failed_stage"]),
		ErrorKind:   domain.ErrorKind(m["error_kind"]),
		ErrorDetail: m["error_detail"],
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}
