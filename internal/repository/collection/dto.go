package collection

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/filedex/internal/domain"
)

// collectionToHash converts a domain Collection to a map for HSET.
func collectionToHash(col domain.Collection) map[string]string {
	return map[string]string{
		"name":       col.Name,
		"dim":        strconv.Itoa(col.Dim),
		"metric":     string(col.Metric),
		"provider":   col.Provider,
		"model":      col.Model,
		"created_at": strconv.FormatInt(col.CreatedAt, 10),
	}
}

// collectionFromHash hydrates a domain Collection from an HGETALL result map.
func collectionFromHash(m map[string]string) (domain.Collection, error) {
	dim, err := strconv.Atoi(m["dim"])
	if err != nil {
		return domain.Collection{}, fmt.Errorf("invalid dim: %w", err)
	}

	createdAt, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return domain.Collection{}, fmt.Errorf("invalid created_at: %w", err)
	}

	metric, err := domain.ParseMetric(m["metric"])
	if err != nil {
		return domain.Collection{}, err
	}

	return domain.Collection{
		Name:      m["name"],
		Dim:       dim,
		Metric:    metric,
		Provider:  m["provider"],
		Model:     m["model"],
		CreatedAt: createdAt,
	}, nil
}
