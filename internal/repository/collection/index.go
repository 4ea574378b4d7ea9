package collection

import (
	"github.com/kailas-cloud/filedex/internal/db"
	"github.com/kailas-cloud/filedex/internal/domain"
)

// buildIndex creates the document IndexDefinition for a collection. The
// schema is fixed: documents carry a file tag, an ordinal, an embedded flag
// and the vector itself.
func buildIndex(col domain.Collection, hnsw HNSWConfig) *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:     IndexName(col.Name),
		Prefixes: []string{DocPrefix(col.Name)},
		Fields: []db.IndexField{
			{Name: "file_id", Type: db.IndexFieldTag},
			{Name: "embedded", Type: db.IndexFieldTag},
			{Name: "ordinal", Type: db.IndexFieldNumeric},
			{
				Name:              "__vector",
				Alias:             "vector",
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         col.Dim,
				VectorDistance:    distanceFor(col.Metric),
				VectorM:           hnsw.M,
				VectorEFConstruct: hnsw.EFConstruct,
			},
		},
	}
}

// distanceFor maps the collection metric onto the FT distance metric.
func distanceFor(m domain.Metric) db.DistanceMetric {
	switch m {
	case domain.MetricL2:
		return db.DistanceL2
	case domain.MetricIP:
		return db.DistanceIP
	default:
		return db.DistanceCosine
	}
}
