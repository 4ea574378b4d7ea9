package domain

import "fmt"

// KeyPrefix namespaces every store key written by this service.
const KeyPrefix = "filedex:"

// Metric is a vector distance metric. Fixed at collection creation.
type Metric string

const (
	// MetricCosine is cosine distance.
	MetricCosine Metric = "cosine"
	// MetricL2 is Euclidean distance.
	MetricL2 Metric = "l2"
	// MetricIP is inner product.
	MetricIP Metric = "ip"
)

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCosine, MetricL2, MetricIP:
		return Metric(s), nil
	case "":
		return MetricCosine, nil
	default:
		return "", fmt.Errorf("%w: unknown metric %q", ErrInvalidRequest, s)
	}
}

// Collection is an isolated vector namespace. Dimensionality, metric and the
// embedding provider/model are fixed at creation; changing any of them means
// creating a new collection.
type Collection struct {
	Name      string
	Dim       int
	Metric    Metric
	Provider  string
	Model     string
	CreatedAt int64 // unix millis
}

// NewCollection validates and builds a collection.
func NewCollection(name string, dim int, metric Metric, provider, model string, now int64) (Collection, error) {
	if name == "" || !validIdentifier(name) {
		return Collection{}, fmt.Errorf("%w: collection name must match [a-zA-Z0-9_-]+", ErrInvalidRequest)
	}
	if dim <= 0 {
		return Collection{}, fmt.Errorf("%w: dimensionality must be positive, got %d", ErrInvalidRequest, dim)
	}
	if provider == "" {
		return Collection{}, fmt.Errorf("%w: embedding provider is required", ErrInvalidRequest)
	}
	m, err := ParseMetric(string(metric))
	if err != nil {
		return Collection{}, err
	}
	return Collection{
		Name:      name,
		Dim:       dim,
		Metric:    m,
		Provider:  provider,
		Model:     model,
		CreatedAt: now,
	}, nil
}

func validIdentifier(s string) bool {
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		if !isAlpha && !isDigit && r != '_' && r != '-' {
			return false
		}
	}
	return s != ""
}
