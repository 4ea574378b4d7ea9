package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status       Status
	Checks       map[string]CheckResult
	RunningTasks int
}

// Service coordinates health checks.
type Service struct {
	db        DBPinger
	queue     QueueStats
	providers Providers
}

// New creates a Service. queue and providers can be nil.
func New(db DBPinger, queue QueueStats, providers Providers) *Service {
	return &Service{db: db, queue: queue, providers: providers}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
	} else {
		checks["database"] = CheckOK
	}

	if s.providers != nil {
		if len(s.providers.Names()) == 0 {
			checks["providers"] = CheckError
		} else {
			checks["providers"] = CheckOK
		}
	}

	report := Report{Status: Healthy, Checks: checks}
	if s.queue != nil {
		report.RunningTasks = s.queue.Running()
	}

	for _, v := range checks {
		if v == CheckError {
			report.Status = Degraded
			break
		}
	}

	return report
}
