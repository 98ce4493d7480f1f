package service

// Run status values reported through GetProgress.
const (
	StatusRunning   = "running"
	StatusComplete  = "complete"
	StatusCancelled = "cancelled"
)

// Progress reports how far a bulk run has advanced.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Status  string `json:"status"`
}

// GetProgress returns the progress of a bulk run by request id.
func (s *Service) GetProgress(requestID string) (Progress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.progress[requestID]
	if !ok {
		return Progress{}, false
	}
	return *p, true
}

// GetReport returns the finished report for a bulk run, if available.
func (s *Service) GetReport(requestID string) (*Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[requestID]
	return r, ok
}

func (s *Service) initProgress(requestID string, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[requestID] = &Progress{Total: total, Status: StatusRunning}
}

// advanceProgress increments the counter and returns a snapshot for callbacks.
func (s *Service) advanceProgress(requestID string) Progress {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.progress[requestID]
	p.Current++
	return *p
}

func (s *Service) finishProgress(requestID, status string, report *Report) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.progress[requestID].Status = status
	s.reports[requestID] = report
}
