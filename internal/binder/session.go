package binder

import "github.com/vedsharma/analyze-request/internal/model"

// Session is the per-user state the binder works against: the current
// selection and the most recent execution.
type Session struct {
	SelectedID string
	LastSent   *model.RequestSpec
	LastResult *model.ResponseRecord
}

// ResponseFor returns the last result if it was produced by exactly req,
// otherwise nil.
func (s *Session) ResponseFor(req model.RequestSpec) *model.ResponseRecord {
	if s == nil || s.LastSent == nil || s.LastResult == nil {
		return nil
	}
	if !s.LastSent.Equal(req) {
		return nil
	}
	res := s.LastResult.Live()
	return &res
}

// Record remembers an execution
func (s *Session) Record(req model.RequestSpec, res model.ResponseRecord) {
	sent := req.Clone()
	s.LastSent = &sent
	s.LastResult = &res
}

// ClearSelection drops the selected id
func (s *Session) ClearSelection() {
	s.SelectedID = ""
}
