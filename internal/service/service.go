// Package service holds the business rules of Climate Crew.
//
// THE THREE LAYERS:
//
//	Handler (HTTP)      → parses requests, writes responses
//	Service (this)      → validates, enforces invariants, orchestrates
//	Repository (data)   → reads and writes the store
//
// Services depend on the interfaces in package repository, never on
// *sqlite.DB, so tests run against in-memory fakes and the same services back
// both the HTTP API and the crewctl command.
//
// Every public method either returns a result or a typed error from package
// apperror. Nothing here panics on a storage fault.
package service

// Recorder receives business events for metrics. internal/metrics provides
// the Prometheus implementation; services default to a no-op.
type Recorder interface {
	TaskCompleted(points int)
	TaskAssigned()
	SubmissionCreated()
	SubmissionUpvoted()
	UserRegistered()
}

type nopRecorder struct{}

func (nopRecorder) TaskCompleted(int)  {}
func (nopRecorder) TaskAssigned()      {}
func (nopRecorder) SubmissionCreated() {}
func (nopRecorder) SubmissionUpvoted() {}
func (nopRecorder) UserRegistered()    {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
