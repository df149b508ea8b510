package domain

import "time"

type ReviewStatus string

const (
	ReviewQueued  ReviewStatus = "queued"
	ReviewRunning ReviewStatus = "running"
	ReviewDone    ReviewStatus = "done"
	ReviewFailed  ReviewStatus = "failed"
)

// Finished reports whether the job will not change any more.
func (s ReviewStatus) Finished() bool {
	return s == ReviewDone || s == ReviewFailed
}

// ReviewJob is the bookkeeping of one submitted game review.
type ReviewJob struct {
	ID          string
	Profile     string
	Status      ReviewStatus
	Plies       int
	Graded      int
	Error       string
	SubmittedAt time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
}

func (j ReviewJob) Duration() time.Duration {
	if j.StartedAt.IsZero() || j.FinishedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}
