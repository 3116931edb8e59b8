package model

import "time"

// DateLayout is the day-granularity format used for submission dates.
const DateLayout = "2006-01-02"

// Submission is a piece of geotagged evidence that a task was completed.
//
// Submissions are append-only. Upvotes is the only field that changes after
// insert. Latitude and Longitude are either both set or both nil.
//
// Listings leave Image nil and only report HasImage; a single fetch carries
// the bytes.
type Submission struct {
	ID             int64     `json:"id"`
	UserID         string    `json:"userId"`
	TaskText       string    `json:"taskText"`
	Image          []byte    `json:"image,omitempty"`
	HasImage       bool      `json:"-"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	LocationText   string    `json:"locationText"`
	Description    string    `json:"description"`
	SubmissionDate string    `json:"submissionDate"`
	Upvotes        int       `json:"upvotes"`
	CreatedAt      time.Time `json:"createdAt"`
}

// HasLocation reports whether both coordinates are present.
func (s Submission) HasLocation() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// NewSubmission carries the caller-supplied fields of a submission before
// it is validated and stored.
type NewSubmission struct {
	UserID         string   `json:"-"`
	TaskText       string   `json:"taskText"`
	Image          []byte   `json:"image,omitempty"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	LocationText   string   `json:"locationText"`
	Description    string   `json:"description"`
	SubmissionDate string   `json:"submissionDate"`
}
