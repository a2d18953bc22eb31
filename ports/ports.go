// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/artpar/dinogen/domain/datatype"
	"github.com/artpar/dinogen/domain/schemadoc"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates identifiers unique within a process.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// External Service Ports
// -----------------------------------------------------------------------------

// DataTypeSource supplies the data type catalog.
type DataTypeSource interface {
	// DataTypes fetches every catalog entry.
	DataTypes(ctx context.Context) ([]datatype.DataType, error)
}

// DocumentGenerator submits a schema for sample generation.
type DocumentGenerator interface {
	// Generate returns the service response body verbatim.
	Generate(ctx context.Context, req schemadoc.Request) (json.RawMessage, error)
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// ErrSubmissionNotFound is returned when a submission id is unknown.
var ErrSubmissionNotFound = errors.New("submission not found")

// SubmissionStatus is the lifecycle state of a submission.
type SubmissionStatus string

const (
	SubmissionPending    SubmissionStatus = "pending"
	SubmissionSucceeded  SubmissionStatus = "succeeded"
	SubmissionFailed     SubmissionStatus = "failed"
	SubmissionSuperseded SubmissionStatus = "superseded"
)

// Submission is one generate-documents call made from a session.
type Submission struct {
	ID          string           `json:"id"`
	SessionID   string           `json:"session_id"`
	Seq         int64            `json:"seq"`
	Title       string           `json:"title"`
	NumSamples  int              `json:"num_samples"`
	Request     json.RawMessage  `json:"request"`
	Response    json.RawMessage  `json:"response,omitempty"`
	Status      SubmissionStatus `json:"status"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// SubmissionStore persists submission history.
type SubmissionStore interface {
	// Create stores a new pending submission.
	Create(ctx context.Context, s Submission) error

	// Complete records the outcome of a submission.
	Complete(ctx context.Context, id string, status SubmissionStatus, response json.RawMessage, errMsg string, at time.Time) error

	// Get retrieves a submission by ID.
	Get(ctx context.Context, id string) (Submission, error)

	// ListBySession returns the newest submissions of a session first.
	ListBySession(ctx context.Context, sessionID string, limit int) ([]Submission, error)
}

// -----------------------------------------------------------------------------
// Instrumentation Ports
// -----------------------------------------------------------------------------

// Recorder receives editing and submission events for instrumentation.
type Recorder interface {
	FieldMutation(command string, err error)
	Violations(codes []string)
	CatalogFetch(err error)
	CatalogMiss(dataType string)
	Submission(status SubmissionStatus, took time.Duration)
	SessionsOpen(n int)
}

// NopRecorder discards every event.
type NopRecorder struct{}

func (NopRecorder) FieldMutation(string, error)                {}
func (NopRecorder) Violations([]string)                        {}
func (NopRecorder) CatalogFetch(error)                         {}
func (NopRecorder) CatalogMiss(string)                         {}
func (NopRecorder) Submission(SubmissionStatus, time.Duration) {}
func (NopRecorder) SessionsOpen(int)                           {}
