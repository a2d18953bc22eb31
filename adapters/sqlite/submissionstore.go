package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/artpar/dinogen/ports"
)

// SubmissionStore implements ports.SubmissionStore using SQLite.
type SubmissionStore struct {
	db *DB
}

// NewSubmissionStore creates a new SQLite submission store.
func NewSubmissionStore(db *DB) *SubmissionStore {
	return &SubmissionStore{db: db}
}

// Create stores a new submission.
func (s *SubmissionStore) Create(ctx context.Context, sub ports.Submission) error {
	status := sub.Status
	if status == "" {
		status = ports.SubmissionPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (id, session_id, seq, title, num_samples, request, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sub.ID, sub.SessionID, sub.Seq, sub.Title, sub.NumSamples,
		string(sub.Request), string(status), sub.CreatedAt.UTC())
	return err
}

// Complete records the outcome of a submission.
func (s *SubmissionStore) Complete(ctx context.Context, id string, status ports.SubmissionStatus, response json.RawMessage, errMsg string, at time.Time) error {
	var resp, msg sql.NullString
	if len(response) > 0 {
		resp = sql.NullString{String: string(response), Valid: true}
	}
	if errMsg != "" {
		msg = sql.NullString{String: errMsg, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET status = ?, response = ?, error = ?, completed_at = ?
		WHERE id = ?
	`, string(status), resp, msg, at.UTC(), id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ports.ErrSubmissionNotFound
	}
	return nil
}

// Get retrieves a submission by ID.
func (s *SubmissionStore) Get(ctx context.Context, id string) (ports.Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, seq, title, num_samples, request, response, status, error, created_at, completed_at
		FROM submissions
		WHERE id = ?
	`, id)

	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Submission{}, ports.ErrSubmissionNotFound
	}
	return sub, err
}

// ListBySession returns submissions of a session, newest first. A limit of
// zero or less returns all of them.
func (s *SubmissionStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]ports.Submission, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, seq, title, num_samples, request, response, status, error, created_at, completed_at
		FROM submissions
		WHERE session_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []ports.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (ports.Submission, error) {
	var (
		sub       ports.Submission
		request   string
		response  sql.NullString
		status    string
		errMsg    sql.NullString
		completed sql.NullTime
	)

	err := row.Scan(
		&sub.ID, &sub.SessionID, &sub.Seq, &sub.Title, &sub.NumSamples,
		&request, &response, &status, &errMsg, &sub.CreatedAt, &completed,
	)
	if err != nil {
		return ports.Submission{}, err
	}

	sub.Request = json.RawMessage(request)
	if response.Valid {
		sub.Response = json.RawMessage(response.String)
	}
	sub.Status = ports.SubmissionStatus(status)
	if errMsg.Valid {
		sub.Error = errMsg.String
	}
	if completed.Valid {
		t := completed.Time
		sub.CompletedAt = &t
	}
	return sub, nil
}

// Ensure interface compliance.
var _ ports.SubmissionStore = (*SubmissionStore)(nil)
