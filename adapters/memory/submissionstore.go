// Package memory provides in-memory implementations of the storage and
// catalog ports, used by tests and by the "memory" database driver.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/artpar/dinogen/ports"
)

// SubmissionStore is an in-memory implementation of ports.SubmissionStore.
type SubmissionStore struct {
	mu   sync.RWMutex
	subs map[string]ports.Submission // by ID
}

// NewSubmissionStore creates a new in-memory submission store.
func NewSubmissionStore() *SubmissionStore {
	return &SubmissionStore{
		subs: make(map[string]ports.Submission),
	}
}

// Create stores a new submission.
func (s *SubmissionStore) Create(ctx context.Context, sub ports.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.Status == "" {
		sub.Status = ports.SubmissionPending
	}
	sub.Request = append(json.RawMessage(nil), sub.Request...)
	s.subs[sub.ID] = sub
	return nil
}

// Complete records the outcome of a submission.
func (s *SubmissionStore) Complete(ctx context.Context, id string, status ports.SubmissionStatus, response json.RawMessage, errMsg string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[id]
	if !ok {
		return ports.ErrSubmissionNotFound
	}
	sub.Status = status
	if len(response) > 0 {
		sub.Response = append(json.RawMessage(nil), response...)
	}
	sub.Error = errMsg
	sub.CompletedAt = &at
	s.subs[id] = sub
	return nil
}

// Get retrieves a submission by ID.
func (s *SubmissionStore) Get(ctx context.Context, id string) (ports.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[id]
	if !ok {
		return ports.Submission{}, ports.ErrSubmissionNotFound
	}
	return sub, nil
}

// ListBySession returns submissions of a session, newest first.
func (s *SubmissionStore) ListBySession(ctx context.Context, sessionID string, limit int) ([]ports.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []ports.Submission
	for _, sub := range s.subs {
		if sub.SessionID == sessionID {
			result = append(result, sub)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Seq > result[j].Seq })

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ ports.SubmissionStore = (*SubmissionStore)(nil)
