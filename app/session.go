// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/artpar/dinogen/domain/datatype"
	"github.com/artpar/dinogen/domain/draft"
	"github.com/artpar/dinogen/domain/field"
	"github.com/artpar/dinogen/domain/schemadoc"
	"github.com/artpar/dinogen/domain/validation"
	"github.com/artpar/dinogen/ports"
	"github.com/rs/zerolog"
)

// Session errors.
var (
	ErrInvalidOrder   = errors.New("order must list every root field exactly once")
	ErrInvalidSamples = errors.New("num_samples out of range")
)

// Meta is the schema header edited alongside the field tree.
type Meta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	NumSamples  int    `json:"num_samples"`
}

// Result is the response of the latest accepted submission.
type Result struct {
	SubmissionID string          `json:"submission_id"`
	Seq          int64           `json:"seq"`
	Response     json.RawMessage `json:"response"`
	ReceivedAt   time.Time       `json:"received_at"`
}

// Snapshot is a consistent copy of the session state.
type Snapshot struct {
	ID        string        `json:"id"`
	Meta      Meta          `json:"meta"`
	Format    string        `json:"format"`
	Fields    []*field.Node `json:"fields"`
	DataTypes int           `json:"data_types"`
	Result    *Result       `json:"result,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// SubmitResult describes one finished submission.
type SubmitResult struct {
	Submission ports.Submission `json:"submission"`
	Report     schemadoc.Report `json:"report"`
	Superseded bool             `json:"superseded"`
}

// Session is one editing session: a field tree, its schema header and the
// catalog fetched when the session was opened. Commands are applied one at a
// time; network calls run without holding the lock.
type Session struct {
	id        string
	svc       *SessionService
	logger    zerolog.Logger
	createdAt time.Time
	catalog   datatype.Catalog

	mu     sync.Mutex
	forest *field.Forest
	meta   Meta
	format string
	seq    int64
	result *Result
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Catalog returns the data types available to this session.
func (s *Session) Catalog() datatype.Catalog { return s.catalog }

// Fields returns the current root fields.
func (s *Session) Fields() []*field.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forest.Roots()
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		ID:        s.id,
		Meta:      s.meta,
		Format:    s.format,
		Fields:    s.forest.Roots(),
		DataTypes: s.catalog.Len(),
		Result:    s.result,
		CreatedAt: s.createdAt,
	}
}

// Draft exports the session content.
func (s *Session) Draft() *draft.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &draft.Draft{
		Title:       s.meta.Title,
		Description: s.meta.Description,
		NumSamples:  s.meta.NumSamples,
		Format:      s.format,
		Fields:      s.forest.Roots(),
	}
}

// Apply runs a field command against the tree.
func (s *Session) Apply(cmd field.Command) ([]*field.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(cmd)
}

func (s *Session) apply(cmd field.Command) ([]*field.Node, error) {
	name := CommandName(cmd)
	next, err := s.forest.Apply(cmd)
	s.svc.recorder.FieldMutation(name, err)
	if err != nil {
		s.logger.Debug().Err(err).Str("command", name).Msg("field command rejected")
		return nil, err
	}
	s.forest = next
	s.logger.Debug().Str("command", name).Int("fields", next.Size()).Msg("field command applied")
	return next.Roots(), nil
}

// AddField appends a blank field to the root list, or to the properties of
// parentID when it is set, and returns the new field id.
func (s *Session) AddField(parentID string) (string, error) {
	id := s.svc.fieldIDs.New()
	if _, err := s.Apply(field.AddField{ID: id, ParentID: parentID}); err != nil {
		return "", err
	}
	return id, nil
}

// AddItems gives parentID a blank items field and returns its id.
func (s *Session) AddItems(parentID string) (string, error) {
	id := s.svc.fieldIDs.New()
	if _, err := s.Apply(field.AddItems{ID: id, ParentID: parentID}); err != nil {
		return "", err
	}
	return id, nil
}

// Update sets one node field. Nodes supplied as properties or items that have
// no id are given fresh ones.
func (s *Session) Update(id string, key field.Key, value any) ([]*field.Node, error) {
	switch v := value.(type) {
	case []*field.Node:
		nodes := make([]*field.Node, len(v))
		for i, n := range v {
			nodes[i] = field.AssignIDs(n, s.svc.fieldIDs.New)
		}
		value = nodes
	case *field.Node:
		if v != nil {
			value = field.AssignIDs(v, s.svc.fieldIDs.New)
		}
	}
	return s.Apply(field.UpdateField{ID: id, Key: key, Value: value})
}

// Reorder replaces the root order. ids must be a permutation of the current
// root ids.
func (s *Session) Reorder(ids []string) ([]*field.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roots := s.forest.Roots()
	if len(ids) != len(roots) {
		return nil, ErrInvalidOrder
	}
	byID := make(map[string]*field.Node, len(roots))
	for _, n := range roots {
		byID[n.ID] = n
	}
	ordered := make([]*field.Node, len(ids))
	for i, id := range ids {
		n, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a root field", ErrInvalidOrder, id)
		}
		delete(byID, id)
		ordered[i] = n
	}
	return s.apply(field.ReorderFields{Fields: ordered})
}

// SetMeta replaces the schema header. A zero sample count selects the
// configured default.
func (s *Session) SetMeta(m Meta) error {
	cfg := s.svc.config()
	if m.NumSamples == 0 {
		m.NumSamples = cfg.DefaultSamples
	}
	if m.NumSamples < 1 || (cfg.MaxSamples > 0 && m.NumSamples > cfg.MaxSamples) {
		return fmt.Errorf("%w: %d (max %d)", ErrInvalidSamples, m.NumSamples, cfg.MaxSamples)
	}

	s.mu.Lock()
	s.meta = m
	s.mu.Unlock()
	return nil
}

// Validate checks the header and every field. The result is empty when the
// session can be submitted.
func (s *Session) Validate() validation.Violations {
	s.mu.Lock()
	meta, roots := s.meta, s.forest.Roots()
	s.mu.Unlock()

	return s.validate(meta, roots)
}

func (s *Session) validate(meta Meta, roots []*field.Node) validation.Violations {
	v := validation.Submission(meta.Title, meta.Description, roots, s.catalog)
	if len(v) > 0 {
		codes := make([]string, len(v))
		for i, x := range v {
			codes[i] = x.Code
		}
		s.svc.recorder.Violations(codes)
	}
	return v
}

// Schema compiles the current tree into a JSON Schema document.
func (s *Session) Schema() (schemadoc.Document, schemadoc.Report) {
	s.mu.Lock()
	meta, roots := s.meta, s.forest.Roots()
	s.mu.Unlock()

	doc, report := schemadoc.Build(meta.Title, meta.Description, roots, s.catalog)
	s.observe(report)
	return doc, report
}

func (s *Session) observe(report schemadoc.Report) {
	for _, m := range report.Misses {
		s.svc.recorder.CatalogMiss(m.DataType)
		s.logger.Warn().Str("path", m.Path).Str("data_type", m.DataType).Msg("data type not in catalog")
	}
	for _, a := range report.AttributeIssues {
		s.logger.Warn().Str("path", a.Path).Str("attribute", a.Name).Str("value", a.Value).
			Msg("attribute value is not an integer, dropped")
	}
}

// Submit validates, compiles and sends the tree for generation. Violations
// are returned as validation.Violations and nothing is sent. Only the most
// recently issued submission may replace the session result; older ones that
// finish later are recorded as superseded.
func (s *Session) Submit(ctx context.Context) (SubmitResult, error) {
	// The tree that is validated is the tree that is sent.
	s.mu.Lock()
	meta, format, roots := s.meta, s.format, s.forest.Roots()
	if v := s.validate(meta, roots); len(v) > 0 {
		s.mu.Unlock()
		return SubmitResult{}, v
	}
	s.seq++
	seq := s.seq
	s.mu.Unlock()

	doc, report := schemadoc.Build(meta.Title, meta.Description, roots, s.catalog)
	s.observe(report)
	req := schemadoc.NewRequest(doc, format, meta.NumSamples)

	body, err := json.Marshal(req)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("encode request: %w", err)
	}

	svc := s.svc
	sub := ports.Submission{
		ID:         svc.ids.New(),
		SessionID:  s.id,
		Seq:        seq,
		Title:      doc.Title,
		NumSamples: meta.NumSamples,
		Request:    body,
		Status:     ports.SubmissionPending,
		CreatedAt:  svc.clock.Now(),
	}
	if err := svc.store.Create(ctx, sub); err != nil {
		s.logger.Warn().Err(err).Str("submission_id", sub.ID).Msg("failed to record submission")
	}

	log := s.logger.With().Str("submission_id", sub.ID).Int64("seq", seq).Logger()
	log.Info().Int("num_samples", meta.NumSamples).Int("fields", len(roots)).Msg("submitting schema")

	start := time.Now()
	resp, genErr := svc.generator.Generate(ctx, req)
	took := time.Since(start)
	now := svc.clock.Now()

	s.mu.Lock()
	latest := seq == s.seq
	if genErr == nil && latest {
		s.result = &Result{SubmissionID: sub.ID, Seq: seq, Response: resp, ReceivedAt: now}
	}
	s.mu.Unlock()

	var errMsg string
	switch {
	case genErr != nil:
		sub.Status = ports.SubmissionFailed
		errMsg = genErr.Error()
	case latest:
		sub.Status = ports.SubmissionSucceeded
		sub.Response = resp
	default:
		sub.Status = ports.SubmissionSuperseded
		sub.Response = resp
	}
	sub.Error = errMsg
	sub.CompletedAt = &now

	// The request context may already be gone; history is still written.
	if err := svc.store.Complete(context.WithoutCancel(ctx), sub.ID, sub.Status, sub.Response, errMsg, now); err != nil {
		log.Warn().Err(err).Msg("failed to record submission outcome")
	}
	svc.recorder.Submission(sub.Status, took)

	if genErr != nil {
		log.Error().Err(genErr).Dur("took", took).Msg("generation request failed")
		return SubmitResult{Submission: sub, Report: report}, fmt.Errorf("generate documents: %w", genErr)
	}
	log.Info().Dur("took", took).Str("status", string(sub.Status)).Msg("generation finished")

	return SubmitResult{Submission: sub, Report: report, Superseded: !latest}, nil
}

// CommandName returns the wire name of a field command.
func CommandName(cmd field.Command) string {
	switch cmd.(type) {
	case field.AddField:
		return "add"
	case field.AddItems:
		return "add_items"
	case field.RemoveField:
		return "remove"
	case field.UpdateField:
		return "update"
	case field.SetAttribute:
		return "set_attribute"
	case field.ReorderFields:
		return "reorder"
	case field.MoveField:
		return "move"
	default:
		return "unknown"
	}
}

// Find returns the node with the given id.
func (s *Session) Find(id string) (*field.Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forest.Find(id)
}
