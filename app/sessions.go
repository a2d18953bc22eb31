package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/artpar/dinogen/domain/datatype"
	"github.com/artpar/dinogen/domain/draft"
	"github.com/artpar/dinogen/domain/field"
	"github.com/artpar/dinogen/domain/schemadoc"
	"github.com/artpar/dinogen/ports"
	"github.com/rs/zerolog"
)

// Service errors.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many open sessions")
)

// SessionDeps contains dependencies for SessionService.
type SessionDeps struct {
	Catalog   ports.DataTypeSource
	Generator ports.DocumentGenerator
	Store     ports.SubmissionStore
	Clock     ports.Clock
	IDGen     ports.IDGenerator // session and submission ids
	FieldIDs  ports.IDGenerator
	Recorder  ports.Recorder // optional
	Logger    zerolog.Logger
}

// SessionConfig contains hot-reloadable session settings.
type SessionConfig struct {
	Format         string
	DefaultSamples int
	MaxSamples     int
	MaxSessions    int // 0 means unlimited
}

// SessionService owns the open editing sessions.
type SessionService struct {
	catalogs  ports.DataTypeSource
	generator ports.DocumentGenerator
	store     ports.SubmissionStore
	clock     ports.Clock
	ids       ports.IDGenerator
	fieldIDs  ports.IDGenerator
	recorder  ports.Recorder
	logger    zerolog.Logger

	cfg atomic.Pointer[SessionConfig]

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionService creates a new session service.
func NewSessionService(deps SessionDeps, cfg SessionConfig) *SessionService {
	s := &SessionService{
		catalogs:  deps.Catalog,
		generator: deps.Generator,
		store:     deps.Store,
		clock:     deps.Clock,
		ids:       deps.IDGen,
		fieldIDs:  deps.FieldIDs,
		recorder:  deps.Recorder,
		logger:    deps.Logger,
		sessions:  make(map[string]*Session),
	}
	if s.recorder == nil {
		s.recorder = ports.NopRecorder{}
	}
	if s.fieldIDs == nil {
		s.fieldIDs = deps.IDGen
	}
	s.UpdateConfig(cfg)
	return s
}

// UpdateConfig replaces the session settings. Open sessions keep their
// current header; new limits apply to the next edit.
func (s *SessionService) UpdateConfig(cfg SessionConfig) {
	if cfg.Format == "" {
		cfg.Format = schemadoc.FormatJSON
	}
	if cfg.DefaultSamples <= 0 {
		cfg.DefaultSamples = schemadoc.DefaultSamples
	}
	s.cfg.Store(&cfg)
}

func (s *SessionService) config() SessionConfig {
	return *s.cfg.Load()
}

// Create opens a session. The data type catalog is fetched once here; when
// the fetch fails the session starts with an empty catalog. A non-nil d seeds
// the session with a draft.
func (s *SessionService) Create(ctx context.Context, d *draft.Draft) (*Session, error) {
	cfg := s.config()

	forest := field.Empty()
	meta := Meta{NumSamples: cfg.DefaultSamples}
	format := cfg.Format
	if d != nil {
		f, err := d.Forest(s.fieldIDs.New)
		if err != nil {
			return nil, err
		}
		forest = f
		meta = Meta{Title: d.Title, Description: d.Description, NumSamples: d.NumSamples}
		if meta.NumSamples == 0 {
			meta.NumSamples = cfg.DefaultSamples
		}
		if cfg.MaxSamples > 0 && meta.NumSamples > cfg.MaxSamples {
			return nil, fmt.Errorf("%w: %d (max %d)", ErrInvalidSamples, meta.NumSamples, cfg.MaxSamples)
		}
		if d.Format != "" {
			format = d.Format
		}
	}

	s.mu.RLock()
	open := len(s.sessions)
	s.mu.RUnlock()
	if cfg.MaxSessions > 0 && open >= cfg.MaxSessions {
		return nil, ErrTooManySessions
	}

	id := s.ids.New()
	log := s.logger.With().Str("session_id", id).Logger()

	catalog := datatype.Catalog{}
	types, err := s.catalogs.DataTypes(ctx)
	s.recorder.CatalogFetch(err)
	if err != nil {
		log.Warn().Err(err).Msg("data type catalog unavailable, continuing with an empty catalog")
	} else {
		catalog = datatype.NewCatalog(types)
	}

	sess := &Session{
		id:        id,
		svc:       s,
		logger:    log,
		createdAt: s.clock.Now(),
		catalog:   catalog,
		forest:    forest,
		meta:      meta,
		format:    format,
	}

	s.mu.Lock()
	if cfg.MaxSessions > 0 && len(s.sessions) >= cfg.MaxSessions {
		s.mu.Unlock()
		return nil, ErrTooManySessions
	}
	s.sessions[id] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	s.recorder.SessionsOpen(n)
	log.Info().Int("data_types", catalog.Len()).Int("fields", forest.Size()).Msg("session opened")
	return sess, nil
}

// Get returns an open session.
func (s *SessionService) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Delete closes a session. Its submission history is kept.
func (s *SessionService) Delete(id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.recorder.SessionsOpen(n)
	s.logger.Info().Str("session_id", id).Msg("session closed")
	return nil
}

// List returns the ids of open sessions in sorted order.
func (s *SessionService) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Submissions returns the submission history of a session, newest first.
func (s *SessionService) Submissions(ctx context.Context, sessionID string, limit int) ([]ports.Submission, error) {
	return s.store.ListBySession(ctx, sessionID, limit)
}

// Submission returns one recorded submission.
func (s *SessionService) Submission(ctx context.Context, id string) (ports.Submission, error) {
	return s.store.Get(ctx, id)
}
