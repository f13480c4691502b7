// Package boardservice coordinates the store, the board engine, templates
// and the realtime broker. Every board mutation runs as load, engine call,
// versioned save, side-effect persistence and publish, serialised per board.
package boardservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/flexiboard/internal/apperr"
	"github.com/starford/flexiboard/internal/checksum"
	"github.com/starford/flexiboard/internal/flexiboard"
	"github.com/starford/flexiboard/internal/metrics"
	"github.com/starford/flexiboard/internal/models"
	"github.com/starford/flexiboard/internal/storage"
	"github.com/starford/flexiboard/internal/store"
	"github.com/starford/flexiboard/internal/templates"
)

// Publisher receives board change notifications.
type Publisher interface {
	PublishBoardEvent(kind, boardID, itemID string)
}

// BoardDetail is a board with its ETag.
type BoardDetail struct {
	Board *models.Board `json:"board"`
	ETag  string        `json:"etag"`
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets where board events are published.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.pub = p }
}

// WithMetrics enables Prometheus accounting.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAttachments sets where file column uploads are stored.
func WithAttachments(p storage.Provider) Option {
	return func(s *Service) { s.files = p }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

// Service implements the FlexiBoard use cases.
type Service struct {
	repo      store.Repository
	templates *templates.Registry
	pub       Publisher
	files     storage.Provider
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService creates a board service.
func NewService(repo store.Repository, reg *templates.Registry, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		templates: reg,
		logger:    slog.Default(),
		now:       time.Now,
		newID:     uuid.NewString,
		locks:     make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Templates returns the template registry.
func (s *Service) Templates() *templates.Registry {
	return s.templates
}

// Ready reports whether the backing store is reachable.
func (s *Service) Ready(_ context.Context) error {
	return s.repo.Ping()
}

func (s *Service) lock(boardID string) func() {
	s.mu.Lock()
	l, ok := s.locks[boardID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[boardID] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *Service) forget(boardID string) {
	s.mu.Lock()
	delete(s.locks, boardID)
	s.mu.Unlock()
}

// engine builds an engine over b with every board its lookup and
// connect-boards columns reference loaded read-only.
func (s *Service) engine(b *models.Board) *flexiboard.Engine {
	opts := []flexiboard.Option{
		flexiboard.WithClock(s.now),
		flexiboard.WithIDGenerator(s.newID),
		flexiboard.WithLogger(s.logger),
	}
	seen := map[string]bool{b.ID: true}
	for _, c := range b.Columns {
		var ref string
		switch {
		case c.Lookup != nil:
			ref = c.Lookup.SourceBoard
		case c.ConnectBoards != nil:
			ref = c.ConnectBoards.LinkedBoard
		}
		if ref == "" || seen[ref] {
			continue
		}
		seen[ref] = true
		other, err := s.repo.GetBoard(ref)
		if err != nil {
			s.logger.Debug("boardservice: connected board unavailable",
				slog.String("board_id", b.ID),
				slog.String("connected_board_id", ref),
				slog.String("error", err.Error()))
			continue
		}
		opts = append(opts, flexiboard.WithConnectedBoard(other))
	}
	return flexiboard.New(b, opts...)
}

// change describes what a mutation did, for persistence and publishing.
type change struct {
	kind   string
	itemID string
	res    flexiboard.Result
}

// mutate runs fn against boardID under the board lock and persists the
// outcome. ifMatch, when set, must equal the current ETag.
func (s *Service) mutate(ctx context.Context, boardID, userID, ifMatch string, fn func(e *flexiboard.Engine) (change, error)) (*BoardDetail, error) {
	unlock := s.lock(boardID)
	b, err := s.repo.GetBoard(boardID)
	if err != nil {
		unlock()
		return nil, err
	}
	if err := s.checkAccess(b, userID); err != nil {
		unlock()
		return nil, err
	}
	if ifMatch != "" {
		if tag, _ := ETag(b); tag != ifMatch {
			unlock()
			return nil, fmt.Errorf("board %s changed: %w", boardID, apperr.ErrConflict)
		}
	}
	expected := b.Version
	ch, err := fn(s.engine(b))
	if err != nil {
		unlock()
		return nil, err
	}
	if err := s.repo.SaveBoard(b, expected); err != nil {
		unlock()
		s.recordSave(err)
		return nil, err
	}
	s.recordSave(nil)
	s.persistEffects(b, ch.res)
	unlock()

	s.publish(ch.kind, b.ID, ch.itemID)
	if ch.res.Fired() {
		s.publish("automation.triggered", b.ID, ch.itemID)
	}
	if len(ch.res.Notifications) > 0 {
		s.publish("notification.created", b.ID, ch.itemID)
	}
	s.crossBoard(ctx, b, userID, ch.res.CrossBoard)

	tag, _ := ETag(b)
	return &BoardDetail{Board: b, ETag: tag}, nil
}

// read loads a board and runs fn without saving.
func (s *Service) read(boardID, userID string, fn func(e *flexiboard.Engine) error) error {
	b, err := s.repo.GetBoard(boardID)
	if err != nil {
		return err
	}
	if err := s.checkAccess(b, userID); err != nil {
		return err
	}
	return fn(s.engine(b))
}

// checkAccess requires userID to belong to the board's workspace. An empty
// userID is the system actor (scheduler, agents) and is always allowed.
func (s *Service) checkAccess(b *models.Board, userID string) error {
	if userID == "" {
		return nil
	}
	ws, err := s.repo.GetWorkspace(b.WorkspaceID)
	if err != nil {
		return err
	}
	if !ws.HasMember(userID) {
		return fmt.Errorf("user %s on board %s: %w", userID, b.ID, apperr.ErrForbidden)
	}
	return nil
}

// persistEffects stores the records an engine pass produced. Failures are
// logged: the board itself is already saved.
func (s *Service) persistEffects(b *models.Board, res flexiboard.Result) {
	if err := s.repo.AddActivities(res.Activities); err != nil {
		s.logger.Warn("boardservice: store activities failed", slog.String("board_id", b.ID), slog.String("error", err.Error()))
	}
	if err := s.repo.AddNotifications(res.Notifications); err != nil {
		s.logger.Warn("boardservice: store notifications failed", slog.String("board_id", b.ID), slog.String("error", err.Error()))
	}
	if err := s.repo.AddDeferred(res.Deferred); err != nil {
		s.logger.Warn("boardservice: queue deferred actions failed", slog.String("board_id", b.ID), slog.String("error", err.Error()))
	}
	if s.metrics != nil {
		ok, failed := 0, 0
		for _, r := range res.Runs {
			if r.Error != "" {
				failed++
			} else {
				ok++
			}
		}
		s.metrics.RecordAutomationRuns(ok, failed)
		s.metrics.RecordDeferred("queued", len(res.Deferred))
	}
	for _, r := range res.Runs {
		if r.Error != "" {
			continue
		}
		s.logger.Debug("boardservice: automation ran",
			slog.String("board_id", b.ID),
			slog.String("automation_id", r.AutomationID),
			slog.Int("actions", r.Actions))
	}
}

// crossBoard creates the items add-to-board actions on src produced. Only
// boards of src's workspace are written. Target boards do not run their own
// automations for these items, so rules cannot bounce items between boards
// forever.
func (s *Service) crossBoard(ctx context.Context, src *models.Board, userID string, items []flexiboard.CrossBoardItem) {
	for _, cb := range items {
		_, err := s.mutate(ctx, cb.TargetBoardID, "", "", func(e *flexiboard.Engine) (change, error) {
			if e.Board().WorkspaceID != src.WorkspaceID {
				return change{}, fmt.Errorf("board %s is outside workspace %s: %w",
					cb.TargetBoardID, src.WorkspaceID, apperr.ErrForbidden)
			}
			it := e.AddItem(cb.Item)
			act := s.activity(e.Board(), models.ActivityItemCreated, userID, it.ID,
				"Item added by automation", map[string]any{"source_item_id": cb.SourceItemID})
			return change{kind: "item.created", itemID: it.ID, res: flexiboard.Result{Activities: []models.Activity{act}}}, nil
		})
		if err != nil {
			s.logger.Warn("boardservice: add-to-board failed",
				slog.String("target_board_id", cb.TargetBoardID),
				slog.String("source_item_id", cb.SourceItemID),
				slog.String("error", err.Error()))
		}
	}
}

func (s *Service) activity(b *models.Board, typ, userID, itemID, msg string, data map[string]any) models.Activity {
	return models.Activity{
		ID:        s.newID(),
		BoardID:   b.ID,
		ItemID:    itemID,
		Type:      typ,
		UserID:    userID,
		Timestamp: s.now(),
		Data:      data,
		Message:   msg,
	}
}

func (s *Service) publish(kind, boardID, itemID string) {
	if s.pub != nil {
		s.pub.PublishBoardEvent(kind, boardID, itemID)
	}
}

func (s *Service) recordSave(err error) {
	if s.metrics == nil {
		return
	}
	switch {
	case err == nil:
		s.metrics.RecordBoardSave("ok")
	case errors.Is(err, apperr.ErrConflict):
		s.metrics.RecordBoardSave("conflict")
	default:
		s.metrics.RecordBoardSave("error")
	}
}

// ETag returns the content digest of a board document.
func ETag(b *models.Board) (string, error) {
	return checksum.Of(b)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
