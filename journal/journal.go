package journal

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Clock supplies the current time for entry timestamps.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for created_at and updated_at.
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithLogger sets the logger lifecycle events are written to.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service validates journal operations and commits them through a Backend.
type Service struct {
	backend Backend
	config  Config
	clock   Clock
	logger  *slog.Logger
}

// New creates a new Service instance.
func New(backend Backend, config Config, opts ...Option) *Service {
	config.validate()
	s := &Service{
		backend: backend,
		config:  config,
		clock:   systemClock{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the service configuration.
func (s *Service) Config() Config {
	return s.config
}

// InitCounter provisions owner's sequence counter at zero.
func (s *Service) InitCounter(ctx context.Context, owner Owner) (*SequenceCounter, error) {
	c := &SequenceCounter{Owner: owner}
	if err := s.backend.PutCounter(ctx, c, s.config.MinimumBalance(CounterSpace)); err != nil {
		return nil, err
	}
	s.logger.Info("initialized journal count", "owner", owner.String())
	return c, nil
}

// Counter returns owner's sequence counter.
func (s *Service) Counter(ctx context.Context, owner Owner) (*SequenceCounter, error) {
	c, err := s.backend.GetCounter(ctx, owner)
	if err != nil {
		return nil, err
	}
	if c.Owner != owner {
		return nil, ErrUnauthorized
	}
	return c, nil
}

// Create adds a new entry for owner under the next id of its counter.
func (s *Service) Create(ctx context.Context, owner Owner, title, content string) (*Entry, error) {
	return s.create(ctx, owner, nil, title, content)
}

// CreateAfter is Create conditioned on the counter still holding count.
// It fails with ErrConcurrentModification once any other create for owner
// has committed, so a given count yields at most one entry.
func (s *Service) CreateAfter(ctx context.Context, owner Owner, count uint64, title, content string) (*Entry, error) {
	return s.create(ctx, owner, &count, title, content)
}

func (s *Service) create(ctx context.Context, owner Owner, want *uint64, title, content string) (*Entry, error) {
	if err := ValidateTitle(title); err != nil {
		return nil, err
	}
	if err := ValidateContent(content); err != nil {
		return nil, err
	}

	counter, err := s.Counter(ctx, owner)
	if err != nil {
		return nil, err
	}
	if want != nil && counter.Count != *want {
		return nil, fmt.Errorf("%w: counter at %d, expected %d", ErrConcurrentModification, counter.Count, *want)
	}
	id, err := NextID(counter)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().Unix()
	e := &Entry{
		ID:        id,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
		Title:     title,
		Content:   content,
		Version:   1,
	}
	if err := s.backend.InsertEntry(ctx, counter.Count, e, s.config.MinimumBalance(e.Space())); err != nil {
		return nil, err
	}

	s.logger.Info("added new journal entry",
		"title", title,
		"id", id,
		"owner", owner.String(),
	)
	return e, nil
}

// Get returns the entry at (id, owner).
func (s *Service) Get(ctx context.Context, owner Owner, id uint64) (*Entry, error) {
	return s.lookup(ctx, owner, id)
}

// Update replaces the title and content of an existing entry.
// id, owner and created_at are never changed.
func (s *Service) Update(ctx context.Context, owner Owner, id uint64, title, content string) (*Entry, error) {
	return s.update(ctx, owner, id, nil, title, content)
}

// UpdateAt is Update conditioned on the entry still being at version.
func (s *Service) UpdateAt(ctx context.Context, owner Owner, id, version uint64, title, content string) (*Entry, error) {
	return s.update(ctx, owner, id, &version, title, content)
}

func (s *Service) update(ctx context.Context, owner Owner, id uint64, want *uint64, title, content string) (*Entry, error) {
	current, err := s.lookup(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateTitle(title); err != nil {
		return nil, err
	}
	if err := ValidateContent(content); err != nil {
		return nil, err
	}
	if current.ID != id {
		return nil, fmt.Errorf("%w: requested %d, stored %d", ErrInvalidID, id, current.ID)
	}
	if err := checkVersion(current, want); err != nil {
		return nil, err
	}

	next := *current
	next.Title = title
	next.Content = content
	next.UpdatedAt = s.clock.Now().Unix()
	if next.UpdatedAt < current.UpdatedAt {
		next.UpdatedAt = current.UpdatedAt
	}
	next.Version = current.Version + 1

	delta := s.config.MinimumBalance(next.Space()) - s.config.MinimumBalance(current.Space())
	if err := s.backend.UpdateEntry(ctx, &next, current.Version, delta); err != nil {
		return nil, err
	}

	s.logger.Info("updated journal entry",
		"title", title,
		"id", id,
		"owner", owner.String(),
	)
	return &next, nil
}

// Delete removes the entry at (id, owner) and refunds its rent. title is
// only written to the log; it is not checked against the stored entry.
func (s *Service) Delete(ctx context.Context, owner Owner, id uint64, title string) error {
	return s.delete(ctx, owner, id, nil, title)
}

// DeleteAt is Delete conditioned on the entry still being at version.
func (s *Service) DeleteAt(ctx context.Context, owner Owner, id, version uint64, title string) error {
	return s.delete(ctx, owner, id, &version, title)
}

func (s *Service) delete(ctx context.Context, owner Owner, id uint64, want *uint64, title string) error {
	current, err := s.lookup(ctx, owner, id)
	if err != nil {
		return err
	}
	if err := checkVersion(current, want); err != nil {
		return err
	}

	refund := s.config.MinimumBalance(current.Space())
	if err := s.backend.DeleteEntry(ctx, current.Key(), current.Version, refund); err != nil {
		return err
	}

	s.logger.Info("deleted journal entry",
		"title", title,
		"id", id,
		"owner", owner.String(),
	)
	return nil
}

// Fund credits amount to owner's balance.
func (s *Service) Fund(ctx context.Context, owner Owner, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return s.backend.Deposit(ctx, owner, amount)
}

// Balance returns owner's balance.
func (s *Service) Balance(ctx context.Context, owner Owner) (int64, error) {
	return s.backend.Balance(ctx, owner)
}

// lookup loads the entry keyed by (id, owner) and checks the stored owner.
func (s *Service) lookup(ctx context.Context, owner Owner, id uint64) (*Entry, error) {
	e, err := s.backend.GetEntry(ctx, Key{ID: id, Owner: owner})
	if err != nil {
		return nil, err
	}
	if e.Owner != owner {
		return nil, ErrUnauthorized
	}
	return e, nil
}

// checkVersion fails unless want is nil or matches the stored version. The
// backend write is conditioned on the same version, so the check holds at
// commit time.
func checkVersion(e *Entry, want *uint64) error {
	if want != nil && e.Version != *want {
		return fmt.Errorf("%w: entry at version %d, expected %d", ErrConcurrentModification, e.Version, *want)
	}
	return nil
}
