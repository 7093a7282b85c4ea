package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vedsharma/analyze-request/internal/model"
)

// DefaultApp is the default key namespace
const DefaultApp = "analyze-request"

// Store persists the saved request collection on a Medium. Every mutation
// reads the whole collection, transforms it and writes it back under the
// newest generation key.
//
// Operations are serialized within the process. Two processes writing the
// same medium are not coordinated: the last WriteAll wins.
type Store struct {
	medium      Medium
	app         string
	generations []Generation
	logger      *slog.Logger

	now   func() time.Time
	newID func() string

	mu sync.Mutex
}

// Option configures a Store
type Option func(*Store)

// WithApp sets the key namespace
func WithApp(app string) Option {
	return func(s *Store) {
		if app != "" {
			s.app = app
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator overrides id allocation
func WithIDGenerator(newID func() string) Option {
	return func(s *Store) {
		s.newID = newID
	}
}

// WithGenerations overrides the schema chain
func WithGenerations(gens []Generation) Option {
	return func(s *Store) {
		s.generations = gens
	}
}

// NewStore creates a store backed by medium
func NewStore(medium Medium, opts ...Option) *Store {
	s := &Store{
		medium:      medium,
		app:         DefaultApp,
		generations: Generations,
		logger:      slog.Default(),
		now:         time.Now,
		newID:       NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) nowISO() string {
	return model.FormatISO(s.now())
}

func (s *Store) currentKey() string {
	return generationKey(s.app, s.generations[len(s.generations)-1].Version)
}

// ReadAll returns every valid saved request in stored order. It reads the
// newest generation present and upgrades older ones in memory only.
func (s *Store) ReadAll() ([]model.SavedRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readAll()
}

func (s *Store) readAll() ([]model.SavedRequest, error) {
	for i := len(s.generations) - 1; i >= 0; i-- {
		key := generationKey(s.app, s.generations[i].Version)

		value, ok, err := s.medium.Get(key)
		if err != nil {
			return nil, err
		}
		if !ok || value == "" {
			continue
		}

		var raw []any
		if err := json.Unmarshal([]byte(value), &raw); err != nil {
			// Older generations are not consulted once a newer key exists
			s.logger.Warn("ignoring unparseable collection", slog.String("key", key), slog.Any("error", err))
			return []model.SavedRequest{}, nil
		}

		if i < len(s.generations)-1 {
			s.logger.Debug("reading older generation", slog.String("key", key))
		}

		items := normalizeCollection(upgradeFrom(s.generations, i, raw), s.now())
		if dropped := len(raw) - len(items); dropped > 0 {
			s.logger.Debug("dropped invalid records", slog.String("key", key), slog.Int("count", dropped))
		}
		return items, nil
	}

	return []model.SavedRequest{}, nil
}

// WriteAll replaces the stored collection with items
func (s *Store) WriteAll(items []model.SavedRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.writeAll(items)
}

func (s *Store) writeAll(items []model.SavedRequest) error {
	if items == nil {
		items = []model.SavedRequest{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode saved requests: %w", err)
	}

	return s.medium.Set(s.currentKey(), string(data))
}

// List returns saved requests, most recently updated first
func (s *Store) List() ([]model.SavedRequest, error) {
	items, err := s.ReadAll()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].UpdatedAtISO > items[j].UpdatedAtISO
	})
	return items, nil
}

// GetByID returns the saved request with id, or nil if there is none
func (s *Store) GetByID(id string) (*model.SavedRequest, error) {
	items, err := s.ReadAll()
	if err != nil {
		return nil, err
	}

	for i := range items {
		if items[i].ID == id {
			return &items[i], nil
		}
	}
	return nil, nil
}

func (s *Store) stamp(res *model.ResponseRecord, ts string) *model.ResponseRecord {
	if res == nil {
		return nil
	}
	stamped := res.Stamped(ts)
	return &stamped
}

// Create saves a new request at the head of the collection
func (s *Store) Create(args model.SaveArgs) (*model.SavedRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}

	ts := s.nowISO()
	saved := model.SavedRequest{
		ID:           s.newID(),
		Name:         args.Name,
		Description:  args.Description,
		Request:      args.Request.Clone(),
		LastResponse: s.stamp(args.LastResponse, ts),
		CreatedAtISO: ts,
		UpdatedAtISO: ts,
	}

	if err := s.writeAll(append([]model.SavedRequest{saved}, all...)); err != nil {
		return nil, err
	}

	s.logger.Debug("created saved request", slog.String("id", saved.ID))
	return &saved, nil
}

// mutate applies fn to the record with id and persists the collection.
// It returns nil without writing when id is unknown.
func (s *Store) mutate(id string, fn func(item *model.SavedRequest, ts string)) (*model.SavedRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range all {
		if all[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}

	ts := s.nowISO()
	updated := all[idx]
	fn(&updated, ts)
	updated.UpdatedAtISO = ts
	if updated.UpdatedAtISO < updated.CreatedAtISO {
		updated.UpdatedAtISO = updated.CreatedAtISO
	}
	all[idx] = updated

	if err := s.writeAll(all); err != nil {
		return nil, err
	}
	return &updated, nil
}

// Update replaces every user field of the record with id
func (s *Store) Update(id string, args model.SaveArgs) (*model.SavedRequest, error) {
	return s.mutate(id, func(item *model.SavedRequest, ts string) {
		item.Name = args.Name
		item.Description = args.Description
		item.Request = args.Request.Clone()
		item.LastResponse = s.stamp(args.LastResponse, ts)
	})
}

// UpdateLastResponse binds res to the record with id
func (s *Store) UpdateLastResponse(id string, res model.ResponseRecord) (*model.SavedRequest, error) {
	return s.mutate(id, func(item *model.SavedRequest, ts string) {
		item.LastResponse = s.stamp(&res, ts)
	})
}

// Delete removes the record with id. Unknown ids are ignored.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}

	next := make([]model.SavedRequest, 0, len(all))
	for _, item := range all {
		if item.ID != id {
			next = append(next, item)
		}
	}
	if len(next) == len(all) {
		return nil
	}

	return s.writeAll(next)
}
