package core

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultEngine is shared by stores created without WithEngine.
// validator.Validate is safe for concurrent use.
var defaultEngine = NewTagEngine()

// Store holds the state of one editable table: rows, per-field errors,
// per-row operation status and edit snapshots.
//
// All methods are safe for concurrent use. Callers must still serialize
// Save and Validate calls for the same key.
type Store struct {
	name              string
	keyField          string
	engine            Engine
	logger            *slog.Logger
	validationTimeout time.Duration

	mu          sync.RWMutex
	rows        map[string]Row
	errors      map[string]map[string][]string
	status      map[string]OperationStatus
	snapshots   map[string]Row
	rules       Rules
	order       []string
	original    []Row
	initialized bool

	onListChanged []RowListChangedFunc
	onDeleted     []RowDeletedFunc
	onSaved       []RowSavedFunc

	events broadcaster

	tasksMu sync.Mutex
	tasks   map[taskKey]*fieldTask
	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
}

// Option configures a Store.
type Option func(*Store)

// WithKeyField sets the primary-key field name.
func WithKeyField(field string) Option {
	return func(s *Store) {
		if field != "" {
			s.keyField = field
		}
	}
}

// WithRules sets the validation rules.
func WithRules(rules Rules) Option {
	return func(s *Store) {
		s.rules = rules
	}
}

// WithEngine replaces the validation engine.
func WithEngine(e Engine) Option {
	return func(s *Store) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithLogger sets the logger. The table name is added to every entry.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithValidationTimeout bounds every single validation run.
func WithValidationTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.validationTimeout = d
	}
}

// NewStore creates an empty, uninitialized store.
func NewStore(name string, opts ...Option) *Store {
	s := &Store{
		name:     name,
		keyField: DefaultKeyField,
		engine:   defaultEngine,
		logger:   slog.Default(),
		rules:    Rules{},
		tasks:    make(map[taskKey]*fieldTask),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("table", name)
	s.baseCtx, s.cancel = context.WithCancel(context.Background())
	s.resetMaps()
	return s
}

func (s *Store) resetMaps() {
	s.rows = make(map[string]Row)
	s.errors = make(map[string]map[string][]string)
	s.status = make(map[string]OperationStatus)
	s.snapshots = make(map[string]Row)
	s.order = nil
}

// Name returns the table name.
func (s *Store) Name() string { return s.name }

// KeyField returns the primary-key field name.
func (s *Store) KeyField() string { return s.keyField }

// KeyOf returns the primary-key value of a row as a string.
func (s *Store) KeyOf(row Row) string {
	return keyString(row[s.keyField])
}

// SetRules replaces the validation rules.
func (s *Store) SetRules(rules Rules) {
	if rules == nil {
		rules = Rules{}
	}
	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()
}

// RuleFields returns the fields that have rules, sorted.
func (s *Store) RuleFields() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ruleFieldsLocked()
}

func (s *Store) ruleFieldsLocked() []string {
	fields := make([]string, 0, len(s.rules))
	for f := range s.rules {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// ----------------------------------------------------------------------------
// Hooks and subscriptions
// ----------------------------------------------------------------------------

// OnRowListChanged attaches a hook called when BeginAdd, CancelOperation on
// an added row, or RemoveRow changes the row list.
func (s *Store) OnRowListChanged(fn RowListChangedFunc) {
	s.mu.Lock()
	s.onListChanged = append(s.onListChanged, fn)
	s.mu.Unlock()
}

// OnRowDeleted attaches a hook called after RemoveRow.
func (s *Store) OnRowDeleted(fn RowDeletedFunc) {
	s.mu.Lock()
	s.onDeleted = append(s.onDeleted, fn)
	s.mu.Unlock()
}

// OnRowSaved attaches a hook called after a successful Save.
func (s *Store) OnRowSaved(fn RowSavedFunc) {
	s.mu.Lock()
	s.onSaved = append(s.onSaved, fn)
	s.mu.Unlock()
}

// Subscribe returns a channel of store events and a function that ends the
// subscription and closes the channel.
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	return s.events.subscribe(buffer)
}

func (s *Store) publish(ev Event) {
	ev.Table = s.name
	s.events.publish(ev)
}

// notifyListChanged must be called without s.mu held.
func (s *Store) notifyListChanged(key string, kind ChangeKind) {
	s.mu.RLock()
	hooks := append([]RowListChangedFunc(nil), s.onListChanged...)
	list := s.keyListLocked()
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(list, key, kind)
	}
}

func (s *Store) keyListLocked() []Row {
	list := make([]Row, 0, len(s.order))
	for _, k := range s.order {
		list = append(list, Row{s.keyField: k})
	}
	return list
}

// ----------------------------------------------------------------------------
// Row data
// ----------------------------------------------------------------------------

// Seed loads the initial rows. The first call stores a copy of every row
// keyed by primary key and returns key-only descriptors in input order.
// Later calls do nothing and return rows unchanged, until Clear.
func (s *Store) Seed(rows []Row) ([]Row, bool) {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return rows, false
	}
	list := make([]Row, 0, len(rows))
	s.original = make([]Row, 0, len(rows))
	for _, r := range rows {
		key := s.KeyOf(r)
		if _, exists := s.rows[key]; !exists {
			s.order = append(s.order, key)
		}
		s.rows[key] = r.Clone()
		s.original = append(s.original, r.Clone())
		list = append(list, Row{s.keyField: r[s.keyField]})
	}
	s.initialized = true
	s.mu.Unlock()

	s.publish(Event{Kind: EventSeeded})
	return list, true
}

// IndexRows converts rows into a key map and key-only list without
// touching the store.
func (s *Store) IndexRows(rows []Row) (map[string]Row, []Row) {
	data := make(map[string]Row, len(rows))
	list := make([]Row, 0, len(rows))
	for _, r := range rows {
		key := s.KeyOf(r)
		data[key] = r.Clone()
		list = append(list, Row{s.keyField: r[s.keyField]})
	}
	return data, list
}

// UpdateRow merges values into the row, creating it if absent. When
// validate is set, each changed field is validated in the background; a
// later update of the same field supersedes a still-running validation.
func (s *Store) UpdateRow(key string, values Row, validate bool) {
	fields, snapshot := s.mergeRow(key, values)
	s.publish(Event{Kind: EventRowUpdated, Key: key, Fields: fields})
	if !validate {
		return
	}
	for _, field := range fields {
		s.validateFieldAsync(key, field, snapshot)
	}
}

// UpdateRowValidated merges values without background validation, then
// validates the given fields and returns the outcome.
func (s *Store) UpdateRowValidated(ctx context.Context, key string, values Row, fields []string) ([]string, error) {
	changed, snapshot := s.mergeRow(key, values)
	s.publish(Event{Kind: EventRowUpdated, Key: key, Fields: changed})
	return s.Validate(ctx, snapshot, fields...)
}

// mergeRow applies values and returns the sorted changed fields and a copy
// of the resulting row.
func (s *Store) mergeRow(key string, values Row) ([]string, Row) {
	fields := make([]string, 0, len(values))
	for f := range values {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[key]
	if !ok {
		row = Row{s.keyField: key}
		s.rows[key] = row
		s.order = append(s.order, key)
	}
	for _, f := range fields {
		row[f] = cloneValue(values[f])
	}
	return fields, row.Clone()
}

// AddRow inserts a new row under a generated key. The key field of the
// returned row is always the generated key.
func (s *Store) AddRow(initial Row) (string, Row) {
	key := newRowKey()
	row := initial.Clone()
	if row == nil {
		row = Row{}
	}
	row[s.keyField] = key

	s.mu.Lock()
	s.rows[key] = row
	s.order = append(s.order, key)
	s.mu.Unlock()

	s.publish(Event{Kind: EventRowAdded, Key: key})
	return key, row.Clone()
}

// newRowKey returns "<unix millis>_<random>".
func newRowKey() string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%d_%s", time.Now().UnixMilli(), random[:12])
}

// DeleteRow removes the row together with its errors, operation status
// and snapshot. No hooks are called; see RemoveRow.
func (s *Store) DeleteRow(key string) {
	s.cancelTasks(key)
	s.mu.Lock()
	s.deleteLocked(key)
	s.mu.Unlock()
	s.publish(Event{Kind: EventRowDeleted, Key: key})
}

func (s *Store) deleteLocked(key string) {
	delete(s.rows, key)
	delete(s.errors, key)
	delete(s.status, key)
	delete(s.snapshots, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

// Clear empties rows and errors and resets the initialized flag so Seed
// runs again. Operation status and snapshots go with the rows. With
// reinit the underlying maps are reallocated instead of emptied.
func (s *Store) Clear(reinit bool) {
	s.cancelAllTasks()
	s.mu.Lock()
	if reinit {
		s.resetMaps()
	} else {
		for k := range s.rows {
			delete(s.rows, k)
		}
		for k := range s.errors {
			delete(s.errors, k)
		}
		for k := range s.status {
			delete(s.status, k)
		}
		for k := range s.snapshots {
			delete(s.snapshots, k)
		}
		s.order = s.order[:0]
	}
	s.original = nil
	s.initialized = false
	s.mu.Unlock()
	s.publish(Event{Kind: EventCleared})
}

// ----------------------------------------------------------------------------
// Reads
// ----------------------------------------------------------------------------

// Row returns a copy of the row.
func (s *Store) Row(key string) (Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[key]
	if !ok {
		return nil, false
	}
	return row.Clone(), true
}

// Rows returns copies of all rows in display order.
func (s *Store) Rows() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Row, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.rows[k].Clone())
	}
	return out
}

// Keys returns row keys in display order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Len returns the number of rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// OriginalData returns copies of the rows passed to the effective Seed call.
func (s *Store) OriginalData() []Row {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Row, 0, len(s.original))
	for _, r := range s.original {
		out = append(out, r.Clone())
	}
	return out
}

// Initialized reports whether Seed has run since creation or the last Clear.
func (s *Store) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}
