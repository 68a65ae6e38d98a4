package core

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultFormConcurrency bounds how many tables Form.ValidateAll checks at once.
const DefaultFormConcurrency = 4

// Form aggregates the stores of one form, keyed by table name.
type Form struct {
	mu     sync.RWMutex
	stores map[string]*Store
	order  []string

	concurrency int
}

// NewForm creates an empty form.
func NewForm() *Form {
	return &Form{
		stores:      make(map[string]*Store),
		concurrency: DefaultFormConcurrency,
	}
}

// SetConcurrency changes how many tables are validated in parallel.
func (f *Form) SetConcurrency(n int) {
	if n <= 0 {
		n = 1
	}
	f.mu.Lock()
	f.concurrency = n
	f.mu.Unlock()
}

// Register adds store under name, replacing any previous store. Registering
// the same store twice is a no-op. The returned function unregisters it,
// but only while name still points at this store, so a late unmount cannot
// remove a newer registration.
func (f *Form) Register(name string, s *Store) func() {
	f.mu.Lock()
	if _, exists := f.stores[name]; !exists {
		f.order = append(f.order, name)
	}
	f.stores[name] = s
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.stores[name] == s {
			f.unregisterLocked(name)
		}
	}
}

// Unregister removes name. Unknown names are ignored.
func (f *Form) Unregister(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unregisterLocked(name)
}

func (f *Form) unregisterLocked(name string) {
	if _, ok := f.stores[name]; !ok {
		return
	}
	delete(f.stores, name)
	for i, n := range f.order {
		if n == name {
			f.order = append(f.order[:i:i], f.order[i+1:]...)
			break
		}
	}
}

// Store returns the store registered under name.
func (f *Form) Store(name string) (*Store, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.stores[name]
	return s, ok
}

// MustStore is Store returning ErrTableNotFound.
func (f *Form) MustStore(name string) (*Store, error) {
	s, ok := f.Store(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return s, nil
}

// Names returns registered table names in registration order.
func (f *Form) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.order...)
}

// ValidateAll validates every requested (or registered) table with
// AllowErrors set and partitions the outcomes. Tables are checked in
// parallel; each partition keeps request order. Unless opts.AllowErrors is
// set, any failed table returns the partition with a *FormValidateError.
func (f *Form) ValidateAll(ctx context.Context, opts FormValidateOptions) (*FormValidateResult, error) {
	names := opts.Names
	if len(names) == 0 {
		names = f.Names()
	}

	f.mu.RLock()
	limit := f.concurrency
	f.mu.RUnlock()

	type outcome struct {
		result   *ValidateAllResult
		notFound bool
	}
	outcomes := make([]outcome, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, name := range names {
		s, ok := f.Store(name)
		if !ok {
			outcomes[i] = outcome{notFound: true}
			continue
		}
		g.Go(func() error {
			res, err := s.ValidateAll(gctx, ValidateAllOptions{
				RowKeys:     opts.RowKeys,
				Fields:      opts.Fields,
				AllowErrors: true,
			})
			if err != nil {
				return fmt.Errorf("validate table %s: %w", name, err)
			}
			outcomes[i] = outcome{result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &FormValidateResult{
		NameToNotFound:    []TableNotFound{},
		NameToErrorInfo:   []TableResult{},
		NameToSuccessInfo: []TableResult{},
	}
	for i, name := range names {
		o := outcomes[i]
		switch {
		case o.notFound:
			result.NameToNotFound = append(result.NameToNotFound, TableNotFound{
				Name:    name,
				Message: fmt.Sprintf("table %s not found; make sure it is registered", name),
			})
		case o.result.IsErrorInfo:
			result.NameToErrorInfo = append(result.NameToErrorInfo, TableResult{Name: name, ValidateAllResult: o.result})
		default:
			result.NameToSuccessInfo = append(result.NameToSuccessInfo, TableResult{Name: name, ValidateAllResult: o.result})
		}
	}

	if len(result.NameToErrorInfo) > 0 && !opts.AllowErrors {
		return result, &FormValidateError{Result: result}
	}
	return result, nil
}

// Subscribe merges the events of every store registered at call time.
// The returned function ends all underlying subscriptions.
func (f *Form) Subscribe(buffer int) (<-chan Event, func()) {
	names := f.Names()
	sort.Strings(names)

	out := make(chan Event, max(buffer, DefaultSubscriberBuffer))
	var wg sync.WaitGroup
	var stops []func()
	for _, name := range names {
		s, ok := f.Store(name)
		if !ok {
			continue
		}
		ch, stop := s.Subscribe(buffer)
		stops = append(stops, stop)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ev := range ch {
				select {
				case out <- ev:
				default:
				}
			}
		}()
	}

	var once sync.Once
	return out, func() {
		once.Do(func() {
			for _, stop := range stops {
				stop()
			}
			wg.Wait()
			close(out)
		})
	}
}
