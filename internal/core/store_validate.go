package core

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// taskKey binds a background validation to one cell.
type taskKey struct {
	key   string
	field string
}

type fieldTask struct {
	cancel context.CancelFunc
}

// Validate checks row against the rules of the given fields (all fields
// with rules when none are given) and records the outcome in the error map.
// It returns the validated fields, or a *RowError.
//
// When there is nothing to validate it logs a warning and returns (nil, nil).
func (s *Store) Validate(ctx context.Context, row Row, fields ...string) ([]string, error) {
	key := s.KeyOf(row)
	target := s.targetFields(fields)
	if len(target) == 0 {
		s.logger.Warn("no rules to validate", "key", key)
		return nil, nil
	}

	errs, err := s.runValidation(ctx, row, target)
	if err != nil {
		s.publish(Event{Kind: EventValidated, Key: key, Fields: target, Failed: true})
		return nil, &RowError{Key: key, Other: err}
	}

	s.commitErrors(key, target, errs)
	s.publish(Event{Kind: EventValidated, Key: key, Fields: target, Failed: len(errs) > 0})

	if len(errs) > 0 {
		return nil, &RowError{Key: key, Errors: errs, Fields: groupByField(errs)}
	}
	return target, nil
}

func (s *Store) targetFields(fields []string) []string {
	if len(fields) > 0 {
		return append([]string(nil), fields...)
	}
	return s.RuleFields()
}

// runValidation resolves rules and runs the engine without touching state.
// Panics from rule functions are returned as errors.
func (s *Store) runValidation(ctx context.Context, row Row, fields []string) (errs []ValidationError, err error) {
	defer func() {
		if r := recover(); r != nil {
			errs = nil
			err = fmt.Errorf("validation panic: %v", r)
		}
	}()

	if s.validationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.validationTimeout)
		defer cancel()
	}

	s.mu.RLock()
	rules := s.rules
	s.mu.RUnlock()

	resolved := make(map[string][]Rule, len(fields))
	for _, f := range fields {
		fr, ok := rules[f]
		if !ok {
			resolved[f] = nil
			continue
		}
		list, err := fr.resolve(ctx, f, row, s)
		if err != nil {
			return nil, err
		}
		resolved[f] = list
	}
	return s.engine.Validate(ctx, resolved, row)
}

// ValidateAll validates a batch of rows independently. A failing row never
// stops the others. Unless opts.AllowErrors is set, any failure returns the
// full result together with a *ValidateAllError.
func (s *Store) ValidateAll(ctx context.Context, opts ValidateAllOptions) (*ValidateAllResult, error) {
	keys := opts.RowKeys
	if len(keys) == 0 {
		keys = s.Keys()
	}

	if opts.RequireNoActiveOps {
		if ops, active := s.HasActiveOperations(); active {
			return nil, &ActiveOperationsError{Table: s.name, Ops: ops}
		}
	}

	result := &ValidateAllResult{
		ErrorInfo: make(map[string]RowFailure),
		DataList:  []Row{},
	}
	for _, key := range keys {
		row, ok := s.Row(key)
		if !ok {
			result.IsErrorInfo = true
			result.ErrorInfo[key] = RowFailure{
				Errors: []ValidationError{},
				Fields: map[string][]ValidationError{},
				Other:  fmt.Errorf("%w: %s", ErrRowNotFound, key),
			}
			continue
		}
		if _, err := s.Validate(ctx, row, opts.Fields...); err != nil {
			result.IsErrorInfo = true
			var re *RowError
			if errors.As(err, &re) {
				result.ErrorInfo[key] = re.Failure()
			} else {
				result.ErrorInfo[key] = RowFailure{Errors: []ValidationError{}, Fields: map[string][]ValidationError{}, Other: err}
			}
			continue
		}
		result.DataList = append(result.DataList, row)
	}

	if result.IsErrorInfo && !opts.AllowErrors {
		return result, &ValidateAllError{Table: s.name, Result: result}
	}
	return result, nil
}

// validateFieldAsync validates one field of a row copy in the background.
// A newer call for the same cell cancels this one, and the result is only
// committed if the live value still equals the value that was validated.
func (s *Store) validateFieldAsync(key, field string, row Row) {
	tk := taskKey{key: key, field: field}
	ctx, cancel := context.WithCancel(s.baseCtx)
	task := &fieldTask{cancel: cancel}

	s.tasksMu.Lock()
	if prev := s.tasks[tk]; prev != nil {
		prev.cancel()
	}
	s.tasks[tk] = task
	s.wg.Add(1)
	s.tasksMu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			cancel()
			s.tasksMu.Lock()
			if s.tasks[tk] == task {
				delete(s.tasks, tk)
			}
			s.tasksMu.Unlock()
		}()

		fields := []string{field}
		errs, err := s.runValidation(ctx, row, fields)
		if err != nil {
			if ctx.Err() == nil {
				s.logger.Warn("background validation failed", "key", key, "field", field, "error", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		if !s.commitIfCurrent(key, field, row[field], errs) {
			return
		}
		s.publish(Event{Kind: EventValidated, Key: key, Fields: fields, Failed: len(errs) > 0})
	}()
}

func (s *Store) commitIfCurrent(key, field string, validated any, errs []ValidationError) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	live, ok := s.rows[key]
	if !ok || !reflect.DeepEqual(live[field], validated) {
		return false
	}
	s.commitErrorsLocked(key, []string{field}, errs)
	return true
}

func (s *Store) cancelTasks(key string) {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	for tk, t := range s.tasks {
		if tk.key == key {
			t.cancel()
			delete(s.tasks, tk)
		}
	}
}

func (s *Store) cancelAllTasks() {
	s.tasksMu.Lock()
	defer s.tasksMu.Unlock()
	for tk, t := range s.tasks {
		t.cancel()
		delete(s.tasks, tk)
	}
}

// Wait blocks until all background validations have finished.
func (s *Store) Wait() {
	s.wg.Wait()
}

// Close cancels background validations and waits for them to exit.
func (s *Store) Close() {
	s.cancel()
	s.cancelAllTasks()
	s.wg.Wait()
}
