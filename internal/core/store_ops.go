package core

// store_ops.go implements the per-row add/edit workflow.
//
//	none -> add  -> none   CancelOperation: row removed
//	        add  -> none   Save: status cleared, row kept
//	none -> edit -> none   CancelOperation: snapshot restored
//	        edit -> none   Save ok: status and snapshot cleared
//	        edit -> edit   Save failed: nothing cleared
//
// A snapshot only exists while its row is marked edit.

import (
	"context"
	"fmt"
)

// SetOperationStatus marks keys with status. StatusNone clears them.
// Any status other than edit drops the row's snapshot.
func (s *Store) SetOperationStatus(keys []string, status OperationStatus) {
	s.mu.Lock()
	for _, key := range keys {
		if status == StatusNone {
			delete(s.status, key)
		} else {
			s.status[key] = status
		}
		if status != StatusEdit {
			delete(s.snapshots, key)
		}
	}
	s.mu.Unlock()
	for _, key := range keys {
		s.publish(Event{Kind: EventStatusChanged, Key: key, Status: status})
	}
}

// ClearOperationStatus removes the status and snapshot of each key.
func (s *Store) ClearOperationStatus(keys ...string) {
	s.SetOperationStatus(keys, StatusNone)
}

// Status returns the row's operation status.
func (s *Store) Status(key string) OperationStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status[key]
}

// HasActiveOperations partitions keys (all marked keys when none are given)
// into those under edit and those under add.
func (s *Store) HasActiveOperations(keys ...string) (ActiveOperations, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(keys) == 0 {
		keys = s.markedKeysLocked()
	}
	ops := ActiveOperations{Edit: []string{}, Add: []string{}}
	for _, key := range keys {
		switch s.status[key] {
		case StatusEdit:
			ops.Edit = append(ops.Edit, key)
		case StatusAdd:
			ops.Add = append(ops.Add, key)
		}
	}
	return ops, ops.Any()
}

// markedKeysLocked returns keys with a status: display order first, then
// any marked key whose row is gone.
func (s *Store) markedKeysLocked() []string {
	keys := make([]string, 0, len(s.status))
	seen := make(map[string]bool, len(s.status))
	for _, k := range s.order {
		if _, ok := s.status[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	for k := range s.status {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

// SnapshotForEdit stores a deep copy of the row for rollback.
func (s *Store) SnapshotForEdit(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRowNotFound, key)
	}
	s.snapshots[key] = row.Clone()
	return nil
}

// ClearSnapshot drops the row's rollback copy.
func (s *Store) ClearSnapshot(key string) {
	s.mu.Lock()
	delete(s.snapshots, key)
	s.mu.Unlock()
}

// Snapshot returns a copy of the row's rollback copy.
func (s *Store) Snapshot(key string) (Row, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[key]
	if !ok {
		return nil, false
	}
	return snap.Clone(), true
}

// BeginEdit snapshots the row and marks it edit. A row already under edit
// keeps its first snapshot; a row under add stays an add.
func (s *Store) BeginEdit(key string) error {
	s.mu.Lock()
	row, ok := s.rows[key]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRowNotFound, key)
	}
	if s.status[key] != StatusNone {
		s.mu.Unlock()
		return nil
	}
	s.snapshots[key] = row.Clone()
	s.status[key] = StatusEdit
	s.mu.Unlock()

	s.publish(Event{Kind: EventStatusChanged, Key: key, Status: StatusEdit})
	return nil
}

// BeginAdd inserts a new row marked add and notifies row-list hooks.
func (s *Store) BeginAdd(initial Row) (string, Row) {
	key, row := s.AddRow(initial)

	s.mu.Lock()
	s.status[key] = StatusAdd
	s.mu.Unlock()

	s.publish(Event{Kind: EventStatusChanged, Key: key, Status: StatusAdd})
	s.notifyListChanged(key, ChangeAdd)
	return key, row
}

// CancelOperation rolls the row back to its snapshot (if any) and clears
// its status, snapshot and errors. A row under add is removed entirely and
// row-list hooks are notified. It returns the status the row had.
func (s *Store) CancelOperation(key string) OperationStatus {
	s.cancelTasks(key)

	s.mu.Lock()
	prev := s.status[key]
	if snap, ok := s.snapshots[key]; ok {
		if _, exists := s.rows[key]; exists {
			s.rows[key] = snap
		}
	}
	delete(s.status, key)
	delete(s.snapshots, key)
	delete(s.errors, key)
	if prev == StatusAdd {
		s.deleteLocked(key)
	}
	s.mu.Unlock()

	s.publish(Event{Kind: EventStatusChanged, Key: key, Status: StatusNone})
	if prev == StatusAdd {
		s.publish(Event{Kind: EventRowDeleted, Key: key})
		s.notifyListChanged(key, ChangeDelete)
	}
	return prev
}

// Save validates the row. On success its errors, snapshot and status are
// cleared and OnRowSaved hooks run. On failure nothing is cleared and the
// validation error is returned.
func (s *Store) Save(ctx context.Context, key string) error {
	row, ok := s.Row(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRowNotFound, key)
	}
	if _, err := s.Validate(ctx, row); err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.rows[key]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrRowNotFound, key)
	}
	delete(s.errors, key)
	delete(s.snapshots, key)
	delete(s.status, key)
	saved := s.rows[key].Clone()
	hooks := append([]RowSavedFunc(nil), s.onSaved...)
	s.mu.Unlock()

	s.publish(Event{Kind: EventRowSaved, Key: key})
	for _, fn := range hooks {
		fn(key, saved.Clone())
	}
	return nil
}

// TrySave is Save for callers that only need a flag. Failures are logged.
func (s *Store) TrySave(ctx context.Context, key string) bool {
	if err := s.Save(ctx, key); err != nil {
		s.logger.Debug("save failed", "key", key, "error", err)
		return false
	}
	return true
}

// RemoveRow notifies row-list hooks, deletes the row with its errors,
// status and snapshot, then runs OnRowDeleted hooks.
func (s *Store) RemoveRow(key string) {
	s.cancelTasks(key)

	s.mu.RLock()
	listHooks := append([]RowListChangedFunc(nil), s.onListChanged...)
	deleteHooks := append([]RowDeletedFunc(nil), s.onDeleted...)
	list := make([]Row, 0, len(s.order))
	for _, k := range s.order {
		if k != key {
			list = append(list, Row{s.keyField: k})
		}
	}
	s.mu.RUnlock()

	for _, fn := range listHooks {
		fn(list, key, ChangeDelete)
	}

	s.mu.Lock()
	_, existed := s.rows[key]
	s.deleteLocked(key)
	s.mu.Unlock()

	if existed {
		s.publish(Event{Kind: EventRowDeleted, Key: key})
	}
	for _, fn := range deleteHooks {
		fn(key)
	}
}
