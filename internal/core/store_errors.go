package core

import "sort"

// UpdateErrors merges per-field messages into the row's error entry.
func (s *Store) UpdateErrors(key string, fieldErrors map[string][]string) {
	fields := make([]string, 0, len(fieldErrors))
	s.mu.Lock()
	em := s.errors[key]
	if em == nil {
		em = make(map[string][]string)
		s.errors[key] = em
	}
	for f, msgs := range fieldErrors {
		em[f] = append([]string(nil), msgs...)
		fields = append(fields, f)
	}
	s.mu.Unlock()

	sort.Strings(fields)
	s.publish(Event{Kind: EventErrorsChanged, Key: key, Fields: fields})
}

// ClearFieldErrors removes errors for the given fields, or the row's whole
// error entry when no fields are given.
func (s *Store) ClearFieldErrors(key string, fields ...string) {
	s.mu.Lock()
	if len(fields) == 0 {
		delete(s.errors, key)
	} else if em := s.errors[key]; em != nil {
		for _, f := range fields {
			delete(em, f)
		}
		if len(em) == 0 {
			delete(s.errors, key)
		}
	}
	s.mu.Unlock()
	s.publish(Event{Kind: EventErrorsChanged, Key: key, Fields: fields})
}

// ClearAllErrors removes every error entry. With reinit the map is
// reallocated instead of emptied.
func (s *Store) ClearAllErrors(reinit bool) {
	s.mu.Lock()
	if reinit {
		s.errors = make(map[string]map[string][]string)
	} else {
		for k := range s.errors {
			delete(s.errors, k)
		}
	}
	s.mu.Unlock()
	s.publish(Event{Kind: EventErrorsChanged})
}

// Errors returns a copy of the row's field errors.
func (s *Store) Errors(key string) map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneErrorMap(s.errors[key])
}

// AllErrors returns a copy of the whole error map.
func (s *Store) AllErrors() map[string]map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[string][]string, len(s.errors))
	for k, em := range s.errors {
		out[k] = cloneErrorMap(em)
	}
	return out
}

// commitErrors stores the outcome of validating fields for key. Fields
// with errors get their messages; the others lose their entry. Nothing is
// written for a key that no longer has a row.
func (s *Store) commitErrors(key string, fields []string, errs []ValidationError) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[key]; !ok {
		return false
	}
	s.commitErrorsLocked(key, fields, errs)
	return true
}

func (s *Store) commitErrorsLocked(key string, fields []string, errs []ValidationError) {
	byField := groupByField(errs)
	em := s.errors[key]
	if em == nil {
		em = make(map[string][]string)
	}
	for _, f := range fields {
		list := byField[f]
		if len(list) == 0 {
			delete(em, f)
			continue
		}
		msgs := make([]string, 0, len(list))
		for _, ve := range list {
			msgs = append(msgs, ve.Message)
		}
		em[f] = msgs
	}
	if len(em) == 0 {
		delete(s.errors, key)
		return
	}
	s.errors[key] = em
}
