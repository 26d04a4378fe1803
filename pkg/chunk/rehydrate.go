package chunk

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/vango-dev/chunk/pkg/reactive"
	"github.com/vango-dev/chunk/pkg/storage"
)

// hydrate reads the stored snapshot and applies it. Every outcome,
// including a missing snapshot or an engine error, ends in finishHydration.
func (s *Store) hydrate(getter storage.Getter) {
	defer s.finishHydration()
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("hydration panicked", "chunk", s.name, "panic", p)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.engineTimeout)
	defer cancel()

	payload, ok, err := getter.Get(ctx, s.persist.key)
	if err != nil {
		s.logger.Error("hydrate failed", "chunk", s.name, "key", s.persist.key, "error", err)
		return
	}
	if !ok || payload == "" {
		return
	}
	if s.Phase() == PhaseDisposed {
		return
	}

	s.applySnapshot(payload)
}

// applySnapshot writes every persisted field found in payload in one
// transaction. Fields not in the persist list are ignored.
func (s *Store) applySnapshot(payload string) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		s.logger.Warn("ignoring malformed snapshot", "chunk", s.name, "key", s.persist.key, "error", err)
		return
	}

	reactive.TxNamed(s.name+".hydrate", func() {
		for _, field := range s.persist.fields {
			raw, ok := envelope[field]
			if !ok {
				continue
			}
			cell := s.cells[field]
			value, exact := decodeField(raw, cell.Peek())
			if !exact {
				s.logger.Debug("persisted field decoded leniently", "chunk", s.name, "field", field)
			}
			cell.Set(value)
		}
	})
}

// decodeField turns one envelope entry back into a value. Entries are
// normally JSON strings holding the field's own JSON encoding; anything else
// is treated as that encoding directly.
func decodeField(raw json.RawMessage, current any) (any, bool) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		text = string(raw)
	}
	return decodeValue(text, current)
}

// decodeValue decodes text into the type of current when possible, so an
// int field comes back as an int rather than a float64. It falls back to a
// generic decode and finally to text itself; exact is false in that last case
// or when the value's type changed.
func decodeValue(text string, current any) (value any, exact bool) {
	if text == "null" {
		return nil, true
	}

	if current != nil {
		ptr := reflect.New(reflect.TypeOf(current))
		if err := json.Unmarshal([]byte(text), ptr.Interface()); err == nil {
			return ptr.Elem().Interface(), true
		}
	}

	var generic any
	if err := json.Unmarshal([]byte(text), &generic); err == nil {
		return generic, current == nil
	}
	return text, false
}
