package templates

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/jason-s-yu/quizdesk/internal/models"
)

// DefaultNames seeds the template on first run.
var DefaultNames = []string{
	"Подготовить дипломы",
	"Написать сценарий",
	"Подписать список на пропуски",
}

// ErrNoSuchTask is returned when removing a template entry that does not exist.
var ErrNoSuchTask = errors.New("template task not found")

// List is the process-wide template task list with write-through persistence.
// Editing it never touches games that already exist.
type List struct {
	mu        sync.RWMutex
	store     Store
	names     []string
	listeners map[int]func(names []string)
	nextID    int
}

// Load reads the list from store, seeding and saving DefaultNames when the
// store has never been written.
func Load(ctx context.Context, store Store) (*List, error) {
	names, present, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !present {
		names = append([]string{}, DefaultNames...)
		if err := store.Save(ctx, names); err != nil {
			return nil, err
		}
	}
	return &List{store: store, names: names, listeners: map[int]func([]string){}}, nil
}

// Names returns a copy of the current list.
func (l *List) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string{}, l.names...)
}

// OnChange registers fn to be called with the new list after every change.
// The returned func removes it.
func (l *List) OnChange(fn func(names []string)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.listeners, id)
	}
}

// Add appends name to the end of the list.
func (l *List) Add(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		verr := &models.ValidationError{}
		verr.Add(models.FieldName, models.MsgNameRequired)
		return verr
	}
	return l.replace(ctx, func(cur []string) ([]string, error) {
		return append(cur, name), nil
	})
}

// RemoveAt deletes the entry at index.
func (l *List) RemoveAt(ctx context.Context, index int) error {
	return l.replace(ctx, func(cur []string) ([]string, error) {
		if index < 0 || index >= len(cur) {
			return nil, ErrNoSuchTask
		}
		return append(cur[:index], cur[index+1:]...), nil
	})
}

// Remove deletes the first entry equal to name.
func (l *List) Remove(ctx context.Context, name string) error {
	return l.replace(ctx, func(cur []string) ([]string, error) {
		for i, n := range cur {
			if n == name {
				return append(cur[:i], cur[i+1:]...), nil
			}
		}
		return nil, ErrNoSuchTask
	})
}

// replace computes the next list from a copy of the current one, saves it,
// and only then swaps it in.
func (l *List) replace(ctx context.Context, next func(cur []string) ([]string, error)) error {
	l.mu.Lock()
	updated, err := next(append([]string{}, l.names...))
	if err != nil {
		l.mu.Unlock()
		return err
	}
	if err := l.store.Save(ctx, updated); err != nil {
		l.mu.Unlock()
		return err
	}
	l.names = updated
	listeners := make([]func([]string), 0, len(l.listeners))
	for i := 0; i < l.nextID; i++ {
		if fn, ok := l.listeners[i]; ok {
			listeners = append(listeners, fn)
		}
	}
	snapshot := append([]string{}, updated...)
	l.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
	return nil
}
