package view

import (
	"sync"

	"github.com/jason-s-yu/quizdesk/internal/models"
)

// Synchronizer recomputes the dashboard whenever one of its inputs changes
// and hands the result to a sink. Nothing is diffed.
type Synchronizer struct {
	mu   sync.Mutex
	in   Input
	sink func(View)
	last View
}

// NewSynchronizer starts from the given inputs and renders once.
func NewSynchronizer(games []models.Game, template []string, sink func(View)) *Synchronizer {
	s := &Synchronizer{
		in:   Input{Games: games, Template: template},
		sink: sink,
	}
	s.recompute(func(*Input) {})
	return s
}

// SetGames is the mirror replacement trigger.
func (s *Synchronizer) SetGames(games []models.Game) {
	s.recompute(func(in *Input) { in.Games = games })
}

// SetTemplate is the template change trigger.
func (s *Synchronizer) SetTemplate(names []string) {
	s.recompute(func(in *Input) { in.Template = names })
}

// SetFilter is the filter/search input trigger.
func (s *Synchronizer) SetFilter(status models.Status, search string) {
	s.recompute(func(in *Input) {
		in.StatusFilter = status
		in.Search = search
	})
}

// Current returns the most recently computed view.
func (s *Synchronizer) Current() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Synchronizer) recompute(change func(in *Input)) {
	s.mu.Lock()
	change(&s.in)
	v := Compute(s.in)
	s.last = v
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		sink(v)
	}
}
