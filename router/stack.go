package router

import (
	"context"
	"sync"
)

// Stack is an in-memory Navigator keeping a page stack.
type Stack struct {
	mu    sync.Mutex
	pages []string
	// OnChange, when set, is called with the new top page after every change.
	OnChange func(top string)
}

var _ Navigator = (*Stack)(nil)

// NewStack starts with root as the only page.
func NewStack(root string) *Stack {
	return &Stack{pages: []string{root}}
}

func (s *Stack) Push(_ context.Context, url string) error {
	s.update(func() { s.pages = append(s.pages, url) })
	return nil
}

func (s *Stack) Redirect(_ context.Context, url string) error {
	s.update(func() {
		if len(s.pages) == 0 {
			s.pages = []string{url}
			return
		}
		s.pages[len(s.pages)-1] = url
	})
	return nil
}

// SwitchTab drops every page and shows the tab.
func (s *Stack) SwitchTab(_ context.Context, path string) error {
	s.update(func() { s.pages = []string{path} })
	return nil
}

// Back pops delta pages, keeping the root.
func (s *Stack) Back(_ context.Context, delta int) error {
	s.update(func() {
		keep := max(len(s.pages)-delta, 1)
		s.pages = s.pages[:keep]
	})
	return nil
}

// Current returns the top page.
func (s *Stack) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pages) == 0 {
		return ""
	}
	return s.pages[len(s.pages)-1]
}

// Pages copies the stack, bottom first.
func (s *Stack) Pages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.pages...)
}

func (s *Stack) update(fn func()) {
	s.mu.Lock()
	fn()
	top := ""
	if len(s.pages) > 0 {
		top = s.pages[len(s.pages)-1]
	}
	onChange := s.OnChange
	s.mu.Unlock()
	if onChange != nil {
		onChange(top)
	}
}
