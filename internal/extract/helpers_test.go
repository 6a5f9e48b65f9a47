package extract

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pagesentry/pagesentry/internal/shared/value"
)

// fakePage is an in-memory Evaluator for pipeline tests.
type fakePage struct {
	url      string
	title    string
	text     string
	elements map[string]string // selector -> extracted value
	counts   map[string]int
	failing  map[string]bool // selectors whose queries error

	queries []string
}

func newFakePage() *fakePage {
	return &fakePage{
		url:      "https://shop.example.com/product/42",
		title:    "Example Product",
		elements: map[string]string{},
		counts:   map[string]int{},
		failing:  map[string]bool{},
	}
}

func (f *fakePage) URL(ctx context.Context) (string, error)   { return f.url, nil }
func (f *fakePage) Title(ctx context.Context) (string, error) { return f.title, nil }
func (f *fakePage) Text(ctx context.Context) (string, error)  { return f.text, nil }

func (f *fakePage) Query(ctx context.Context, selector, field string) (string, bool, error) {
	f.queries = append(f.queries, selector)
	if f.failing[selector] {
		return "", false, errors.New("selector evaluation failed")
	}
	v, ok := f.elements[selector]
	return v, ok, nil
}

func (f *fakePage) Count(ctx context.Context, selector string) (int, error) {
	if f.failing[selector] {
		return 0, errors.New("selector evaluation failed")
	}
	if n, ok := f.counts[selector]; ok {
		return n, nil
	}
	if _, ok := f.elements[selector]; ok {
		return 1, nil
	}
	return 0, nil
}

// mutablePage adds Mutator behavior: each mutation invokes onMutate so a
// test can make content appear after scrolling or reloading.
type mutablePage struct {
	*fakePage
	applied  []StrategyType
	onMutate func(n int, p *fakePage)
}

func (m *mutablePage) mutate(t StrategyType) error {
	m.applied = append(m.applied, t)
	if m.onMutate != nil {
		m.onMutate(len(m.applied), m.fakePage)
	}
	return nil
}

func (m *mutablePage) Scroll(ctx context.Context) error          { return m.mutate(StrategyScroll) }
func (m *mutablePage) Wait(ctx context.Context, d time.Duration) error { return m.mutate(StrategyWait) }
func (m *mutablePage) Reload(ctx context.Context) error          { return m.mutate(StrategyReload) }
func (m *mutablePage) Viewport(ctx context.Context, w, h int) error {
	return m.mutate(StrategyViewport)
}

// scriptedPage adds a canned RunScript implementation.
type scriptedPage struct {
	*fakePage
	scriptResult value.Value
	scriptErr    error
}

func (s *scriptedPage) RunScript(ctx context.Context, script string) (value.Value, error) {
	if s.scriptErr != nil {
		return value.Null(), s.scriptErr
	}
	return s.scriptResult, nil
}

func mustCompile(t interface{ Fatalf(string, ...interface{}) }, req Request) *Compiled {
	c, err := req.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return c
}

func reasoningContains(c Candidate, fragment string) bool {
	for _, r := range c.Reasoning {
		if strings.Contains(r, fragment) {
			return true
		}
	}
	return false
}
