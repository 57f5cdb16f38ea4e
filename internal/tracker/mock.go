package tracker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MockTracker is an in-memory Tracker for tests and dry runs.
// The *Err hooks inject failures; they are consulted on every call.
type MockTracker struct {
	mu     sync.Mutex
	repo   string
	next   int
	items  map[int]*Item
	labels map[string]Label

	EnsureLabelErr  error
	CreateLabelFail map[string]bool
	CreateErr       func(title string, labels []string) error
	ListErr         error
	CloseErr        func(number int) error

	CreateCalls int
	CloseCalls  map[int]int
}

// NewMockTracker returns an empty tracker whose URLs look like repo's.
func NewMockTracker(repo string) *MockTracker {
	return &MockTracker{
		repo:            repo,
		next:            1,
		items:           make(map[int]*Item),
		labels:          make(map[string]Label),
		CreateLabelFail: make(map[string]bool),
		CloseCalls:      make(map[int]int),
	}
}

func (m *MockTracker) EnsureLabel(ctx context.Context, label Label) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnsureLabelErr != nil {
		return false, m.EnsureLabelErr
	}
	key := strings.ToLower(label.Name)
	if _, ok := m.labels[key]; ok {
		return true, nil
	}
	if m.CreateLabelFail[key] {
		return false, nil
	}
	m.labels[key] = label
	return true, nil
}

// HasLabelDefinition reports whether EnsureLabel created name.
func (m *MockTracker) HasLabelDefinition(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.labels[strings.ToLower(name)]
	return ok
}

func (m *MockTracker) FindOpenItemByTitle(ctx context.Context, title string) (*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	for _, n := range m.sortedNumbers() {
		it := m.items[n]
		if it.State == StateOpen && it.Title == title {
			cp := copyItem(it)
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MockTracker) CreateItem(ctx context.Context, title, body string, labels []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.CreateErr != nil {
		if err := m.CreateErr(title, labels); err != nil {
			return "", err
		}
	}
	return m.add(title, body, StateOpen, labels).URL, nil
}

// Seed inserts an item directly, bypassing hooks, and returns its number.
func (m *MockTracker) Seed(title, body, state string, labels ...string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.add(title, body, state, labels).Number
}

func (m *MockTracker) add(title, body, state string, labels []string) *Item {
	n := m.next
	m.next++
	it := &Item{
		Number: n,
		URL:    fmt.Sprintf("https://github.com/%s/issues/%d", m.repo, n),
		State:  state,
		Title:  title,
		Body:   body,
		Labels: NormalizeLabels(labels),
	}
	m.items[n] = it
	return it
}

func (m *MockTracker) ListItems(ctx context.Context, opts ListOptions) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	state := opts.State
	if state == "" {
		state = StateOpen
	}
	var out []Item
	for _, n := range m.sortedNumbers() {
		it := m.items[n]
		if state != StateAll && it.State != state {
			continue
		}
		out = append(out, copyItem(it))
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

func (m *MockTracker) AddLabels(ctx context.Context, number int, labels []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[number]
	if !ok {
		return fmt.Errorf("item #%d not found", number)
	}
	it.Labels = NormalizeLabels(append(it.Labels, labels...))
	return nil
}

func (m *MockTracker) RemoveLabels(ctx context.Context, number int, labels []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[number]
	if !ok {
		return fmt.Errorf("item #%d not found", number)
	}
	var kept []string
	for _, l := range it.Labels {
		drop := false
		for _, r := range labels {
			if strings.EqualFold(l, r) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, l)
		}
	}
	it.Labels = kept
	return nil
}

func (m *MockTracker) CloseItem(ctx context.Context, number int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalls[number]++
	if m.CloseErr != nil {
		if err := m.CloseErr(number); err != nil {
			return err
		}
	}
	it, ok := m.items[number]
	if !ok {
		return fmt.Errorf("item #%d not found", number)
	}
	it.State = StateClosed
	return nil
}

// Item returns a copy of item number.
func (m *MockTracker) Item(number int) (Item, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[number]
	if !ok {
		return Item{}, false
	}
	return copyItem(it), true
}

// Items returns copies of all items matching every given label.
func (m *MockTracker) Items(labels ...string) []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Item
	for _, n := range m.sortedNumbers() {
		it := copyItem(m.items[n])
		match := true
		for _, l := range labels {
			if !it.HasLabel(l) {
				match = false
				break
			}
		}
		if match {
			out = append(out, it)
		}
	}
	return out
}

func (m *MockTracker) sortedNumbers() []int {
	nums := make([]int, 0, len(m.items))
	for n := range m.items {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

func copyItem(it *Item) Item {
	cp := *it
	cp.Labels = append([]string(nil), it.Labels...)
	return cp
}
