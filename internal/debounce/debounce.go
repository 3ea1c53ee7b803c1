// Package debounce coalesces bursts of input into a single delayed call.
package debounce

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/nodecfg/internal/logging"
)

// DefaultWindow is the quiet period before a pending call fires.
const DefaultWindow = 2 * time.Second

// Debouncer delays fn until no new input has arrived for the window. Each
// Trigger cancels the pending timer and arms a new one, so only the latest
// input is ever dispatched.
type Debouncer[T any] struct {
	window time.Duration
	fn     func(T)

	mu    sync.Mutex
	timer *time.Timer
}

// New creates a debouncer. A non-positive window uses DefaultWindow.
func New[T any](window time.Duration, fn func(T)) *Debouncer[T] {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer[T]{window: window, fn: fn}
}

// Trigger schedules fn(v), replacing any pending call.
func (d *Debouncer[T]) Trigger(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() { d.fn(v) })
}

// Stop cancels the pending call, if any.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Suggestion is one geocoding result.
type Suggestion struct {
	Name string
	Lat  float64
	Lon  float64
}

// Geocoder resolves a free-text place to candidate locations.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]Suggestion, error)
}

// LocationSearch debounces location queries. Dispatched lookups are never
// cancelled; whichever resolves last replaces the shown suggestions.
type LocationSearch struct {
	debouncer *Debouncer[string]
	geocoder  Geocoder
	timeout   time.Duration
	onResult  func(query string, results []Suggestion)
}

// NewLocationSearch wires a geocoder to a result callback. onResult runs on
// the lookup goroutine.
func NewLocationSearch(g Geocoder, window time.Duration, onResult func(string, []Suggestion)) *LocationSearch {
	ls := &LocationSearch{
		geocoder: g,
		timeout:  10 * time.Second,
		onResult: onResult,
	}
	ls.debouncer = New(window, ls.lookup)
	return ls
}

// Input records a keystroke's worth of query text.
func (ls *LocationSearch) Input(query string) {
	if query == "" {
		ls.debouncer.Stop()
		return
	}
	ls.debouncer.Trigger(query)
}

// Stop drops any pending lookup.
func (ls *LocationSearch) Stop() {
	ls.debouncer.Stop()
}

func (ls *LocationSearch) lookup(query string) {
	ctx, cancel := context.WithTimeout(context.Background(), ls.timeout)
	defer cancel()

	results, err := ls.geocoder.Search(ctx, query)
	if err != nil {
		logging.Warn("Location lookup failed", zap.String("query", query), zap.Error(err))
		return
	}
	ls.onResult(query, results)
}
