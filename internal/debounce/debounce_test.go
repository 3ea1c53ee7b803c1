package debounce

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDebouncerDispatchesLatestOnly(t *testing.T) {
	var mu sync.Mutex
	var got []string
	done := make(chan struct{}, 4)

	d := New(100*time.Millisecond, func(s string) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
		done <- struct{}{}
	})

	for _, s := range []string{"p", "pa", "par", "pari", "paris"} {
		d.Trigger(s)
		time.Sleep(2 * time.Millisecond)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("debounced call never fired")
	}
	time.Sleep(200 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "paris" {
		t.Errorf("dispatched = %v, want [paris]", got)
	}
}

func TestDebouncerStop(t *testing.T) {
	fired := make(chan int, 1)
	d := New(20*time.Millisecond, func(n int) { fired <- n })

	d.Trigger(1)
	d.Stop()

	select {
	case n := <-fired:
		t.Errorf("stopped debouncer fired with %d", n)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestDefaultWindow(t *testing.T) {
	d := New(0, func(struct{}) {})
	if d.window != DefaultWindow {
		t.Errorf("window = %v, want %v", d.window, DefaultWindow)
	}
}

type fakeGeocoder struct {
	mu      sync.Mutex
	queries []string
	err     error
}

func (f *fakeGeocoder) Search(_ context.Context, query string) ([]Suggestion, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []Suggestion{{Name: query, Lat: 48.85, Lon: 2.35}}, nil
}

func TestLocationSearch(t *testing.T) {
	g := &fakeGeocoder{}
	results := make(chan []Suggestion, 2)
	ls := NewLocationSearch(g, 100*time.Millisecond, func(_ string, s []Suggestion) { results <- s })

	ls.Input("Par")
	ls.Input("Paris")

	select {
	case s := <-results:
		if len(s) != 1 || s[0].Name != "Paris" {
			t.Errorf("results = %v", s)
		}
	case <-time.After(time.Second):
		t.Fatal("no lookup dispatched")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.queries) != 1 {
		t.Errorf("queries = %v, want one", g.queries)
	}
}

func TestLocationSearchErrorKeepsResults(t *testing.T) {
	g := &fakeGeocoder{err: errors.New("offline")}
	called := make(chan struct{}, 1)
	ls := NewLocationSearch(g, 10*time.Millisecond, func(string, []Suggestion) { called <- struct{}{} })

	ls.Input("Oslo")
	select {
	case <-called:
		t.Error("onResult called after a failed lookup")
	case <-time.After(80 * time.Millisecond):
	}
}
