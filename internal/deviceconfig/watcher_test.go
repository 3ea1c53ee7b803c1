package deviceconfig

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestStatusWatcherEndpoint(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"http://10.0.0.2:8123", "ws://10.0.0.2:8123/ws/status/192.168.1.40"},
		{"https://cfg.example.com/api/", "wss://cfg.example.com/api/ws/status/192.168.1.40"},
	}
	for _, tt := range tests {
		w := &StatusWatcher{BaseURL: tt.base}
		got, err := w.endpoint("192.168.1.40")
		if err != nil {
			t.Fatalf("endpoint(%q) error = %v", tt.base, err)
		}
		if got != tt.want {
			t.Errorf("endpoint(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}
}

func TestStatusWatcherWatch(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/status/192.168.1.40" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(mockStatusResponse))
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		time.Sleep(50 * time.Millisecond)
	}))
	defer server.Close()

	watcher := NewStatusWatcher(NewClient(server.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var frames []*NodeStatus
	err := watcher.Watch(ctx, "192.168.1.40", func(s *NodeStatus) { frames = append(frames, s) })
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1 (malformed frame skipped)", len(frames))
	}
	if frames[0].Address != "192.168.1.40" || len(frames[0].Instances) != 2 {
		t.Errorf("frame = %+v", frames[0])
	}
}

func TestStatusWatcherCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewStatusWatcher(NewClient(server.URL)).Watch(ctx, "192.168.1.40", func(*NodeStatus) {})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() after cancel error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Watch() did not return after cancel")
	}
}

func TestStatusWatcherUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	err := NewStatusWatcher(NewClient(server.URL)).Watch(context.Background(), "192.168.1.99", func(*NodeStatus) {})
	if !IsUnreachableError(err) {
		t.Errorf("Watch() error = %v, want unreachable", err)
	}
}
