package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ahmetcoskunkizilkaya/fellowship/internal/access"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/config"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/content"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/identity"
	"github.com/ahmetcoskunkizilkaya/fellowship/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

const testSecret = "gateway-secret"

type fakeUsers struct {
	mu    sync.Mutex
	users map[string]identity.User
}

func (f *fakeUsers) Get(_ context.Context, uid string) (identity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[uid]
	if !ok {
		return identity.User{}, errors.New("user not found")
	}
	return u, nil
}

func (f *fakeUsers) set(u identity.User) {
	f.mu.Lock()
	f.users[u.UID] = u
	f.mu.Unlock()
}

func token(t *testing.T, uid string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": uid,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

type fixture struct {
	docs  *store.PushStore
	users *fakeUsers
	url   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	docs := store.NewMemory()
	users := &fakeUsers{users: map[string]identity.User{
		"member":  {UID: "member", Username: "member", Roles: identity.Roles{Approved: true}},
		"pending": {UID: "pending", Username: "pending"},
	}}
	cfg := &config.Config{JWTSecret: testSecret, WindowDefault: 5, WindowStep: 5, WindowMax: 20}
	srv := httptest.NewServer(NewServer(docs, users, cfg, nil).Handler())
	t.Cleanup(func() {
		srv.Close()
		docs.Close()
	})
	return &fixture{docs: docs, users: users, url: "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"}
}

func (f *fixture) seed(t *testing.T, n int) {
	t.Helper()
	c := content.Messages()
	for i := range n {
		d := content.Draft{Text: fmt.Sprintf("message %d", i)}
		if _, err := f.docs.Append(context.Background(), c.Path, content.Record(c, d, "member", "member", int64(1000+i), nil)); err != nil {
			t.Fatal(err)
		}
	}
}

func readUntil(t *testing.T, conn *websocket.Conn, ok func(Frame) bool) Frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if ok(frame) {
			return frame
		}
	}
}

func TestSnapshotAndMore(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 7)

	conn, _, err := websocket.DefaultDialer.Dial(f.url+"?collection=messages&token="+token(t, "member"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	first := readUntil(t, conn, func(fr Frame) bool { return fr.Type == FrameSnapshot })
	if first.Window != 5 || len(first.Items) != 5 || first.Items[0].Text != "message 2" {
		t.Fatalf("first frame = %+v", first)
	}
	if !first.Items[0].Mine || first.Items[0].Author != "member" {
		t.Errorf("view = %+v", first.Items[0])
	}

	if err := conn.WriteJSON(Command{Op: OpMore}); err != nil {
		t.Fatal(err)
	}
	grown := readUntil(t, conn, func(fr Frame) bool { return len(fr.Items) == 7 })
	if grown.Window != 10 {
		t.Errorf("window = %d, want 10", grown.Window)
	}

	f.seed(t, 1)
	readUntil(t, conn, func(fr Frame) bool { return len(fr.Items) == 8 })

	if err := conn.WriteJSON(map[string]string{"op": "rewind"}); err != nil {
		t.Fatal(err)
	}
	bad := readUntil(t, conn, func(fr Frame) bool { return fr.Type == FrameError })
	if bad.Reason != "" {
		t.Errorf("unknown command ended the stream: %+v", bad)
	}
}

func TestMoreAfterBanClosesStream(t *testing.T) {
	f := newFixture(t)
	conn, _, err := websocket.DefaultDialer.Dial(f.url+"?collection=messages&token="+token(t, "member"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readUntil(t, conn, func(fr Frame) bool { return fr.Type == FrameSnapshot })

	f.users.set(identity.User{UID: "member", Roles: identity.Roles{Approved: true, Banned: true}})
	if err := conn.WriteJSON(Command{Op: OpMore}); err != nil {
		t.Fatal(err)
	}
	frame := readUntil(t, conn, func(fr Frame) bool { return fr.Type == FrameError })
	if frame.Reason != access.ReasonBanned {
		t.Errorf("reason = %q, want banned", frame.Reason)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var next Frame
	if err := conn.ReadJSON(&next); err == nil {
		t.Errorf("stream stayed open, got %+v", next)
	}
}

func TestHandshakeRejections(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		query  string
		status int
	}{
		{"no token", "?collection=messages", http.StatusUnauthorized},
		{"unknown user", "?collection=messages&token=" + token(t, "ghost"), http.StatusUnauthorized},
		{"unapproved reader", "?collection=messages&token=" + token(t, "pending"), http.StatusForbidden},
		{"unknown collection", "?collection=events&token=" + token(t, "member"), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(f.url+tt.query, nil)
			if err == nil {
				conn.Close()
				t.Fatal("handshake succeeded")
			}
			if resp == nil || resp.StatusCode != tt.status {
				t.Errorf("resp = %v, want status %d", resp, tt.status)
			}
		})
	}
}

func TestClientStopsOnRejection(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := &Client{URL: f.url, Token: token(t, "pending"), Collection: "messages"}
	err := c.Run(ctx, func(Frame) { t.Error("unexpected frame") })
	var rejected *RejectedError
	if !errors.As(err, &rejected) || rejected.Status != http.StatusForbidden {
		t.Errorf("Run err = %v, want 403 rejection", err)
	}
}

func TestClientReceivesSnapshots(t *testing.T) {
	f := newFixture(t)
	f.seed(t, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan Frame, 1)
	c := &Client{URL: f.url, Token: token(t, "member"), Collection: "messages", Window: 1}
	err := c.Run(ctx, func(fr Frame) {
		select {
		case got <- fr:
		default:
		}
		cancel()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run err = %v", err)
	}
	frame := <-got
	if frame.Type != FrameSnapshot || len(frame.Items) != 1 || frame.Items[0].Text != "message 1" {
		t.Errorf("frame = %+v", frame)
	}
	if err := c.More(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("More after Run = %v", err)
	}
}
