package composite

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/matzehuels/automation/pkg/errors"
	"github.com/matzehuels/automation/pkg/model"
)

// newPushServer upgrades every request, writes msgs and then waits for the
// client to go away. The negotiated sub-protocol is sent on protocols.
func newPushServer(t *testing.T, protocols chan<- string, msgs ...string) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{Subprotocols: []string{DefaultChannelProtocol}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if protocols != nil {
			protocols <- conn.Subprotocol()
		}
		for _, msg := range msgs {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func channelKind(url string) *model.Kind {
	return &model.Kind{
		Name:       "live",
		ChannelURL: func(model.Attributes) string { return url },
	}
}

func TestChannelMergesAndComposites(t *testing.T) {
	protocols := make(chan string, 1)
	srv := newPushServer(t, protocols, `not json`, `{"title":"World","cid":7}`)

	opened := false
	r, target := newTestRoot(t, Config{
		Kind:            channelKind(wsURL(srv)),
		ChannelHandlers: ChannelHandlers{OnOpen: func(*Channel) { opened = true }},
	})
	m := mustAdd(t, r, model.Attributes{"title": "Hello"})
	notified := 0
	m.On(model.EventNotifyChange, func() { notified++ })
	changes := 0
	m.On(model.EventChange, func() { changes++ })

	waitFor(t, r, func() bool { return target.InnerHTML() == `<li>World</li>` })

	if !opened {
		t.Error("OnOpen handler not called")
	}
	if p := <-protocols; p != DefaultChannelProtocol {
		t.Errorf("sub-protocol = %q, want %q", p, DefaultChannelProtocol)
	}
	if notified != 1 {
		t.Errorf("notify-change fired %d times, want 1", notified)
	}
	if changes != 0 {
		t.Errorf("merge should be silent, change fired %d times", changes)
	}
	if cid, _ := m.CID(); cid != 0 {
		t.Errorf("payload overwrote cid: %d", cid)
	}
	ch, ok := r.Channel(0)
	if !ok || !ch.Alive() {
		t.Fatal("channel should be alive")
	}
	if err := ch.Send(map[string]string{"ack": "1"}); err != nil {
		t.Errorf("Send() error: %v", err)
	}
}

func TestChannelMalformedPayload(t *testing.T) {
	r, target := newTestRoot(t, Config{})
	m := mustAdd(t, r, model.Attributes{"title": "Hello"})
	ch := &Channel{root: r, cid: 0, url: "ws://test"}

	for _, payload := range []string{`{oops`, `null`, `[1,2]`, `"title"`} {
		ch.handleMessage([]byte(payload))
		if got := m.GetString("title"); got != "Hello" {
			t.Errorf("payload %s changed title to %q", payload, got)
		}
	}
	if got := target.InnerHTML(); got != `<li>Hello</li>` {
		t.Errorf("target = %q", got)
	}

	// The next well-formed message still goes through.
	ch.handleMessage([]byte(`{"title":"World"}`))
	if got := target.InnerHTML(); got != `<li>World</li>` {
		t.Errorf("target = %q after valid payload", got)
	}
}

func TestChannelPayloadAnyKey(t *testing.T) {
	r, target := newTestRoot(t, Config{})
	m := mustAdd(t, r, model.Attributes{"title": "Hello"})
	ch := &Channel{root: r, cid: 0, url: "ws://test"}

	ch.handleMessage([]byte(`{"title":"World","":"blank"}`))
	if got := target.InnerHTML(); got != `<li>World</li>` {
		t.Errorf("target = %q", got)
	}
	if got := m.GetString(""); got != "blank" {
		t.Errorf("empty key = %q, want blank", got)
	}
}

func TestChannelMessageAfterRemove(t *testing.T) {
	r, _ := newTestRoot(t, Config{})
	m := mustAdd(t, r, model.Attributes{"title": "a"})
	ch := &Channel{root: r, cid: 0, url: "ws://test"}
	r.Remove(0)

	ch.handleMessage([]byte(`{"title":"b"}`))
	if m.GetString("title") != "a" {
		t.Error("message applied to a removed child")
	}
}

func TestChannelDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	var gotErr error
	closed := false
	r, _ := newTestRoot(t, Config{
		Kind: channelKind(wsURL(srv)),
		ChannelHandlers: ChannelHandlers{
			OnError: func(_ *Channel, err error) { gotErr = err },
			OnClose: func(*Channel, error) { closed = true },
		},
	})
	mustAdd(t, r, model.Attributes{"title": "a"})

	waitFor(t, r, func() bool { return closed })
	if !errors.Is(gotErr, errors.ErrCodeChannelTransport) {
		t.Errorf("OnError got %v, want %s", gotErr, errors.ErrCodeChannelTransport)
	}
	ch, _ := r.Channel(0)
	if ch.Alive() {
		t.Error("failed channel reports alive")
	}
	if err := ch.Send("x"); !errors.Is(err, errors.ErrCodeChannelTransport) {
		t.Errorf("Send() on dead channel error = %v", err)
	}
}

func TestRemoveClosesChannel(t *testing.T) {
	srv := newPushServer(t, nil)
	r, _ := newTestRoot(t, Config{Kind: channelKind(wsURL(srv))})
	mustAdd(t, r, model.Attributes{"title": "a"})
	ch, ok := r.Channel(0)
	if !ok {
		t.Fatal("no channel opened for ws URL")
	}
	waitFor(t, r, ch.Alive)

	r.Remove(0)
	select {
	case <-ch.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("channel read loop did not end after Remove")
	}
	if err := ch.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}

func TestNoChannelForOtherSchemes(t *testing.T) {
	r, _ := newTestRoot(t, Config{Kind: channelKind("http://example.com/feed")})
	mustAdd(t, r, model.Attributes{"title": "a"})
	if _, ok := r.Channel(0); ok {
		t.Error("channel opened for a non-websocket URL")
	}
}
