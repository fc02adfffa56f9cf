package composite

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/matzehuels/automation/pkg/errors"
	"github.com/matzehuels/automation/pkg/model"
	"github.com/matzehuels/automation/pkg/observability"
)

// ChannelHandlers are the overridable lifecycle callbacks of a realtime
// channel. They run on the root's control thread; nil fields log instead.
// The message handler is fixed and cannot be overridden.
type ChannelHandlers struct {
	OnOpen  func(ch *Channel)
	OnClose func(ch *Channel, err error)
	OnError func(ch *Channel, err error)
}

// Channel is a websocket connection bound to one child. Each inbound message
// is a JSON object whose keys are merged onto the child's model, after which
// the child is reconciled. There is no reconnect: once the transport fails
// the channel stays dead.
type Channel struct {
	root   *Root
	cid    int
	url    string
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	dead   bool
}

func (r *Root) openChannel(cid int, url string) *Channel {
	ctx, cancel := context.WithCancel(r.ctx)
	ch := &Channel{root: r, cid: cid, url: url, cancel: cancel, done: make(chan struct{})}
	go ch.run(ctx)
	return ch
}

// CID returns the child the channel is bound to.
func (ch *Channel) CID() int { return ch.cid }

// URL returns the dialed URL.
func (ch *Channel) URL() string { return ch.url }

// Done is closed when the read loop has ended.
func (ch *Channel) Done() <-chan struct{} { return ch.done }

// Alive reports whether the channel is connected and has not failed.
func (ch *Channel) Alive() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.conn != nil && !ch.closed && !ch.dead
}

func (ch *Channel) run(ctx context.Context) {
	defer close(ch.done)

	dialer := *ch.root.cfg.Dialer
	dialer.Subprotocols = []string{ch.root.cfg.ChannelProtocol}
	conn, resp, err := dialer.DialContext(ctx, ch.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if ch.closedLocally() {
			return
		}
		ch.fail(errors.Wrap(errors.ErrCodeChannelTransport, err, "dial %s", ch.url))
		return
	}

	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		_ = conn.Close()
		return
	}
	ch.conn = conn
	ch.mu.Unlock()

	observability.Channel().OnOpen(ctx, ch.cid, ch.url)
	ch.root.Post(func() { ch.opened() })

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ch.closedLocally() {
				observability.Channel().OnClose(ctx, ch.cid, nil)
				ch.root.Post(func() { ch.closedWith(nil) })
				return
			}
			ch.fail(errors.Wrap(errors.ErrCodeChannelTransport, err, "read %s", ch.url))
			return
		}
		ch.root.Post(func() { ch.handleMessage(data) })
	}
}

func (ch *Channel) closedLocally() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed
}

// fail marks the channel dead and reports err through OnError and OnClose.
func (ch *Channel) fail(err error) {
	ch.mu.Lock()
	ch.dead = true
	ch.mu.Unlock()
	observability.Channel().OnClose(context.Background(), ch.cid, err)
	ch.root.Post(func() {
		if h := ch.root.cfg.ChannelHandlers.OnError; h != nil {
			h(ch, err)
		} else {
			ch.root.logger.Error("channel error", "cid", ch.cid, "url", ch.url, "err", err)
		}
		ch.closedWith(err)
	})
}

func (ch *Channel) opened() {
	if h := ch.root.cfg.ChannelHandlers.OnOpen; h != nil {
		h(ch)
		return
	}
	ch.root.logger.Debug("channel open", "cid", ch.cid, "url", ch.url)
}

func (ch *Channel) closedWith(err error) {
	if h := ch.root.cfg.ChannelHandlers.OnClose; h != nil {
		h(ch, err)
		return
	}
	ch.root.logger.Debug("channel closed", "cid", ch.cid, "url", ch.url)
}

// handleMessage merges one inbound payload onto the bound model and forces a
// composite. It runs on the control thread.
func (ch *Channel) handleMessage(data []byte) {
	ctx := context.Background()
	m, ok := ch.root.children.Model(ch.cid)
	if !ok {
		return
	}

	var payload model.Attributes
	if err := json.Unmarshal(data, &payload); err != nil || payload == nil {
		if err == nil {
			err = errors.New(errors.ErrCodeMalformedPayload, "payload is not a JSON object")
		} else {
			err = errors.Wrap(errors.ErrCodeMalformedPayload, err, "decode payload")
		}
		observability.Channel().OnMessage(ctx, ch.cid, len(data), err)
		ch.root.logger.Warn("dropping channel message", "cid", ch.cid, "err", err)
		return
	}
	observability.Channel().OnMessage(ctx, ch.cid, len(data), nil)

	delete(payload, model.KeyCID)
	if err := m.SetAll(payload, model.Silent()); err != nil {
		ch.root.logger.Warn("merge channel payload", "cid", ch.cid, "err", err)
		return
	}
	m.Trigger(model.EventNotifyChange)
	ch.root.engine.MarkDirty(ch.cid)
	if _, err := ch.root.Composite(ch.cid); err != nil {
		ch.root.logger.Warn("composite failed", "cid", ch.cid, "err", err)
	}
}

// Send writes v as one JSON message.
func (ch *Channel) Send(v any) error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.conn == nil || ch.closed || ch.dead {
		return errors.New(errors.ErrCodeChannelTransport, "channel %s is not open", ch.url)
	}
	if err := ch.conn.WriteJSON(v); err != nil {
		return errors.Wrap(errors.ErrCodeChannelTransport, err, "send on %s", ch.url)
	}
	return nil
}

// Close ends the channel. Closing twice is a no-op.
func (ch *Channel) Close() error {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		return nil
	}
	ch.closed = true
	conn := ch.conn
	if conn != nil {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
	}
	ch.mu.Unlock()

	ch.cancel()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
