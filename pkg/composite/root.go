package composite

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/matzehuels/automation/pkg/container"
	"github.com/matzehuels/automation/pkg/dom"
	"github.com/matzehuels/automation/pkg/errors"
	"github.com/matzehuels/automation/pkg/events"
	"github.com/matzehuels/automation/pkg/model"
	"github.com/matzehuels/automation/pkg/vtree"
)

// DefaultChannelProtocol is the websocket sub-protocol offered when
// Config.ChannelProtocol is empty.
const DefaultChannelProtocol = "automation"

// Target is where mounted children are appended.
type Target interface {
	AppendChild(el *dom.Element)
}

// Config configures a Root.
type Config struct {
	// Target receives each new child's element. Required.
	Target Target

	// Kind describes the models the root creates. A nil kind creates plain
	// models without fetch or channel capabilities.
	Kind *model.Kind

	// Template renders a model's attributes to markup. Required.
	Template vtree.Template

	// Logger defaults to log.Default().
	Logger *log.Logger

	// Differ and Patcher default to vtree.DefaultDiffer and dom.DefaultPatcher.
	Differ  vtree.Differ
	Patcher dom.Patcher

	// Dialer opens realtime channels (websocket.DefaultDialer if nil).
	Dialer *websocket.Dialer

	// ChannelProtocol is the sub-protocol offered on dial.
	ChannelProtocol string

	// ChannelHandlers overrides the channel lifecycle callbacks.
	ChannelHandlers ChannelHandlers

	// FetchConcurrency bounds concurrent refetches on forceUpdateAll.
	FetchConcurrency int

	// QueueSize is the initial capacity of the control loop queue.
	QueueSize int
}

// Root owns a keyed child container and keeps every child's element in sync
// with its model.
//
// A Root is single-threaded: Add, Composite, Remove and model mutations must
// happen on its control thread. When Run is active that is the Run goroutine
// and other goroutines go through Do; otherwise it is the owner, which
// drains asynchronous completions with Flush.
type Root struct {
	id       uuid.UUID
	cfg      Config
	logger   *log.Logger
	engine   *Engine
	children *container.Container
	bus      *events.Bus
	loop     *Loop
	nextCID  int
	ctx      context.Context
	cancel   context.CancelFunc
	closed   bool
}

// NewRoot validates cfg and creates a root with an empty container and its
// own event bus, wired so that "forceUpdateAll" refetches every child.
func NewRoot(cfg Config) (*Root, error) {
	if cfg.Target == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "render target is required")
	}
	if cfg.Template == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "template is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.ChannelProtocol == "" {
		cfg.ChannelProtocol = DefaultChannelProtocol
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New()
	logger := cfg.Logger.With("root", id.String()[:8])
	r := &Root{
		id:       id,
		cfg:      cfg,
		logger:   logger,
		engine:   NewEngine(vtree.NewBuilder(cfg.Template), cfg.Differ, cfg.Patcher, logger),
		children: container.New(),
		bus:      events.New(),
		loop:     NewLoop(cfg.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
	r.bus.On(events.ForceUpdateAll, func(...any) { r.Refresh() })
	return r, nil
}

// ID identifies the root in logs.
func (r *Root) ID() uuid.UUID { return r.id }

// Logger returns the root's logger.
func (r *Root) Logger() *log.Logger { return r.logger }

// Add creates a model from initial, mounts its element at the end of the
// render target and returns the model. Mutating the model re-renders the
// child. When the model exposes a ws:// or wss:// channel URL a realtime
// channel is opened for it.
//
// The cid is reserved before any callback can run, so it is never reused,
// not even when Add fails.
func (r *Root) Add(initial model.Attributes) (*model.Model, error) {
	if r.closed {
		return nil, errors.New(errors.ErrCodeInternal, "root is closed")
	}

	m := r.cfg.Kind.New()
	attrs := initial.Clone()
	delete(attrs, model.KeyCID)
	if err := m.SetAll(attrs, model.Silent()); err != nil {
		return nil, err
	}

	cid := r.nextCID
	r.nextCID++
	if err := m.AssignCID(cid); err != nil {
		return nil, err
	}

	tree, el, err := r.engine.Mount(cid, m.Attributes())
	if err != nil {
		r.logger.Error("mount failed", "cid", cid, "err", err)
		return nil, err
	}

	binding := m.On(model.EventChange, func() {
		r.engine.MarkDirty(cid)
		if _, err := r.Composite(cid); err != nil {
			r.logger.Warn("composite failed", "cid", cid, "err", err)
		}
	})
	entry := container.Entry{CID: cid, Model: m, Tree: tree, Element: el, Binding: binding}
	if err := r.children.AddEntry(entry); err != nil {
		binding.Release()
		r.engine.Forget(cid)
		r.logger.Error("register child", "cid", cid, "err", err)
		return nil, err
	}
	r.cfg.Target.AppendChild(el)

	if url, ok := m.ChannelURL(); ok {
		ch := r.openChannel(cid, url)
		_ = r.children.SetChannel(cid, ch)
	}
	r.logger.Debug("mounted", "cid", cid, "kind", kindName(r.cfg.Kind))
	return m, nil
}

func kindName(k *model.Kind) string {
	if k == nil || k.Name == "" {
		return "model"
	}
	return k.Name
}

// Composite reconciles cid with its model. A cid that is no longer
// registered is a no-op: change notifications may still be in flight after
// removal.
func (r *Root) Composite(cid int) (vtree.PatchSet, error) {
	ps, err := r.engine.Composite(r.children, cid)
	if errors.Is(err, errors.ErrCodeUnknownChild) {
		r.logger.Debug("composite skipped", "cid", cid, "reason", "unknown child")
		return nil, nil
	}
	return ps, err
}

// Remove unregisters cid: it releases the change binding, closes the channel
// and detaches the element from the render target. Removing twice is safe.
func (r *Root) Remove(cid int) bool {
	el, ok := r.children.Element(cid)
	if !ok {
		return false
	}
	r.children.Remove(cid)
	r.engine.Forget(cid)
	el.Detach()
	r.logger.Debug("removed", "cid", cid)
	return true
}

// Len returns the number of children.
func (r *Root) Len() int { return r.children.Len() }

// Container exposes the child store.
func (r *Root) Container() *container.Container { return r.children }

// Events returns the root's event bus.
func (r *Root) Events() *events.Bus { return r.bus }

// State returns the reconciliation state of cid.
func (r *Root) State(cid int) (State, bool) { return r.engine.State(cid) }

// Model returns the model for cid.
func (r *Root) Model(cid int) (*model.Model, bool) { return r.children.Model(cid) }

// Channel returns the realtime channel of cid, if it has one.
func (r *Root) Channel(cid int) (*Channel, bool) {
	ch, ok := r.children.Channel(cid)
	if !ok {
		return nil, false
	}
	c, ok := ch.(*Channel)
	return c, ok
}

// Refresh refetches every fetchable child. Failures are logged as warnings.
// The returned channel closes once every completion was posted to the loop.
func (r *Root) Refresh() <-chan struct{} {
	return r.children.FetchAll(r.ctx, r.loop, container.FetchOptions{
		Concurrency: r.cfg.FetchConcurrency,
		OnError: func(cid int, err error) {
			r.logger.Warn("refetch failed", "cid", cid, "err", err)
		},
	})
}

// Post schedules fn on the control thread.
func (r *Root) Post(fn func()) { r.loop.Post(fn) }

// Do runs fn on the control thread and waits for it.
func (r *Root) Do(ctx context.Context, fn func() error) error { return r.loop.Do(ctx, fn) }

// Run makes the calling goroutine the control thread until ctx is cancelled
// or the root is closed.
func (r *Root) Run(ctx context.Context) error { return r.loop.Run(ctx) }

// Running reports whether a goroutine owns the control thread.
func (r *Root) Running() bool { return r.loop.Running() }

// Start runs the control thread on a new goroutine; see [Loop.Start].
func (r *Root) Start(ctx context.Context) <-chan error { return r.loop.Start(ctx) }

// Flush runs pending asynchronous completions on the calling goroutine.
func (r *Root) Flush() int { return r.loop.Flush() }

// Close closes every channel, cancels in-flight fetches and tears down the
// event bus. Children stay mounted. Close is idempotent.
func (r *Root) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.cancel()
	for _, cid := range r.children.CIDs() {
		if ch, ok := r.children.Channel(cid); ok {
			_ = ch.Close()
		}
	}
	r.bus.Close()
	r.loop.Close()
	return nil
}
