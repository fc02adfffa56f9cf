package cli

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/automation/internal/config"
	"github.com/matzehuels/automation/pkg/cache"
	"github.com/matzehuels/automation/pkg/composite"
	"github.com/matzehuels/automation/pkg/dom"
	"github.com/matzehuels/automation/pkg/errors"
	"github.com/matzehuels/automation/pkg/model"
	"github.com/matzehuels/automation/pkg/snapshot"
	"github.com/matzehuels/automation/pkg/source"
	"github.com/matzehuels/automation/pkg/spot"
	"github.com/matzehuels/automation/pkg/vtree"
)

// app is a composition root assembled from configuration, together with
// the resources it owns.
type app struct {
	cfg    config.Config
	root   *composite.Root
	target *dom.Element
	cache  cache.Cache
	mongo  *source.Mongo
	logger *log.Logger

	// snapshots is nil unless snapshot.id is configured.
	snapshots snapshot.Store
}

// loadConfig reads the config file named by flag, falling back to
// ./automation.toml and then to defaults.
func loadConfig(flag string) (config.Config, error) {
	path, err := configPath(flag)
	if err != nil {
		return config.Config{}, err
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// newApp wires cache, sources, kind, template and root. The caller owns the
// result and must Close it.
func newApp(ctx context.Context, cfg config.Config, logger *log.Logger, noCache bool) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	c, err := buildCache(ctx, cfg.Cache, noCache)
	if err != nil {
		return nil, err
	}
	a.cache = c

	if err := a.buildSnapshots(); err != nil {
		a.Close()
		return nil, err
	}

	mux, err := a.buildSources(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var target *dom.Element
	if cfg.Render.TargetTag != "" {
		target = dom.NewElement(cfg.Render.TargetTag)
	}
	opts := spot.Options{
		Target: target,
		Kind:   buildKind(cfg, mux),
		Logger: logger,
		Root: composite.Config{
			ChannelProtocol:  cfg.Channel.Protocol,
			FetchConcurrency: cfg.Source.Concurrency,
		},
	}
	switch cfg.Render.Kind {
	case config.KindList:
		l, err := spot.NewList(opts)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.root, a.target = l.Root, l.Element()
	case config.KindNews:
		n, err := spot.NewNews(opts)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.root, a.target = n.Root, n.Element()
	default:
		tpl, err := buildTemplate(cfg.Render)
		if err != nil {
			a.Close()
			return nil, err
		}
		if target == nil {
			target = dom.NewElement("div")
		}
		rc := opts.Root
		rc.Target, rc.Kind, rc.Template, rc.Logger = target, opts.Kind, tpl, logger
		root, err := composite.NewRoot(rc)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.root, a.target = root, target
	}
	return a, nil
}

func buildCache(ctx context.Context, cfg config.CacheConfig, noCache bool) (cache.Cache, error) {
	if noCache || cfg.Backend == config.CacheNone {
		return cache.NewNullCache(), nil
	}
	switch cfg.Backend {
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return cache.Instrument(rc, "fetch"), nil
	default:
		var c cache.Cache
		var err error
		if cfg.Dir == "" {
			c, err = newCache(false)
		} else {
			c, err = cache.NewFileCache(cfg.Dir)
		}
		if err != nil {
			return nil, err
		}
		return cache.Instrument(c, "fetch"), nil
	}
}

func (a *app) buildSnapshots() error {
	cfg := a.cfg.Snapshot
	if cfg.ID == "" {
		return nil
	}
	if cfg.Backend == config.SnapshotCache {
		a.snapshots = snapshot.NewCacheStore(a.cache)
		return nil
	}
	fs, err := snapshot.NewFileStore(cfg.Dir)
	if err != nil {
		return err
	}
	a.snapshots = fs
	return nil
}

// restore mounts the children of the configured snapshot, if one was saved.
func (a *app) restore(ctx context.Context) (int, error) {
	if a.snapshots == nil {
		return 0, nil
	}
	snap, err := a.snapshots.Get(ctx, a.cfg.Snapshot.ID)
	if err != nil {
		return 0, err
	}
	return snapshot.Restore(ctx, a.root, snap)
}

// buildSources registers http, https and file sources, plus mongo when a
// URI is configured.
func (a *app) buildSources(ctx context.Context) (*source.Mux, error) {
	cfg := a.cfg
	httpSrc := source.NewHTTP(source.HTTPOptions{
		Client:   &http.Client{Timeout: cfg.Source.Timeout},
		Cache:    a.cache,
		Keyer:    cache.NewScopedKeyer(nil, cfg.Render.Kind+":"),
		TTL:      cfg.Cache.TTL,
		Headers:  cfg.Source.Headers,
		Attempts: cfg.Source.Attempts,
		Logger:   a.logger.With("source", "http"),
	})
	mux := source.NewMux()
	mux.Handle("http", httpSrc)
	mux.Handle("https", httpSrc)
	mux.Handle("file", source.File)

	if cfg.Source.MongoURI != "" {
		m, err := source.NewMongo(ctx, cfg.Source.MongoURI, a.logger.With("source", "mongo"))
		if err != nil {
			return nil, err
		}
		a.mongo = m
		mux.Handle(source.MongoScheme, m)
	}
	return mux, nil
}

func buildKind(cfg config.Config, src model.Source) *model.Kind {
	k := &model.Kind{
		Name:   cfg.Render.Kind,
		Parse:  model.ParseJSON,
		Source: src,
	}
	if cfg.Source.URLAttr != "" {
		k.URL = model.AttrURL(cfg.Source.URLAttr)
	}
	if cfg.Channel.URLAttr != "" {
		k.ChannelURL = model.AttrURL(cfg.Channel.URLAttr)
	}
	return k
}

func buildTemplate(cfg config.RenderConfig) (vtree.Template, error) {
	switch cfg.Kind {
	case config.KindList:
		return spot.HeadingTemplate, nil
	case config.KindNews:
		return spot.WidgetTemplate, nil
	}
	src, err := cfg.TemplateSource()
	if err != nil {
		return nil, err
	}
	return vtree.HTMLTemplate(cfg.Kind, src)
}

// seed adds the children listed in a JSON array file. It must run on the
// root's control thread.
func (a *app) seed(path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	items, err := readItems(path)
	if err != nil {
		return 0, err
	}
	for i, attrs := range items {
		if _, err := a.root.Add(attrs); err != nil {
			return i, err
		}
	}
	return len(items), nil
}

// readItems decodes a JSON array of objects, or a single object.
func readItems(path string) ([]model.Attributes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", path)
	}
	var items []model.Attributes
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}
	attrs, err := model.ParseJSON(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "%s: want a JSON object or array of objects", path)
	}
	return []model.Attributes{attrs}, nil
}

// Close releases the root and the backends.
func (a *app) Close() error {
	var first error
	if a.root != nil {
		first = a.root.Close()
	}
	if a.snapshots != nil {
		if err := a.snapshots.Close(); err != nil && first == nil {
			first = err
		}
	}
	if a.mongo != nil {
		if err := a.mongo.Close(context.Background()); err != nil && first == nil {
			first = err
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
