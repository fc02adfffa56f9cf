package cli

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/automation/internal/config"
	"github.com/matzehuels/automation/pkg/errors"
	"github.com/matzehuels/automation/pkg/model"
	"github.com/matzehuels/automation/pkg/snapshot"
)

func TestReadItems(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
		want    []model.Attributes
		wantErr bool
	}{
		{"array", `[{"title":"a"},{"title":"b"}]`, []model.Attributes{{"title": "a"}, {"title": "b"}}, false},
		{"object", `{"title":"a"}`, []model.Attributes{{"title": "a"}}, false},
		{"scalar", `42`, nil, true},
		{"broken", `{`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, dir, tt.name+".json", tt.content)
			got, err := readItems(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("readItems() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildKind(t *testing.T) {
	cfg := config.Default()
	k := buildKind(cfg, nil)
	attrs := model.Attributes{"url": "https://x/1", "channel": "ws://x/channel/news"}
	if k.URL(attrs) != "https://x/1" || k.ChannelURL(attrs) != "ws://x/channel/news" {
		t.Error("kind does not read the configured attributes")
	}

	cfg.Channel.URLAttr = ""
	if k := buildKind(cfg, nil); k.ChannelURL != nil {
		t.Error("empty channel attribute should disable channels")
	}
}

func TestBuildCache(t *testing.T) {
	ctx := context.Background()
	c, err := buildCache(ctx, config.CacheConfig{Backend: config.CacheFile, Dir: t.TempDir()}, false)
	if err != nil {
		t.Fatal(err)
	}
	_ = c.Set(ctx, "k", []byte("v"), 0)
	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Error("file cache did not store")
	}

	c, _ = buildCache(ctx, config.CacheConfig{Backend: config.CacheFile, Dir: t.TempDir()}, true)
	_ = c.Set(ctx, "k", []byte("v"), 0)
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Error("--no-cache should disable caching")
	}

	if _, err := buildCache(ctx, config.CacheConfig{Backend: config.CacheRedis}, false); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("redis without addr error = %v", err)
	}
}

func TestNewApp(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		render config.RenderConfig
		want   string
	}{
		{"list", config.RenderConfig{Kind: config.KindList}, `<ul><li class="spot-heading">a</li></ul>`},
		{"custom", config.RenderConfig{Kind: config.KindCustom, Template: `<p>{{.title}}</p>`, TargetTag: "main"}, `<main><p>a</p></main>`},
		{"custom file", config.RenderConfig{Kind: config.KindCustom, TemplateFile: writeFile(t, dir, "t.html", `<b>{{.title}}</b>`)}, `<div><b>a</b></div>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Render = tt.render
			cfg.Cache.Backend = config.CacheNone
			a, err := newApp(context.Background(), cfg, newLogger(io.Discard, LogInfo), false)
			if err != nil {
				t.Fatalf("newApp() error: %v", err)
			}
			defer a.Close()

			n, err := a.seed(writeFile(t, dir, tt.name+".json", `{"title":"a"}`))
			if err != nil || n != 1 {
				t.Fatalf("seed() = %d, %v", n, err)
			}
			if got := a.target.HTML(); got != tt.want {
				t.Errorf("HTML() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewAppBadMongo(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Backend = config.CacheNone
	cfg.Source.MongoURI = "not-a-uri"
	if _, err := newApp(context.Background(), cfg, newLogger(io.Discard, LogInfo), false); err == nil {
		t.Error("newApp with a bad mongo uri should fail")
	}
}


func TestAppSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		backend string
	}{
		{"file", config.SnapshotFile},
		{"cache", config.SnapshotCache},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Cache = config.CacheConfig{Backend: config.CacheFile, Dir: t.TempDir()}
			cfg.Snapshot = config.SnapshotConfig{ID: "front", Backend: tt.backend, Dir: t.TempDir(), TTL: time.Hour}

			first, err := newApp(ctx, cfg, newLogger(io.Discard, LogInfo), false)
			if err != nil {
				t.Fatal(err)
			}
			if n, err := first.restore(ctx); n != 0 || err != nil {
				t.Fatalf("restore() with nothing saved = %d, %v", n, err)
			}
			for _, title := range []string{"a", "b"} {
				if _, err := first.root.Add(model.Attributes{"title": title}); err != nil {
					t.Fatal(err)
				}
			}
			snap, err := snapshot.Capture(ctx, first.root, "front", time.Hour)
			if err != nil {
				t.Fatal(err)
			}
			if err := first.snapshots.Set(ctx, snap); err != nil {
				t.Fatal(err)
			}
			first.Close()

			second, err := newApp(ctx, cfg, newLogger(io.Discard, LogInfo), false)
			if err != nil {
				t.Fatal(err)
			}
			defer second.Close()
			if n, err := second.restore(ctx); n != 2 || err != nil {
				t.Fatalf("restore() = %d, %v", n, err)
			}
			want := `<ul><li class="spot-heading">a</li><li class="spot-heading">b</li></ul>`
			if got := second.target.HTML(); got != want {
				t.Errorf("HTML() = %s, want %s", got, want)
			}
		})
	}
}
