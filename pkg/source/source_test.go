package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-cmp/cmp"

	"github.com/matzehuels/automation/pkg/cache"
	"github.com/matzehuels/automation/pkg/errors"
	"github.com/matzehuels/automation/pkg/model"
)

func quiet() *log.Logger { return log.NewWithOptions(io.Discard, log.Options{}) }

func TestMux(t *testing.T) {
	mux := NewMux()
	mux.Handle("MEM", Func(func(_ context.Context, url string) ([]byte, error) {
		return []byte(url), nil
	}))
	mux.Handle("file", File)

	got, err := mux.Fetch(context.Background(), "mem://x")
	if err != nil || string(got) != "mem://x" {
		t.Errorf("Fetch(mem) = %q, %v", got, err)
	}
	if _, err := mux.Fetch(context.Background(), "ftp://x"); !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("Fetch(ftp) error = %v", err)
	}
	if diff := cmp.Diff([]string{"file", "mem"}, mux.Schemes()); diff != "" {
		t.Errorf("Schemes() mismatch (-want +got):\n%s", diff)
	}
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "news.json")
	if err := os.WriteFile(path, []byte(`{"title":"disk"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := File.Fetch(context.Background(), "file://"+path)
	if err != nil || string(got) != `{"title":"disk"}` {
		t.Errorf("Fetch() = %q, %v", got, err)
	}
	if _, err := File.Fetch(context.Background(), "file://"+filepath.Join(dir, "nope")); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("missing file error = %v", err)
	}
	if _, err := File.Fetch(context.Background(), "http://x"); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("wrong scheme error = %v", err)
	}
}

func TestHTTPFetch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("X-Token") != "secret" {
			t.Errorf("missing header, got %q", r.Header.Get("X-Token"))
		}
		switch r.URL.Path {
		case "/news/1":
			w.Write([]byte(`{"title":"remote"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fc, _ := cache.NewFileCache(t.TempDir())
	h := NewHTTP(HTTPOptions{
		Client:  srv.Client(),
		Cache:   fc,
		Headers: map[string]string{"X-Token": "secret"},
		Logger:  quiet(),
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		got, err := h.Fetch(ctx, srv.URL+"/news/1")
		if err != nil || string(got) != `{"title":"remote"}` {
			t.Fatalf("Fetch() = %q, %v", got, err)
		}
	}
	if hits.Load() != 1 {
		t.Errorf("server hit %d times, want 1 (second fetch cached)", hits.Load())
	}

	if _, err := h.Cached(ctx, srv.URL+"/news/1", true); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 2 {
		t.Errorf("refresh did not bypass the cache")
	}

	if _, err := h.Fetch(ctx, srv.URL+"/missing"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("missing document error = %v", err)
	}
}

func TestHTTPRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	h := NewHTTP(HTTPOptions{Client: srv.Client(), Attempts: 2, Logger: quiet()})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := h.Fetch(ctx, srv.URL); err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", hits.Load())
	}
}

func TestHTTPAsModelSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title":"fetched"}`))
	}))
	defer srv.Close()

	kind := &model.Kind{
		URL:    model.AttrURL("url"),
		Parse:  model.ParseJSON,
		Source: NewHTTP(HTTPOptions{Client: srv.Client(), Logger: quiet()}),
	}
	m := kind.New()
	_ = m.Set("url", srv.URL)

	raw, err := m.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := m.ApplyFetched(raw); err != nil {
		t.Fatal(err)
	}
	if m.GetString("title") != "fetched" {
		t.Errorf("title = %q", m.GetString("title"))
	}
}

func TestParseMongoURL(t *testing.T) {
	tests := []struct {
		url     string
		want    MongoRef
		wantErr bool
	}{
		{url: "mongo://site/news/42", want: MongoRef{Database: "site", Collection: "news", ID: "42"}},
		{url: "mongo://site/news/5f1d7f0b2c8b9a0001a1b2c3", want: MongoRef{Database: "site", Collection: "news", ID: "5f1d7f0b2c8b9a0001a1b2c3"}},
		{url: "mongo://site/news", wantErr: true},
		{url: "mongo:///news/1", wantErr: true},
		{url: "mongo://site/news/1/extra", wantErr: true},
		{url: "http://site/news/1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := ParseMongoURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMongoURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMongoRefFilter(t *testing.T) {
	hex := MongoRef{ID: "5f1d7f0b2c8b9a0001a1b2c3"}.filter()
	if _, ok := hex[0].Value.(string); ok {
		t.Error("hex id should be matched as an ObjectID")
	}
	plain := MongoRef{ID: "news-1"}.filter()
	if plain[0].Value != "news-1" {
		t.Errorf("plain id filter = %v", plain[0].Value)
	}
}

func TestNewMongoRequiresURI(t *testing.T) {
	if _, err := NewMongo(context.Background(), "", quiet()); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("NewMongo(\"\") error = %v", err)
	}
}

// TestMongoFetch runs against a live server when AUTOMATION_TEST_MONGO is set.
func TestMongoFetch(t *testing.T) {
	uri := os.Getenv("AUTOMATION_TEST_MONGO")
	if uri == "" {
		t.Skip("AUTOMATION_TEST_MONGO not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	m, err := NewMongo(ctx, uri, quiet())
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close(ctx)

	coll := m.client.Database("automation_test").Collection("news")
	_, _ = coll.DeleteMany(ctx, map[string]any{"_id": "n1"})
	if _, err := coll.InsertOne(ctx, map[string]any{"_id": "n1", "title": "from mongo"}); err != nil {
		t.Fatal(err)
	}

	raw, err := m.Fetch(ctx, "mongo://automation_test/news/n1")
	if err != nil {
		t.Fatal(err)
	}
	attrs, err := model.ParseJSON(raw)
	if err != nil || attrs["title"] != "from mongo" {
		t.Errorf("attrs = %v, %v", attrs, err)
	}
	if _, err := m.Fetch(ctx, "mongo://automation_test/news/missing"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("missing doc error = %v", err)
	}
}
