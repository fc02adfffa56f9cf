package cli

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, ".cache", appName); dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
}

func TestCacheDirXDG(t *testing.T) {
	custom := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", custom)

	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	if want := filepath.Join(custom, appName); dir != want {
		t.Errorf("cacheDir() with XDG_CACHE_HOME = %q, want %q", dir, want)
	}
}

func TestNewCache(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	c, err := newCache(true)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(t.Context(), "k"); ok {
		t.Error("disabled cache reported a hit")
	}

	c, err = newCache(false)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if err := c.Set(t.Context(), "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if got, ok, _ := c.Get(t.Context(), "k"); !ok || string(got) != "v" {
		t.Errorf("file cache Get = %q, %v", got, ok)
	}
}

func TestConfigPath(t *testing.T) {
	t.Chdir(t.TempDir())

	if p, _ := configPath(""); p != "" {
		t.Errorf("configPath without file = %q", p)
	}
	if p, _ := configPath("other.toml"); p != "other.toml" {
		t.Errorf("explicit configPath = %q", p)
	}
	if err := os.WriteFile(defaultConfigFile, []byte("[log]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if p, _ := configPath(""); p != defaultConfigFile {
		t.Errorf("configPath with default file = %q", p)
	}
}
