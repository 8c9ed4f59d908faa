package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "amalgraph.toml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[engine]
thread-pool-size = 8
`)
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Engine.ThreadPoolSize != 8 {
		t.Fatalf("thread-pool-size = %d", c.Engine.ThreadPoolSize)
	}
	if c.Asset.DefaultExtension != ".amlg" {
		t.Fatalf("default extension = %q", c.Asset.DefaultExtension)
	}
}

func TestValidateRejectsNegativeBudget(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[constraints]
max-execution-steps = -5
`)
	if _, err := Load(dir); err == nil {
		t.Fatalf("negative budget must not validate")
	}
}

func TestValidateRejectsBadExtension(t *testing.T) {
	c := Default()
	c.Asset.DefaultExtension = "amlg"
	if err := Validate(c); err == nil {
		t.Fatalf("extension without dot must not validate")
	}
}

func TestValidateCachePathNeedsRetention(t *testing.T) {
	c := Default()
	c.Engine.ContentCachePath = "/tmp/cache.db"
	c.Engine.ContentCacheMaxAgeMinutes = 0
	if err := Validate(c); err == nil {
		t.Fatalf("cache path without retention must not validate")
	}
}

func TestFindAndLoadFallsBackToDefaults(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if c.Engine.GCHighWater != Default().Engine.GCHighWater {
		t.Fatalf("expected defaults when no file present")
	}
}
