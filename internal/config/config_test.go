package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"EDB_CONFIG", "EDB_SALT", "EDB_PREFIX", "EDB_ITERATIONS", "EDB_MEDIUM",
		"EDB_FILE", "EDB_MONGO_URI", "EDB_MONGO_DB", "EDB_MONGO_COLLECTION",
		"EDB_LOG_LEVEL", "EDB_METRICS_TEXTFILE",
	} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("EDB_SALT", "salt1")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Store.Prefix != "@edb" {
		t.Fatalf("expected default prefix @edb, got %s", c.Store.Prefix)
	}
	if c.Store.Iterations != 100000 {
		t.Fatalf("expected default iterations 100000, got %d", c.Store.Iterations)
	}
	if c.Medium.Kind != MediumFile || c.Medium.File != "edb.db" {
		t.Fatalf("unexpected default medium %+v", c.Medium)
	}
}

func TestMissingSalt(t *testing.T) {
	clearEnv(t)
	if _, err := Load(""); err == nil {
		t.Fatal("expected error without salt")
	}
}

func TestFileAndEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "edb.yaml")
	yml := `
store:
  salt: file-salt
  prefix: app
medium:
  kind: mongo
  mongo:
    uri: mongodb://localhost:27017
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(yml), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("EDB_CONFIG", path)
	t.Setenv("EDB_PREFIX", "env")
	t.Setenv("EDB_ITERATIONS", "200000")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Store.Salt != "file-salt" {
		t.Fatalf("file value ignored for salt, got %s", c.Store.Salt)
	}
	if c.Store.Prefix != "env" {
		t.Fatalf("env override failed for prefix, got %s", c.Store.Prefix)
	}
	if c.Store.Iterations != 200000 {
		t.Fatalf("env override failed for iterations, got %d", c.Store.Iterations)
	}
	if c.Medium.Kind != MediumMongo || c.Medium.Mongo.Collection != "records" {
		t.Fatalf("unexpected medium %+v", c.Medium)
	}
	if c.Logging.Level != "debug" {
		t.Fatalf("file value ignored for log level, got %s", c.Logging.Level)
	}
}

func TestInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad iterations", map[string]string{"EDB_ITERATIONS": "many"}},
		{"unknown medium", map[string]string{"EDB_MEDIUM": "redis"}},
		{"mongo without uri", map[string]string{"EDB_MEDIUM": "mongo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("EDB_SALT", "salt1")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
