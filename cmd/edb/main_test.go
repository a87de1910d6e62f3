package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/e-XpertSolutions/go-edb/edb"
)

func TestRunCommands(t *testing.T) {
	ctx := context.Background()
	s, err := edb.Open(ctx, edb.NewMemoryMedium(), "s1", "salt1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	var out bytes.Buffer
	if err := run(ctx, &out, s, "set", "todos", []string{`{"title":"Buy milk"}`}); err != nil {
		t.Fatalf("set: %v", err)
	}
	key := strings.TrimSpace(out.String())
	if key == "" {
		t.Fatal("set printed no key")
	}

	out.Reset()
	if err := run(ctx, &out, s, "get", "todos", []string{key}); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != `{"title":"Buy milk"}` {
		t.Fatalf("get printed %s", got)
	}

	out.Reset()
	if err := run(ctx, &out, s, "set", "todos", []string{`{"title":"Call mom"}`, "call"}); err != nil {
		t.Fatalf("set with key: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "call" {
		t.Fatalf("set with key printed %q", got)
	}

	out.Reset()
	if err := run(ctx, &out, s, "list", "todos", nil); err != nil {
		t.Fatalf("list: %v", err)
	}
	if n := strings.Count(out.String(), "\n"); n != 2 {
		t.Fatalf("list printed %d lines, want 2: %s", n, out.String())
	}
	if !strings.Contains(out.String(), `{"key":"call","value":{"title":"Call mom"}}`) {
		t.Fatalf("list output missing record: %s", out.String())
	}

	if err := run(ctx, &out, s, "remove", "todos", []string{key}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	out.Reset()
	if err := run(ctx, &out, s, "exists", "todos", []string{key}); err != nil {
		t.Fatalf("exists: %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "false" {
		t.Fatalf("exists printed %q after remove", got)
	}
	if err := run(ctx, &out, s, "get", "todos", []string{key}); err == nil {
		t.Fatal("get of removed record succeeded")
	}
}

func TestRunInvalidInput(t *testing.T) {
	ctx := context.Background()
	s, err := edb.Open(ctx, edb.NewMemoryMedium(), "s1", "salt1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	tests := []struct {
		name  string
		cmd   string
		table string
		args  []string
	}{
		{"unknown command", "drop", "todos", nil},
		{"set without json", "set", "todos", nil},
		{"set invalid json", "set", "todos", []string{"{oops"}},
		{"get without key", "get", "todos", nil},
		{"invalid table", "list", "bad_table", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(ctx, &bytes.Buffer{}, s, tt.cmd, tt.table, tt.args); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
