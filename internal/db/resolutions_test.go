package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", DSN(""))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	rec, err := NewRecorder(ctx, openMemory(t))
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, res := range []Resolution{
		{CommunityID: "coast", State: "fallback", Reason: "boom", StyleName: "Protomaps contrast"},
		{CommunityID: "coast", State: "external", External: true, StyleName: "Coast"},
		{CommunityID: "valley", State: "internal", StyleName: "Protomaps dark"},
	} {
		res.At = base.Add(time.Duration(i) * time.Minute)
		if err := rec.Record(ctx, res); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := rec.Recent(ctx, "coast", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].State != "external" || !got[0].External || got[1].Reason != "boom" {
		t.Fatalf("Recent = %+v", got)
	}
	if !got[1].At.Equal(base) {
		t.Fatalf("At = %v, want %v", got[1].At, base)
	}

	// The table is created idempotently.
	if _, err := NewRecorder(ctx, rec.db); err != nil {
		t.Fatalf("second NewRecorder: %v", err)
	}
}

func TestDSNBlocksFileAccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.txt")
	if err := os.WriteFile(path, []byte("hunter2"), 0o600); err != nil {
		t.Fatal(err)
	}

	conn := openMemory(t)
	var content string
	err := conn.QueryRow("SELECT content FROM read_text(?)", path).Scan(&content)
	if err == nil {
		t.Fatalf("read_text succeeded: %q", content)
	}

	// The database itself stays usable.
	if _, err := NewRecorder(context.Background(), conn); err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
}
