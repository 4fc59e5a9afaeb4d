package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSnapshotsRoundTrip(t *testing.T) {
	fs, err := NewFileSnapshots(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSnapshots failed: %v", err)
	}

	// missing key reads as empty
	payload, err := fs.Read(context.Background(), KeyCartLines)
	if err != nil || payload != nil {
		t.Fatalf("expected (nil, nil) for missing key, got (%q, %v)", payload, err)
	}

	want := []byte(`[{"id":"a"}]`)
	if err := fs.Write(context.Background(), KeyCartLines, want); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := fs.Read(context.Background(), KeyCartLines)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != string(want) {
		t.Fatalf("round trip mismatch: %q != %q", got, want)
	}

	// a rewrite fully replaces the previous payload
	replaced := []byte(`[]`)
	if err := fs.Write(context.Background(), KeyCartLines, replaced); err != nil {
		t.Fatalf("rewrite failed: %v", err)
	}
	got, _ = fs.Read(context.Background(), KeyCartLines)
	if string(got) != string(replaced) {
		t.Fatalf("expected replaced payload, got %q", got)
	}
}

func TestFileSnapshotsLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileSnapshots(dir)
	if err != nil {
		t.Fatalf("NewFileSnapshots failed: %v", err)
	}
	if err := fs.Write(context.Background(), KeyPaymentQueue, []byte(`[]`)); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != KeyPaymentQueue+".json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, filepath.Base(e.Name()))
		}
		t.Fatalf("expected only the snapshot file, got %v", names)
	}
}
