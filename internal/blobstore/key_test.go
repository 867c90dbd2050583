package blobstore

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestBuildKey(t *testing.T) {
	at := time.UnixMilli(1700000000123).UTC()
	key := BuildKey(KeyParts{
		Folder:      "Scripted_Prompts",
		DisplayName: "Ada  Lovelace",
		UserID:      "42",
		PromptRef:   "TXT-001",
		At:          at,
		FileName:    "My Take (1).WAV",
	})
	want := "Scripted_Prompts/lace_42_txt-001_1700000000123_my-take-1.wav"
	if key != want {
		t.Fatalf("expected %q, got %q", want, key)
	}
}

func TestBuildKeyUnknownNameAndPathTraversal(t *testing.T) {
	key := BuildKey(KeyParts{
		Folder:    "Freeform_Prompts/",
		UserID:    "7",
		PromptRef: "3-10",
		At:        time.UnixMilli(1),
		FileName:  "../../etc/passwd",
	})
	if !strings.HasPrefix(key, "Freeform_Prompts/Unknown_7_3-10_1_") {
		t.Fatalf("unexpected key prefix %q", key)
	}
	if strings.Contains(key, "..") {
		t.Fatalf("expected traversal segments to be removed, got %q", key)
	}
}

func TestNameSuffixShortName(t *testing.T) {
	if got := nameSuffix("Bo"); got != "Bo" {
		t.Fatalf("expected short names to be kept, got %q", got)
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	store := NewMemoryStore("https://cdn.example.com/")
	ctx := context.Background()

	if _, err := store.MakePublic(ctx, "a/b c.wav"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Put(ctx, "a/b c.wav", strings.NewReader("RIFF"), 4, "audio/wav"); err != nil {
		t.Fatalf("put: %v", err)
	}
	url, err := store.MakePublic(ctx, "a/b c.wav")
	if err != nil {
		t.Fatalf("make public: %v", err)
	}
	if url != "https://cdn.example.com/a/b%20c.wav" {
		t.Fatalf("unexpected url %q", url)
	}
	if err := store.Delete(ctx, "a/b c.wav"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if store.Has("a/b c.wav") {
		t.Fatalf("expected object to be removed")
	}
}
