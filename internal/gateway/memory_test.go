package gateway_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/atulpatildbz/groq-speech-to-text/internal/gateway"
	"github.com/atulpatildbz/groq-speech-to-text/internal/testutil"
)

func TestMemoryGateway_Upload(t *testing.T) {
	t.Run("overwrite by name keeps the object ID", func(t *testing.T) {
		t.Parallel()
		g := gateway.NewMemoryGateway()
		g.Clock = testutil.FixedClock()
		ctx := context.Background()

		first, err := g.Upload(ctx, "folder", "note.txt", strings.NewReader("v1"), 2, nil)
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
		second, err := g.Upload(ctx, "folder", "note.txt", strings.NewReader("v2!"), 3, map[string]string{"rev": "2"})
		if err != nil {
			t.Fatalf("Upload() error = %v", err)
		}

		if second != first {
			t.Errorf("overwrite returned new ID %s, want %s", second, first)
		}
		data, _ := g.Data(first)
		if string(data) != "v2!" {
			t.Errorf("content = %q, want v2!", data)
		}
		meta, _ := g.Meta(first)
		if meta["rev"] != "2" {
			t.Errorf("meta rev = %q, want 2", meta["rev"])
		}
	})

	t.Run("size mismatch is rejected", func(t *testing.T) {
		t.Parallel()
		g := gateway.NewMemoryGateway()

		_, err := g.Upload(context.Background(), "folder", "note.txt", strings.NewReader("abc"), 99, nil)
		if err == nil {
			t.Fatal("Upload() with wrong size succeeded")
		}
	})
}

func TestMemoryGateway_List(t *testing.T) {
	t.Parallel()

	g := gateway.NewMemoryGateway()
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	g.Put("src", "a.mp3", []byte("a"), now)
	g.Put("src", "b.mp3", []byte("b"), now)
	g.Put("other", "c.mp3", []byte("c"), now)

	sub, err := g.EnsureFolder(context.Background(), "src", "nested")
	if err != nil {
		t.Fatalf("EnsureFolder() error = %v", err)
	}
	g.Put(sub, "d.mp3", []byte("d"), now)

	objects, err := g.List(context.Background(), "src")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	// Immediate children only: the two files plus the nested folder itself.
	if len(objects) != 3 {
		t.Fatalf("List() returned %d objects, want 3", len(objects))
	}
	names := map[string]bool{}
	for _, o := range objects {
		names[o.Name] = o.IsFolder
	}
	if isFolder, ok := names["nested"]; !ok || !isFolder {
		t.Errorf("nested folder missing or not a folder: %v", names)
	}
	if _, ok := names["d.mp3"]; ok {
		t.Error("List() descended into nested folder")
	}
}

func TestMemoryGateway_Move(t *testing.T) {
	t.Run("reparents the object", func(t *testing.T) {
		t.Parallel()
		g := gateway.NewMemoryGateway()
		id := g.Put("src", "a.mp3", []byte("a"), time.Now())

		if err := g.Move(context.Background(), id, "src", "archive"); err != nil {
			t.Fatalf("Move() error = %v", err)
		}

		parent, _ := g.Parent(id)
		if parent != "archive" {
			t.Errorf("parent = %q, want archive", parent)
		}
		if _, found := g.Find("src", "a.mp3"); found {
			t.Error("object still listed under src after move")
		}
	})

	t.Run("wrong source folder fails", func(t *testing.T) {
		t.Parallel()
		g := gateway.NewMemoryGateway()
		id := g.Put("src", "a.mp3", []byte("a"), time.Now())

		if err := g.Move(context.Background(), id, "elsewhere", "archive"); err == nil {
			t.Fatal("Move() from wrong folder succeeded")
		}
	})
}

func TestMemoryGateway_EnsureFolder(t *testing.T) {
	t.Parallel()

	g := gateway.NewMemoryGateway()
	ctx := context.Background()

	first, err := g.EnsureFolder(ctx, "root", "processed")
	if err != nil {
		t.Fatalf("EnsureFolder() error = %v", err)
	}
	second, err := g.EnsureFolder(ctx, "root", "processed")
	if err != nil {
		t.Fatalf("EnsureFolder() error = %v", err)
	}

	if second != first {
		t.Errorf("second EnsureFolder() returned %s, want existing %s", second, first)
	}
}

func TestMemoryGateway_Download(t *testing.T) {
	t.Parallel()

	g := gateway.NewMemoryGateway()
	id := g.Put("src", "a.mp3", []byte("audio bytes"), time.Now())

	var buf bytes.Buffer
	if err := g.Download(context.Background(), id, &buf); err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if buf.String() != "audio bytes" {
		t.Errorf("content = %q, want audio bytes", buf.String())
	}

	if err := g.Download(context.Background(), "obj-999", &buf); err == nil {
		t.Fatal("Download() of unknown ID succeeded")
	}
}
