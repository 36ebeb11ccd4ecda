package blob

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestS3MockLifecycle(t *testing.T) {
	store := NewS3Mock()
	ctx := context.Background()

	if store.Driver() != DriverS3 {
		t.Fatalf("driver = %q", store.Driver())
	}

	content := "<html><body>dashboard</body></html>"
	info, err := store.Put(ctx, "exports/dash.html", strings.NewReader(content), PutOptions{ContentType: "text/html"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Size != int64(len(content)) {
		t.Fatalf("size = %d, want %d", info.Size, len(content))
	}

	if _, err := store.Put(ctx, "exports/dash.html", strings.NewReader("x"), PutOptions{}); err == nil {
		t.Fatal("expected error on duplicate key")
	}

	got, rc, err := store.Get(ctx, "exports/dash.html")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != content {
		t.Fatalf("content = %q", data)
	}
	if got.ContentType != "text/html" {
		t.Fatalf("content type = %q", got.ContentType)
	}

	infos, err := store.List(ctx, "exports/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 || infos[0].Key != "exports/dash.html" {
		t.Fatalf("list = %+v", infos)
	}

	url, err := store.PresignURL(ctx, "exports/dash.html", SignedURLOptions{})
	if err != nil {
		t.Fatalf("PresignURL: %v", err)
	}
	if !strings.Contains(url, "exports/dash.html") {
		t.Fatalf("presigned url = %q", url)
	}

	if _, err := store.Delete(ctx, "exports/dash.html"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Head(ctx, "exports/dash.html"); err == nil {
		t.Fatal("Head after delete succeeded")
	}
}

func TestOpenSelectsDriver(t *testing.T) {
	ctx := context.Background()

	t.Setenv("RESEARCHDASH_BLOB_DRIVER", "memory")
	store, err := Open(ctx)
	if err != nil {
		t.Fatalf("Open memory: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Fatalf("driver = %q", store.Driver())
	}

	t.Setenv("RESEARCHDASH_BLOB_DRIVER", "fs")
	t.Setenv("RESEARCHDASH_BLOB_FS_ROOT", t.TempDir())
	store, err = Open(ctx)
	if err != nil {
		t.Fatalf("Open fs: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("driver = %q", store.Driver())
	}

	t.Setenv("RESEARCHDASH_BLOB_DRIVER", "s3")
	t.Setenv("RESEARCHDASH_BLOB_S3_BUCKET", "")
	if _, err := Open(ctx); err == nil {
		t.Fatal("expected error when s3 bucket unset")
	}

	t.Setenv("RESEARCHDASH_BLOB_DRIVER", "gcs")
	if _, err := Open(ctx); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
