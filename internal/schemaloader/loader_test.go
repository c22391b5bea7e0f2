package schemaloader_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/goliatone/go-formset/internal/schemaloader"
	"github.com/goliatone/go-formset/pkg/schema"
)

const doc = "forms:\n  - name: f\n    fields: [{name: a}]\n"

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "def.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := schemaloader.New(schemaloader.Options{}).Load(context.Background(), schema.SourceFromFile(path))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(loaded.Raw()) != doc || loaded.Format() != schema.FormatYAML {
		t.Fatalf("unexpected document %q (%s)", loaded.Raw(), loaded.Format())
	}
}

func TestLoadFS(t *testing.T) {
	files := fstest.MapFS{"defs/def.json": {Data: []byte(`{"forms": []}`)}}
	loader := schemaloader.New(schemaloader.Options{FileSystem: files})
	loaded, err := loader.Load(context.Background(), schema.SourceFromFS("defs/def.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Format() != schema.FormatJSON {
		t.Fatalf("expected json format, got %s", loaded.Format())
	}
	if _, err := loader.Load(context.Background(), schema.SourceFromFS("missing.yaml")); err == nil {
		t.Fatalf("expected error for missing entry")
	}
}

func TestLoadHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/def.yaml" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(doc))
	}))
	defer server.Close()

	src, err := schema.SourceFromURL(server.URL + "/def.yaml")
	if err != nil {
		t.Fatalf("source: %v", err)
	}

	if _, err := schemaloader.New(schemaloader.Options{}).Load(context.Background(), src); err == nil {
		t.Fatalf("expected http to be disabled by default")
	}

	loader := schemaloader.New(schemaloader.Options{HTTPClient: server.Client()})
	loaded, err := loader.Load(context.Background(), src)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(loaded.Raw()) != doc {
		t.Fatalf("unexpected payload %q", loaded.Raw())
	}

	missing, _ := schema.SourceFromURL(server.URL + "/other.yaml")
	if _, err := loader.Load(context.Background(), missing); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestLoadHTTPSizeLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("#", 64)))
	}))
	defer server.Close()

	src, _ := schema.SourceFromURL(server.URL)
	loader := schemaloader.New(schemaloader.Options{AllowHTTP: true, MaxBytes: 16})
	if _, err := loader.Load(context.Background(), src); err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Fatalf("expected size error, got %v", err)
	}
}
