package personas

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func writePersona(t *testing.T, base, dir, name string, aliases []string, images ...string) {
	t.Helper()
	full := filepath.Join(base, dir)
	if err := os.MkdirAll(full, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	meta, _ := json.Marshal(map[string]any{"name": name, "aliases": aliases})
	if err := os.WriteFile(filepath.Join(full, "metadata.json"), meta, 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	for _, img := range images {
		if err := os.WriteFile(filepath.Join(full, img), []byte("img:"+img), 0o644); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
}

func newResolver(base string) *DirectoryResolver {
	return NewDirectoryResolver(base, zerolog.Nop())
}

func TestResolveByName(t *testing.T) {
	base := t.TempDir()
	writePersona(t, base, "ana", "Ana", nil, "a.png", "b.jpg")

	refs, err := newResolver(base).ResolveReferences(context.Background(), "Ana walks through a market")
	if err != nil {
		t.Fatalf("ResolveReferences: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("references = %d, want 2", len(refs))
	}
	if refs[0].Role != "asset" {
		t.Fatalf("role = %q", refs[0].Role)
	}
	if refs[0].MIMEType != "image/png" {
		t.Fatalf("mime = %q", refs[0].MIMEType)
	}
	if string(refs[0].Data) != "img:a.png" {
		t.Fatalf("data = %q", refs[0].Data)
	}
}

func TestResolveByAlias(t *testing.T) {
	base := t.TempDir()
	writePersona(t, base, "ana", "Ana", []string{"the chef"}, "a.png")

	refs, err := newResolver(base).ResolveReferences(context.Background(), "the chef prepares dinner")
	if err != nil {
		t.Fatalf("ResolveReferences: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("references = %d, want 1", len(refs))
	}
}

func TestWholeWordMatchingOnly(t *testing.T) {
	base := t.TempDir()
	writePersona(t, base, "ana", "Ana", nil, "a.png")

	refs, err := newResolver(base).ResolveReferences(context.Background(), "a banana on the table")
	if err != nil {
		t.Fatalf("ResolveReferences: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("references = %d, want 0 for substring mention", len(refs))
	}
}

func TestBudgetSplitAcrossPersonas(t *testing.T) {
	base := t.TempDir()
	writePersona(t, base, "ana", "Ana", nil, "a1.png", "a2.png", "a3.png")
	writePersona(t, base, "ben", "Ben", nil, "b1.png", "b2.png", "b3.png")

	refs, err := newResolver(base).ResolveReferences(context.Background(), "Ana and Ben dance")
	if err != nil {
		t.Fatalf("ResolveReferences: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("references = %d, want one per persona", len(refs))
	}
	if string(refs[0].Data) != "img:a1.png" || string(refs[1].Data) != "img:b1.png" {
		t.Fatalf("unexpected split: %q, %q", refs[0].Data, refs[1].Data)
	}
}

func TestSinglePersonaCapAtThree(t *testing.T) {
	base := t.TempDir()
	writePersona(t, base, "ana", "Ana", nil, "a1.png", "a2.png", "a3.png", "a4.png")

	refs, err := newResolver(base).ResolveReferences(context.Background(), "Ana smiles")
	if err != nil {
		t.Fatalf("ResolveReferences: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("references = %d, want cap of 3", len(refs))
	}
}

func TestNonImageFilesIgnored(t *testing.T) {
	base := t.TempDir()
	writePersona(t, base, "ana", "Ana", nil, "a.png", "notes.txt", "voice.mp3")

	refs, err := newResolver(base).ResolveReferences(context.Background(), "Ana waves")
	if err != nil {
		t.Fatalf("ResolveReferences: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("references = %d, want only the image", len(refs))
	}
}

func TestMissingLibraryMatchesNothing(t *testing.T) {
	refs, err := newResolver(filepath.Join(t.TempDir(), "missing")).ResolveReferences(context.Background(), "Ana waves")
	if err != nil {
		t.Fatalf("ResolveReferences: %v", err)
	}
	if refs != nil {
		t.Fatalf("references = %v, want none", refs)
	}
}

func TestBrokenMetadataSkipsEntry(t *testing.T) {
	base := t.TempDir()
	writePersona(t, base, "ana", "Ana", nil, "a.png")
	broken := filepath.Join(base, "broken")
	if err := os.MkdirAll(broken, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(broken, "metadata.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	refs, err := newResolver(base).ResolveReferences(context.Background(), "Ana waves")
	if err != nil {
		t.Fatalf("ResolveReferences: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("references = %d, want 1 from the valid persona", len(refs))
	}
}
