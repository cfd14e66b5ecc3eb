package persona

import (
	"os"
	"path/filepath"
	"testing"

	"parley/internal/types"
)

func TestUpsertGetDelete(t *testing.T) {
	var saved, deleted []string
	r := NewRegistry(
		WithOnChange(func(p types.Persona) { saved = append(saved, p.ID) }),
		WithOnDelete(func(id string) { deleted = append(deleted, id) }),
	)

	if err := r.Upsert(types.Persona{ID: "p1", Name: "Chef"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := r.Upsert(types.Persona{ID: "p1"}); err == nil {
		t.Fatal("Upsert without name should fail")
	}

	got, ok := r.Get("p1")
	if !ok || got.Name != "Chef" {
		t.Fatalf("Get = %+v, %v", got, ok)
	}
	if r.Name("p1") != "Chef" || r.Name("missing") != "" {
		t.Fatal("Name lookup wrong")
	}

	if err := r.Delete("p1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := r.Delete("p1"); err == nil {
		t.Fatal("second Delete should fail")
	}
	if len(saved) != 1 || len(deleted) != 1 {
		t.Fatalf("hooks: saved=%v deleted=%v", saved, deleted)
	}
}

func TestReloadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}

	write("chef.yaml", "name: Chef\nicon: \"🍳\"\ndirective: You are a chef.\n")
	write("tutor.yml", "id: tutor-1\nname: Tutor\n")
	write("broken.yaml", "name: [unclosed\n")
	write("notes.txt", "not a persona")

	r := NewRegistry(WithDir(dir))
	if err := r.ReloadDir(); err != nil {
		t.Fatalf("ReloadDir: %v", err)
	}

	chef, ok := r.Get("chef")
	if !ok || chef.Name != "Chef" || chef.DirectiveOverride != "You are a chef." {
		t.Fatalf("chef = %+v, %v", chef, ok)
	}
	if _, ok := r.Get("tutor-1"); !ok {
		t.Fatal("explicit id not honored")
	}
	if got := len(r.List()); got != 2 {
		t.Fatalf("List = %d personas, want 2 (broken and txt skipped)", got)
	}
}

func TestReloadDir_ReplacesWholesale(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.yaml")
	os.WriteFile(path, []byte("name: A\n"), 0644)

	r := NewRegistry(WithDir(dir))
	r.ReloadDir()
	if _, ok := r.Get("a"); !ok {
		t.Fatal("persona a missing after first load")
	}

	os.Remove(path)
	os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("name: B\n"), 0644)
	r.ReloadDir()

	if _, ok := r.Get("a"); ok {
		t.Fatal("removed persona survived reload")
	}
	if _, ok := r.Get("b"); !ok {
		t.Fatal("new persona missing after reload")
	}
}

func TestFilePersonaShadowsStored(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "p1.yaml"), []byte("id: p1\nname: FileChef\n"), 0644)

	r := NewRegistry(WithDir(dir))
	r.Load([]types.Persona{{ID: "p1", Name: "StoredChef"}, {ID: "p2", Name: "Tutor"}})
	r.ReloadDir()

	if r.Name("p1") != "FileChef" {
		t.Fatalf("Name(p1) = %q, want file persona to win", r.Name("p1"))
	}
	if got := len(r.List()); got != 2 {
		t.Fatalf("List = %d, want 2 (shadowed persona not doubled)", got)
	}
}

func TestMissingDirIsNotAnError(t *testing.T) {
	r := NewRegistry(WithDir(filepath.Join(t.TempDir(), "nope")))
	if err := r.ReloadDir(); err != nil {
		t.Fatalf("ReloadDir on missing dir: %v", err)
	}
}
