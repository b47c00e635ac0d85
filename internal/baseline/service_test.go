package baseline

import (
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

func solidMat(value float64, size int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(value, value, value, 0), size, size, gocv.MatTypeCV8UC3)
}

func TestServiceSaveAndGet(t *testing.T) {
	svc, err := NewService(t.TempDir())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	mat := solidMat(100, 32)
	defer mat.Close()

	id, err := svc.Save(mat, "camera-1", "front door baseline", []string{"entrance"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id == "" {
		t.Fatal("Save should return a non-empty id")
	}

	rec, ok := svc.Get(id)
	if !ok {
		t.Fatal("Get: record not found")
	}
	if rec.Name != "camera-1" {
		t.Errorf("Name = %q, want %q", rec.Name, "camera-1")
	}

	img, ok := svc.GetImage(id)
	if !ok {
		t.Fatal("GetImage: image not found")
	}
	defer img.Close()
	if img.Empty() {
		t.Error("GetImage returned an empty Mat")
	}
}

func TestServiceSaveRejectsEmptyImage(t *testing.T) {
	svc, err := NewService(t.TempDir())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, err := svc.Save(gocv.NewMat(), "empty", "", nil); err == nil {
		t.Fatal("Save with an empty Mat should error")
	}
}

func TestServicePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	svc, _ := NewService(dir)
	mat := solidMat(50, 16)
	defer mat.Close()
	id, err := svc.Save(mat, "persisted", "", nil)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	reopened, err := NewService(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok := reopened.Get(id); !ok {
		t.Error("baseline record did not survive reopen")
	}
}

func TestServiceUpdateAndDelete(t *testing.T) {
	svc, _ := NewService(t.TempDir())
	mat := solidMat(80, 16)
	defer mat.Close()
	id, _ := svc.Save(mat, "original", "", nil)

	newName := "renamed"
	updated, err := svc.Update(id, &newName, nil, []string{"a", "b"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "renamed" {
		t.Errorf("Name after Update = %q, want %q", updated.Name, "renamed")
	}

	if err := svc.Delete(id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := svc.Get(id); ok {
		t.Error("record should be gone after Delete")
	}
	if _, ok := svc.GetImage(id); ok {
		t.Error("image should be gone after Delete")
	}
}

func TestServiceUpdateUnknownIDErrors(t *testing.T) {
	svc, _ := NewService(t.TempDir())
	name := "x"
	if _, err := svc.Update("nonexistent", &name, nil, nil); err == nil {
		t.Fatal("Update on an unknown id should error")
	}
}

func TestServiceListFiltersMissingFiles(t *testing.T) {
	dir := t.TempDir()
	svc, _ := NewService(dir)
	mat := solidMat(90, 16)
	defer mat.Close()
	id, _ := svc.Save(mat, "will-go-missing", "", nil)

	path, err := svc.securePath(id)
	if err != nil {
		t.Fatalf("securePath: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove baseline file: %v", err)
	}

	list := svc.List()
	for _, r := range list {
		if r.ID == id {
			t.Error("List should filter out a record whose image file is missing")
		}
	}
}

func TestServiceReferenceImplementsBaselineSource(t *testing.T) {
	svc, _ := NewService(t.TempDir())
	mat := solidMat(60, 16)
	defer mat.Close()
	id, _ := svc.Save(mat, "scene-42", "", nil)

	ref, ok := svc.Reference(id)
	if !ok {
		t.Fatal("Reference should find the saved baseline by id")
	}
	defer ref.Close()
	if ref.Empty() {
		t.Error("Reference returned an empty Mat")
	}

	if _, ok := svc.Reference("nope"); ok {
		t.Error("Reference on an unknown id should return ok=false")
	}
}

func TestSecurePathRejectsTraversal(t *testing.T) {
	svc, _ := NewService(t.TempDir())
	if _, err := svc.securePath("../escape"); err == nil {
		t.Fatal("securePath should reject a traversal id")
	}
	if _, err := svc.securePath(filepath.Join("a", "b")); err == nil {
		t.Fatal("securePath should reject an id containing a separator")
	}
}
