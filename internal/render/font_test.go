//go:build !noebiten

package render

import (
	"sync"
	"testing"
)

func TestNewFontManagerNilCatalog(t *testing.T) {
	fm := NewFontManager(nil)
	if fm.Catalog() == nil {
		t.Fatal("Catalog() returned nil")
	}
	if len(fm.Catalog().Families()) == 0 {
		t.Error("default catalog has no families")
	}
}

func TestFontManagerFace(t *testing.T) {
	fm := NewFontManager(NewFontCatalog())

	face, err := fm.Face("Helvetica-Bold", 14)
	if err != nil {
		t.Fatalf("Face() error = %v", err)
	}
	if face == nil || face.Source == nil {
		t.Fatal("Face() returned an empty face")
	}
	if face.Size != 14 {
		t.Errorf("Size = %v, want 14", face.Size)
	}
}

func TestFontManagerCachesSources(t *testing.T) {
	fm := NewFontManager(nil)

	a, err := fm.Face("Courier", 10)
	if err != nil {
		t.Fatal(err)
	}
	b, err := fm.Face("monospace", 20)
	if err != nil {
		t.Fatal(err)
	}
	if a.Source != b.Source {
		t.Error("aliases of one family should share a parsed source")
	}
	if len(fm.sources) != 1 {
		t.Errorf("parsed %d sources, want 1", len(fm.sources))
	}
}

func TestFontManagerUnknownFallsBack(t *testing.T) {
	fm := NewFontManager(nil)
	if _, err := fm.Face("Zapf-Chancery", 12); err != nil {
		t.Errorf("unknown family should fall back, got %v", err)
	}

	fm.Catalog().SetFallbackChain(nil)
	if _, err := fm.Face("Zapf-Chancery", 12); err == nil {
		t.Error("Face() should fail with no fallback chain")
	}
}

func TestFontManagerBadData(t *testing.T) {
	fm := NewFontManager(nil)
	fm.Catalog().LoadData("broken", FontStyleRegular, []byte("not a font"))
	if _, err := fm.Face("broken", 12); err == nil {
		t.Error("Face() should fail on unparsable font data")
	}
}

func TestFontManagerConcurrentAccess(t *testing.T) {
	fm := NewFontManager(nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			names := []string{"Helvetica", "Courier-Bold", "Times-Italic"}
			for j := 0; j < 20; j++ {
				if _, err := fm.Face(names[(i+j)%len(names)], 12); err != nil {
					t.Error(err)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}
