package render

import (
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

func TestFontStyleString(t *testing.T) {
	tests := []struct {
		style FontStyle
		want  string
	}{
		{FontStyleRegular, "regular"},
		{FontStyleBold, "bold"},
		{FontStyleItalic, "italic"},
		{FontStyleBoldItalic, "bolditalic"},
		{FontStyle(99), "regular"},
	}
	for _, tt := range tests {
		if got := tt.style.String(); got != tt.want {
			t.Errorf("FontStyle(%d).String() = %q, want %q", tt.style, got, tt.want)
		}
	}
}

func TestSplitFontName(t *testing.T) {
	tests := []struct {
		name   string
		family string
		style  FontStyle
	}{
		{"Helvetica", "helvetica", FontStyleRegular},
		{"Helvetica-Bold", "helvetica", FontStyleBold},
		{"Helvetica-BoldOblique", "helvetica", FontStyleBoldItalic},
		{"Times-Roman", "times", FontStyleRegular},
		{"Times-Italic", "times", FontStyleItalic},
		{"Courier-Oblique", "courier", FontStyleItalic},
		{"  Mono  ", "mono", FontStyleRegular},
		{"-bold", "-bold", FontStyleRegular},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			family, style := SplitFontName(tt.name)
			if family != tt.family || style != tt.style {
				t.Errorf("SplitFontName(%q) = %q, %v; want %q, %v", tt.name, family, style, tt.family, tt.style)
			}
		})
	}
}

func TestSplitFontNameEmptyUsesDefault(t *testing.T) {
	family, _ := SplitFontName("")
	want, _ := SplitFontName(DefaultFontFamily)
	if family != want {
		t.Errorf("empty name resolved to %q, want %q", family, want)
	}
}

func TestFontCatalogResolve(t *testing.T) {
	fc := NewFontCatalog()

	tests := []struct {
		name string
		want FontKey
	}{
		{"Helvetica", FontKey{"gosans", FontStyleRegular}},
		{"Helvetica-Bold", FontKey{"gosans", FontStyleBold}},
		{"Courier-BoldOblique", FontKey{"gomono", FontStyleBoldItalic}},
		{"Times-Roman", FontKey{"gosans", FontStyleRegular}},
		{"NoSuchFont-Italic", FontKey{"gosans", FontStyleItalic}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, data := fc.Resolve(tt.name)
			if key != tt.want {
				t.Errorf("Resolve(%q) = %+v, want %+v", tt.name, key, tt.want)
			}
			if len(data) == 0 {
				t.Errorf("Resolve(%q) returned no data", tt.name)
			}
		})
	}
}

func TestFontCatalogStyleFallback(t *testing.T) {
	fc := NewFontCatalog()
	fc.LoadData("Plain", FontStyleRegular, goregular.TTF)

	key, _ := fc.Resolve("Plain-BoldItalic")
	if key != (FontKey{"plain", FontStyleRegular}) {
		t.Errorf("Resolve = %+v, want plain regular", key)
	}
}

func TestFontCatalogAliasAndFallbackChain(t *testing.T) {
	fc := NewFontCatalog()
	fc.LoadData("Terminus", FontStyleRegular, gomono.TTF)

	if err := fc.RegisterAlias("Console", "terminus"); err != nil {
		t.Fatalf("RegisterAlias: %v", err)
	}
	if key, _ := fc.Resolve("console"); key.Family != "terminus" {
		t.Errorf("alias resolved to %q, want terminus", key.Family)
	}
	if err := fc.RegisterAlias("x", "missing"); err == nil {
		t.Error("RegisterAlias to a missing family should fail")
	}

	fc.SetFallbackChain([]string{"GoMono"})
	if key, _ := fc.Resolve("unknown"); key.Family != "gomono" {
		t.Errorf("fallback resolved to %q, want gomono", key.Family)
	}

	fc.SetFallbackChain(nil)
	if key, data := fc.Resolve("unknown"); data != nil {
		t.Errorf("empty fallback chain resolved to %+v", key)
	}
}

func TestFontCatalogFamilies(t *testing.T) {
	fc := NewFontCatalog()
	fc.LoadData("Extra", FontStyleBold, goregular.TTF)

	want := []string{"extra", "gomono", "gosans"}
	if got := fc.Families(); !reflect.DeepEqual(got, want) {
		t.Errorf("Families() = %v, want %v", got, want)
	}
}

func TestFontCatalogLoadFile(t *testing.T) {
	fc := NewFontCatalog()
	path := filepath.Join(t.TempDir(), "custom.ttf")
	if err := os.WriteFile(path, goregular.TTF, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := fc.LoadFile("Custom", FontStyleItalic, path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if key, _ := fc.Resolve("Custom-Oblique"); key != (FontKey{"custom", FontStyleItalic}) {
		t.Errorf("Resolve = %+v", key)
	}
	if err := fc.LoadFile("Missing", FontStyleRegular, filepath.Join(t.TempDir(), "nope.ttf")); err == nil {
		t.Error("LoadFile of a missing file should fail")
	}
}

func TestFontCatalogConcurrentAccess(t *testing.T) {
	fc := NewFontCatalog()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				fc.LoadData("dyn", FontStyleRegular, goregular.TTF)
				fc.Resolve("Helvetica-Bold")
				fc.Families()
			}
		}()
	}
	wg.Wait()
}
