package render

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
)

// FontStyle represents font style variations.
type FontStyle int

const (
	FontStyleRegular FontStyle = iota
	FontStyleBold
	FontStyleItalic
	FontStyleBoldItalic
)

// String returns the style name.
func (fs FontStyle) String() string {
	switch fs {
	case FontStyleBold:
		return "bold"
	case FontStyleItalic:
		return "italic"
	case FontStyleBoldItalic:
		return "bolditalic"
	default:
		return "regular"
	}
}

// FontKey identifies one loaded font file.
type FontKey struct {
	Family string
	Style  FontStyle
}

// FontCatalog resolves gbuf font names such as "Helvetica-Bold" or
// "Courier" to TrueType data. Families are matched case-insensitively;
// unknown families fall back through the fallback chain. The catalog is
// shared by every Surface implementation, each of which caches its own
// parsed faces keyed by FontKey.
type FontCatalog struct {
	mu            sync.RWMutex
	fonts         map[FontKey][]byte
	aliases       map[string]string
	fallbackChain []string
}

// NewFontCatalog returns a catalog preloaded with the Go fonts and the
// PostScript base family aliases.
func NewFontCatalog() *FontCatalog {
	fc := &FontCatalog{
		fonts:   make(map[FontKey][]byte),
		aliases: make(map[string]string),
	}
	fc.add("gosans", FontStyleRegular, goregular.TTF)
	fc.add("gosans", FontStyleBold, gobold.TTF)
	fc.add("gosans", FontStyleItalic, goitalic.TTF)
	fc.add("gosans", FontStyleBoldItalic, gobolditalic.TTF)
	fc.add("gomono", FontStyleRegular, gomono.TTF)
	fc.add("gomono", FontStyleBold, gomonobold.TTF)
	fc.add("gomono", FontStyleItalic, gomonoitalic.TTF)
	fc.add("gomono", FontStyleBoldItalic, gomonobolditalic.TTF)

	for _, a := range []string{"helvetica", "arial", "sans", "sans-serif", "times", "times-roman", "serif", "go", "symbol"} {
		fc.aliases[a] = "gosans"
	}
	for _, a := range []string{"courier", "courier-new", "mono", "monospace", "fixed"} {
		fc.aliases[a] = "gomono"
	}
	fc.fallbackChain = []string{"gosans", "gomono"}
	return fc
}

func (fc *FontCatalog) add(family string, style FontStyle, data []byte) {
	fc.fonts[FontKey{Family: family, Style: style}] = data
}

// LoadFile registers a TrueType or OpenType file under family and style.
func (fc *FontCatalog) LoadFile(family string, style FontStyle, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read font file %s: %w", path, err)
	}
	fc.LoadData(family, style, data)
	return nil
}

// LoadData registers font data under family and style.
func (fc *FontCatalog) LoadData(family string, style FontStyle, data []byte) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.add(strings.ToLower(family), style, data)
}

// RegisterAlias makes alias resolve to an existing family.
func (fc *FontCatalog) RegisterAlias(alias, family string) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	family = strings.ToLower(family)
	if !fc.hasFamily(family) {
		return fmt.Errorf("font family %s not found", family)
	}
	fc.aliases[strings.ToLower(alias)] = family
	return nil
}

// SetFallbackChain sets the families tried when a name does not resolve.
func (fc *FontCatalog) SetFallbackChain(families []string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.fallbackChain = fc.fallbackChain[:0]
	for _, f := range families {
		fc.fallbackChain = append(fc.fallbackChain, strings.ToLower(f))
	}
}

// Families returns the sorted canonical family names.
func (fc *FontCatalog) Families() []string {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for k := range fc.fonts {
		if !seen[k.Family] {
			seen[k.Family] = true
			out = append(out, k.Family)
		}
	}
	sort.Strings(out)
	return out
}

// Resolve maps a gbuf font name to a loaded font. It always succeeds while
// the fallback chain names a loaded family.
func (fc *FontCatalog) Resolve(name string) (FontKey, []byte) {
	family, style := SplitFontName(name)

	fc.mu.RLock()
	defer fc.mu.RUnlock()

	if alias, ok := fc.aliases[family]; ok {
		family = alias
	}
	candidates := append([]string{family}, fc.fallbackChain...)
	for _, f := range candidates {
		for _, s := range styleFallback(style) {
			key := FontKey{Family: f, Style: s}
			if data, ok := fc.fonts[key]; ok {
				return key, data
			}
		}
	}
	return FontKey{}, nil
}

func (fc *FontCatalog) hasFamily(family string) bool {
	for k := range fc.fonts {
		if k.Family == family {
			return true
		}
	}
	return false
}

// styleFallback lists the styles to try for a requested one.
func styleFallback(style FontStyle) []FontStyle {
	switch style {
	case FontStyleBoldItalic:
		return []FontStyle{FontStyleBoldItalic, FontStyleBold, FontStyleItalic, FontStyleRegular}
	case FontStyleBold, FontStyleItalic:
		return []FontStyle{style, FontStyleRegular}
	default:
		return []FontStyle{FontStyleRegular}
	}
}

// SplitFontName separates a PostScript style suffix from a font name:
// "Helvetica-BoldOblique" is helvetica in bold italic. The family is
// returned lower case.
func SplitFontName(name string) (string, FontStyle) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		lower = strings.ToLower(DefaultFontFamily)
	}
	suffixes := []struct {
		s     string
		style FontStyle
	}{
		{"-bolditalic", FontStyleBoldItalic},
		{"-boldoblique", FontStyleBoldItalic},
		{"-bold", FontStyleBold},
		{"-italic", FontStyleItalic},
		{"-oblique", FontStyleItalic},
		{"-roman", FontStyleRegular},
	}
	for _, sfx := range suffixes {
		if strings.HasSuffix(lower, sfx.s) && len(lower) > len(sfx.s) {
			return strings.TrimSuffix(lower, sfx.s), sfx.style
		}
	}
	return lower, FontStyleRegular
}
