// Package i18n translates message keys using embedded YAML tables.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

// Bundle holds one table per short language code ("en", "es").
type Bundle struct {
	tables   map[string]map[string]string
	fallback string
}

// Load reads every locales/<lang>.yaml file from fsys. fallback must be one of them.
func Load(fsys fs.FS, fallback string) (*Bundle, error) {
	entries, err := fs.ReadDir(fsys, "locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}
	b := &Bundle{tables: make(map[string]map[string]string), fallback: short(fallback)}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join("locales", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		table, err := parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		b.tables[strings.TrimSuffix(e.Name(), ".yaml")] = table
	}
	if _, ok := b.tables[b.fallback]; !ok {
		return nil, fmt.Errorf("fallback locale %q not found", fallback)
	}
	return b, nil
}

// MustLoad loads the embedded locales with English as fallback.
func MustLoad() *Bundle {
	b, err := Load(LocalesFS, "en")
	if err != nil {
		panic(err)
	}
	return b
}

func parse(data []byte) (map[string]string, error) {
	var table map[string]string
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, err
	}
	return table, nil
}

func short(code string) string {
	code = strings.ReplaceAll(code, "-", "_")
	if i := strings.IndexByte(code, '_'); i >= 0 {
		code = code[:i]
	}
	return strings.ToLower(code)
}

func (b *Bundle) lookup(lang, key string) (string, bool) {
	if t, ok := b.tables[short(lang)]; ok {
		if v, ok := t[key]; ok {
			return v, true
		}
	}
	v, ok := b.tables[b.fallback][key]
	return v, ok
}

// T translates key for lang and formats args into it. Missing keys return the key.
func (b *Bundle) T(lang, key string, args ...any) string {
	format, ok := b.lookup(lang, key)
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

// Is reports whether text is the label of key in lang or in the fallback language.
func (b *Bundle) Is(lang, text, key string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if v, ok := b.lookup(lang, key); ok && strings.EqualFold(v, text) {
		return true
	}
	v, ok := b.tables[b.fallback][key]
	return ok && strings.EqualFold(v, text)
}

// Has reports whether lang has its own table.
func (b *Bundle) Has(lang string) bool {
	_, ok := b.tables[short(lang)]
	return ok
}
