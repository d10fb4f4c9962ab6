package msgcat

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	yaml "gopkg.in/yaml.v3"
)

const embeddedFile = "messages.en.yaml"

//go:embed messages.en.yaml
var defaultFiles embed.FS

// ErrMissingKey is returned by Render and Require for unknown keys.
var ErrMissingKey = errors.New("message key not found")

// Catalog holds the status-line templates. Embedded defaults are loaded
// first, then *.yaml files from an optional override directory.
// Templates execute with missingkey=error.
type Catalog struct {
	mu    sync.RWMutex
	data  map[string]string
	cache map[string]*template.Template
}

func New(overrideDir string) (*Catalog, error) {
	c := &Catalog{
		data:  make(map[string]string),
		cache: make(map[string]*template.Template),
	}
	raw, err := fs.ReadFile(defaultFiles, embeddedFile)
	if err != nil {
		return nil, fmt.Errorf("read embedded messages: %w", err)
	}
	flat, err := parseFlat(raw)
	if err != nil {
		return nil, fmt.Errorf("parse embedded messages: %w", err)
	}
	c.merge(flat)

	if dir := strings.TrimSpace(overrideDir); dir != "" {
		if err := c.applyDir(dir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// applyDir merges override files in name order. The same key defined in two
// override files is an error.
func (c *Catalog) applyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read override dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	owner := make(map[string]string)
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		flat, err := parseFlat(b)
		if err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
		for k := range flat {
			if prev, dup := owner[k]; dup {
				return fmt.Errorf("duplicate override key %q in %s and %s", k, prev, name)
			}
			owner[k] = name
		}
		c.merge(flat)
	}
	return nil
}

func (c *Catalog) merge(flat map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range flat {
		c.data[k] = v
		delete(c.cache, k)
	}
}

func parseFlat(b []byte) (map[string]string, error) {
	var m map[string]any
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	if err := flatten(m, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func flatten(src any, prefix string, out map[string]string) error {
	switch v := src.(type) {
	case map[string]any:
		for k, child := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if err := flatten(child, key, out); err != nil {
				return err
			}
		}
	case string:
		if prefix == "" {
			return errors.New("string value without key")
		}
		out[prefix] = v
	case nil:
	default:
		return fmt.Errorf("unsupported value at %s: %T", prefix, v)
	}
	return nil
}

// Has reports whether key is defined.
func (c *Catalog) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.data[key]
	return ok
}

// Keys lists all defined keys, sorted.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Require fails with ErrMissingKey naming every absent key.
func (c *Catalog) Require(keys ...string) error {
	var missing []string
	for _, k := range keys {
		if !c.Has(k) {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingKey, strings.Join(missing, ", "))
	}
	return nil
}

func (c *Catalog) Render(key string, data any) (string, error) {
	t, err := c.template(strings.TrimSpace(key))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s: %w", key, err)
	}
	return b.String(), nil
}

func (c *Catalog) template(key string) (*template.Template, error) {
	c.mu.RLock()
	t, ok := c.cache[key]
	text, defined := c.data[key]
	c.mu.RUnlock()
	if ok {
		return t, nil
	}
	if !defined {
		return nil, fmt.Errorf("%w: %s", ErrMissingKey, key)
	}
	t, err := template.New(key).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}
	c.mu.Lock()
	c.cache[key] = t
	c.mu.Unlock()
	return t, nil
}
