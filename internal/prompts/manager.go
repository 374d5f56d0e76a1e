package prompts

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	errs "menu-allergen-scanner/pkg/errors"
)

var funcs = template.FuncMap{"join": strings.Join}

// Manager loads, compiles and renders prompt templates.
// Templates are compiled once at startup; files in an override directory
// replace embedded templates of the same name.
type Manager struct {
	mu   sync.RWMutex
	tpls map[string]*template.Template
}

// NewManager parses all embedded templates, then any *.txt.tmpl in overrideDir.
func NewManager(overrideDir string) (*Manager, error) {
	m := &Manager{tpls: make(map[string]*template.Template)}

	if err := m.load(FS()); err != nil {
		return nil, errs.NewBiz("prompts.NewManager", "failed to load prompts", err)
	}
	if overrideDir != "" {
		if _, err := os.Stat(overrideDir); err == nil {
			if err := m.load(os.DirFS(overrideDir)); err != nil {
				return nil, errs.NewBiz("prompts.NewManager", "failed to load prompt overrides", err)
			}
		}
	}
	return m, nil
}

func (m *Manager) load(fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(p, ".txt.tmpl") {
			return nil
		}
		b, rerr := fs.ReadFile(fsys, p)
		if rerr != nil {
			return fmt.Errorf("read template %s: %w", p, rerr)
		}
		name := strings.TrimSuffix(filepath.Base(p), ".txt.tmpl")
		tpl, perr := template.New(name).Funcs(funcs).Parse(string(b))
		if perr != nil {
			return fmt.Errorf("parse template %s: %w", p, perr)
		}
		m.mu.Lock()
		m.tpls[name] = tpl
		m.mu.Unlock()
		return nil
	})
}

// Render executes a named template with data and returns the result string.
func (m *Manager) Render(name string, data any) (string, error) {
	m.mu.RLock()
	tpl, ok := m.tpls[name]
	m.mu.RUnlock()
	if !ok {
		return "", errs.NewValidation("prompts.Render", fmt.Sprintf("prompt template not found: %s", name), nil)
	}
	var sb strings.Builder
	if err := tpl.Execute(&sb, data); err != nil {
		return "", errs.NewBiz("prompts.Render", fmt.Sprintf("execute template %s", name), err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// Names lists the loaded template names.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.tpls))
	for n := range m.tpls {
		out = append(out, n)
	}
	return out
}
