package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/diewo77/invoicer/i18n"
	"github.com/shopspring/decimal"
)

//go:embed templates
var embedded embed.FS

var (
	templates fs.FS = mustSub(embedded, "templates")
	devMode         = os.Getenv("DEV") == "1"

	tplCache = struct {
		sync.RWMutex
		m map[string]*template.Template
	}{m: map[string]*template.Template{}}

	langResolver  = func(r *http.Request) string { return i18n.LangFromContext(r.Context()) }
	themeResolver = func(_ *http.Request) string { return "system" }
)

// partials are parsed with every page.
var partials = []string{
	"partials/errors-alert.html",
	"partials/invoice-form.html",
	"partials/stat-card.html",
}

func mustSub(f fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(f, dir)
	if err != nil {
		panic(err)
	}
	return sub
}

// SetLangResolver allows the host app to provide a custom language resolver (e.g., reading from context).
func SetLangResolver(f func(*http.Request) string) {
	if f != nil {
		langResolver = f
	}
}

// SetThemeResolver allows the host app to provide a custom theme resolver.
func SetThemeResolver(f func(*http.Request) string) {
	if f != nil {
		themeResolver = f
	}
}

// SetDev toggles template reparsing on every render.
func SetDev(dev bool) {
	devMode = dev
}

// SetBaseDir serves templates from a directory on disk instead of the embedded copy.
func SetBaseDir(dir string) {
	if dir == "" {
		return
	}
	templates = os.DirFS(dir)
	ResetForTests()
}

// ResetForTests clears the template cache.
func ResetForTests() {
	tplCache.Lock()
	tplCache.m = map[string]*template.Template{}
	tplCache.Unlock()
}

// Funcs returns the standard func map including i18n and simple helpers.
func Funcs(r *http.Request) template.FuncMap {
	lang := langResolver(r)
	theme := themeResolver(r)
	return template.FuncMap{
		"t":     func(code string) string { return i18n.T(lang, code) },
		"lang":  func() string { return lang },
		"theme": func() string { return theme },
		"money": func(d decimal.Decimal) string { return i18n.Money(lang, d) },
		"year":  func() int { return time.Now().Year() },
		"date": func(v any) string {
			switch t := v.(type) {
			case time.Time:
				return t.Format("2006-01-02")
			case *time.Time:
				if t != nil {
					return t.Format("2006-01-02")
				}
			}
			return ""
		},
		// pct returns part as a whole percentage of total.
		"pct": func(part, total int) int {
			if total <= 0 {
				return 0
			}
			return part * 100 / total
		},
		// dict creates a map from key-value pairs for passing to sub-templates.
		// Usage: {{ template "partial" (dict "Key1" val1 "Key2" val2) }}
		"dict": func(values ...any) map[string]any {
			if len(values)%2 != 0 {
				return nil
			}
			m := make(map[string]any, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					continue
				}
				m[key] = values[i+1]
			}
			return m
		},
	}
}

func load(r *http.Request, name string) (*template.Template, error) {
	if !devMode {
		tplCache.RLock()
		t, ok := tplCache.m[name]
		tplCache.RUnlock()
		if ok {
			// Funcs are request scoped (language, theme); rebind them on a clone.
			c, err := t.Clone()
			if err != nil {
				return nil, err
			}
			return c.Funcs(Funcs(r)), nil
		}
	}
	files := append([]string{"layout.html", name}, partials...)
	t, err := template.New("layout.html").Funcs(Funcs(r)).ParseFS(templates, files...)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	if !devMode {
		tplCache.Lock()
		tplCache.m[name] = t
		tplCache.Unlock()
		return t.Clone()
	}
	return t, nil
}

// Render executes the page name inside the layout and writes it with status 200.
func Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	return RenderStatus(w, r, http.StatusOK, name, data)
}

// RenderStatus is Render with an explicit status code. Nothing is written when execution fails.
func RenderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) error {
	if data == nil {
		data = map[string]any{}
	}
	if _, exists := data["Year"]; !exists {
		data["Year"] = time.Now().Year()
	}
	t, err := load(r, name)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}
