// Package view renders the embedded HTML templates. Every page is parsed
// together with layout.html and the partials, then cached.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/diewo77/agency-portal/auth"
	"github.com/diewo77/agency-portal/internal/models"
)

//go:embed templates
var files embed.FS

var (
	tplCache = struct {
		sync.RWMutex
		m map[string]*template.Template
	}{m: map[string]*template.Template{}}

	// Set by the host app so templates can hide controls the user may not use.
	canResolver     func(r *http.Request, resource, action string) bool
	isAdminResolver func(r *http.Request) bool
)

// SetCanResolver sets the callback behind the "can" template func.
func SetCanResolver(f func(*http.Request, string, string) bool) {
	if f != nil {
		canResolver = f
	}
}

// SetIsAdminResolver sets the callback behind the "isAdmin" template func.
func SetIsAdminResolver(f func(*http.Request) bool) {
	if f != nil {
		isAdminResolver = f
	}
}

// Funcs returns the func map for r. With a nil request the permission
// helpers answer false, which is what parsing needs.
func Funcs(r *http.Request) template.FuncMap {
	return template.FuncMap{
		"can": func(resource, action string) bool {
			return r != nil && canResolver != nil && canResolver(r, resource, action)
		},
		"isAdmin": func() bool {
			return r != nil && isAdminResolver != nil && isAdminResolver(r)
		},
		"year":      func() int { return time.Now().Year() },
		"money":     models.FormatAmount,
		"date":      formatDate,
		"dateInput": func(t time.Time) string { return dateOrEmpty(t, "2006-01-02") },
		"percent":   func(p int) string { return fmt.Sprintf("%d%%", p) },
		"lower":     strings.ToLower,
		"deref": func(p *uint) uint {
			if p == nil {
				return 0
			}
			return *p
		},
		// dict builds a map for sub-templates: {{ template "x" (dict "K" v) }}
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

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		return dateOrEmpty(t, "Jan 2, 2006")
	case *time.Time:
		if t == nil {
			return ""
		}
		return dateOrEmpty(*t, "Jan 2, 2006")
	}
	return ""
}

func dateOrEmpty(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(layout)
}

// section picks the navigation shown by the layout.
func section(path string) string {
	switch {
	case path == "/admin" || strings.HasPrefix(path, "/admin/"):
		return "admin"
	case path == "/dashboard" || strings.HasPrefix(path, "/dashboard/"):
		return "portal"
	case strings.HasPrefix(path, "/auth/"):
		return "auth"
	}
	return "public"
}

func load(name string) (*template.Template, error) {
	tplCache.RLock()
	t, ok := tplCache.m[name]
	tplCache.RUnlock()
	if ok {
		return t, nil
	}

	t, err := template.New("layout.html").Funcs(Funcs(nil)).ParseFS(files,
		"templates/layout.html",
		"templates/partials/*.html",
		"templates/"+name,
	)
	if err != nil {
		return nil, err
	}
	tplCache.Lock()
	tplCache.m[name] = t
	tplCache.Unlock()
	return t, nil
}

// Render writes the page name (relative to templates/) with status 200.
func Render(w http.ResponseWriter, r *http.Request, name string, data map[string]any) error {
	return RenderStatus(w, r, http.StatusOK, name, data)
}

// RenderStatus executes into a buffer first so a template error never sends
// half a page.
func RenderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) error {
	base, err := load(name)
	if err != nil {
		return err
	}
	t, err := base.Clone()
	if err != nil {
		return err
	}
	t.Funcs(Funcs(r))

	if data == nil {
		data = map[string]any{}
	}
	if _, ok := data["Section"]; !ok {
		data["Section"] = section(r.URL.Path)
	}
	if _, ok := data["IsLoggedIn"]; !ok {
		_, loggedIn := auth.UserIDFromContext(r.Context())
		data["IsLoggedIn"] = loggedIn
	}
	if _, ok := data["Message"]; !ok {
		data["Message"] = r.URL.Query().Get("message")
	}
	data["Path"] = r.URL.Path

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err = buf.WriteTo(w)
	return err
}
