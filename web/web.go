// Package web holds the embedded HTML templates.
package web

import (
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var files embed.FS

// Pages lists every page template; each is parsed together with layout.html.
var Pages = []string{"show", "profile", "edit", "register", "login"}

// ParseTemplates builds one template set per page. Execute the "layout" template of a set.
func ParseTemplates(funcs template.FuncMap) (map[string]*template.Template, error) {
	cache := make(map[string]*template.Template, len(Pages))
	for _, name := range Pages {
		ts, err := template.New(name).Funcs(funcs).ParseFS(files, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		cache[name] = ts
	}
	return cache, nil
}
