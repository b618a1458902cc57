// Package components renders the ordframe pages. The markup lives in
// embedded html/template files; each page is exposed as a templ.Component
// so handlers render pages the same way regardless of how they are built.
package components

import (
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/a-h/templ"
	"github.com/rubiojr/ordframe/cmd/web/components/types"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.New("pages").Funcs(template.FuncMap{
	"formatTime": func(t *time.Time) string {
		if t == nil {
			return "never"
		}
		return t.Local().Format("Jan 2, 2006 15:04")
	},
	"plural": func(n int, one, many string) string {
		if n == 1 {
			return one
		}
		return many
	},
}).ParseFS(templateFS, "templates/*.html"))

func page(name string, data types.PageData) templ.Component {
	t := pages.Lookup(name)
	if t == nil {
		panic(fmt.Sprintf("components: no template %q", name))
	}
	return templ.FromGoHTML(t, data)
}

func Index(data types.PageData) templ.Component  { return page("index.html", data) }
func Setup(data types.PageData) templ.Component  { return page("setup.html", data) }
func Select(data types.PageData) templ.Component { return page("select.html", data) }
func Frame(data types.PageData) templ.Component  { return page("frame.html", data) }

// NotFound is the 404 page.
func NotFound(data types.PageData) templ.Component { return page("404.html", data) }

// ServerError is the 500 page.
func ServerError(data types.PageData) templ.Component { return page("500.html", data) }
