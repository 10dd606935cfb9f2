package web

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"sync"
	"time"

	"github.com/matst80/mediabroker/internal/obs"
)

//go:embed templates/*.html
var tmplFS embed.FS

var (
	once sync.Once
	tmpl *template.Template
)

func load() {
	tmpl = template.Must(template.New("root").ParseFS(tmplFS, "templates/*.html"))
}

// Render writes the named template to w with data enriched by Now. Output is
// buffered so a failing page never reaches w half-written.
func Render(w io.Writer, name string, data map[string]any) error {
	once.Do(load)
	if data == nil {
		data = map[string]any{}
	}
	data["Now"] = time.Now().Format(time.RFC822)
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		// fallback if the page definition is missing
		obs.Error("web.render", obs.Fields{"template": name, "err": err.Error()})
		buf.Reset()
		if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
			return err
		}
	}
	_, err := buf.WriteTo(w)
	return err
}
