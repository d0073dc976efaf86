package web

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/andrebq/secrets/internal/logutil"
)

type (
	views struct {
		tpl *template.Template
	}

	viewName string

	// page is the data every view receives.
	page struct {
		Authenticated bool
		Username      string
		Federated     bool
		Secrets       []string
		Error         string
	}
)

const (
	viewHome     = viewName("home")
	viewLogin    = viewName("login")
	viewRegister = viewName("register")
	viewSecrets  = viewName("secrets")
	viewSubmit   = viewName("submit")
)

var (
	//go:embed templates/*.html
	templateFS embed.FS

	//go:embed public
	publicFS embed.FS
)

func loadViews() (*views, error) {
	tpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &views{tpl: tpl}, nil
}

// render executes the view into a buffer first, a template error never
// leaves a half written page behind.
func (v *views) render(w http.ResponseWriter, r *http.Request, status int, name viewName, data page) {
	var buf bytes.Buffer
	err := v.tpl.ExecuteTemplate(&buf, string(name)+".html", data)
	if err != nil {
		log := logutil.GetOrDefault(r.Context())
		log.Error().Err(err).Str("view", string(name)).Msg("Unable to render view")
		http.Error(w, "unable to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func staticFiles() http.Handler {
	sub, err := fs.Sub(publicFS, "public")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
