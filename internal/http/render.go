package http

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/markit/attendance/internal/auth"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	displayTimeLayout = "02 Jan 2006, 15:04"
	inputTimeLayout   = "2006-01-02T15:04"
)

// LoadTemplates parses the embedded page templates. Each page is named after
// its file; layout.html only holds shared partials.
func LoadTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(displayTimeLayout)
		},
		"formatInput": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(inputTimeLayout)
		},
	}
	return template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
}

// PageNotice pops the pending flash notice of a request.
type PageNotice interface {
	PopNotice(r *http.Request) string
}

// Renderer renders pages with the data every page shares: app name, CSRF
// field, current identity and the pending notice.
type Renderer struct {
	notices PageNotice
	appName string
}

func NewRenderer(notices PageNotice, appName string) *Renderer {
	return &Renderer{notices: notices, appName: appName}
}

func (r *Renderer) HTML(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["AppName"] = r.appName
	data["CSRFField"] = auth.CSRFField(c)
	data["Identity"] = auth.CurrentIdentity(c)
	if _, ok := data["Notice"]; !ok && r.notices != nil {
		data["Notice"] = r.notices.PopNotice(c.Request)
	}
	c.HTML(status, name, data)
}

// renderError shows a generic error page and logs the cause.
func (r *Renderer) renderError(c *gin.Context, err error, context string) {
	logInternal(c, err, context)
	r.HTML(c, http.StatusInternalServerError, "error.html", gin.H{
		"Title": "Error",
		"Error": "Something went wrong. Please try again.",
	})
}

// NotFound is the terminal view for unknown paths and missing records.
func (r *Renderer) NotFound(c *gin.Context) {
	if wantsJSON(c) || isAPIPath(c) {
		respondNotFound(c, "page")
		return
	}
	r.HTML(c, http.StatusNotFound, "not_found.html", gin.H{
		"Title": "Not found",
		"Path":  c.Request.URL.Path,
	})
}
