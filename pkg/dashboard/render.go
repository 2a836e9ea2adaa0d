package dashboard

import (
	"embed"
	"html/template"
	"io"
	"strconv"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var page = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"short":      shortHash,
	"percent":    formatPercent,
	"optPercent": formatOptPercent,
	"optFloat":   formatOptFloat,
	"optUint":    formatOptUint,
	"optBool":    formatOptBool,
	"optString":  formatOptString,
	"timestamp":  formatTime,
	"optTime":    formatOptTime,
}).ParseFS(templateFS, "templates/dashboard.html"))

// Render writes the dashboard HTML for s.
func Render(w io.Writer, s *Summary) error {
	return page.Execute(w, s)
}

const none = "-"

func shortHash(h string) string {
	if len(h) <= 8 {
		return h
	}
	return h[:8]
}

// formatPercent renders a stake fraction as a percentage. Values above 1 are shown as-is.
func formatPercent(f float64) string {
	return strconv.FormatFloat(f*100, 'f', 2, 64) + "%"
}

func formatOptPercent(f *float64) string {
	if f == nil {
		return none
	}
	return formatPercent(*f)
}

func formatOptFloat(f *float64) string {
	if f == nil {
		return none
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatOptUint(u *uint64) string {
	if u == nil {
		return none
	}
	return strconv.FormatUint(*u, 10)
}

func formatOptBool(b *bool) string {
	switch {
	case b == nil:
		return none
	case *b:
		return "yes"
	default:
		return "no"
	}
}

func formatOptString(s *string) string {
	if s == nil || *s == "" {
		return none
	}
	return *s
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

func formatOptTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return formatTime(*t)
}

