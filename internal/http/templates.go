package http

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
	"time"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

const placeholderImage = "/static/placeholder.svg"

func parseTemplates(publicURL string) (*template.Template, error) {
	funcs := template.FuncMap{
		"mediaURL":  mediaURLFunc(publicURL),
		"percent":   percent,
		"timestamp": timestamp,
		"videoTime": videoTime,
	}
	tmpl, err := template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return tmpl, nil
}

func staticFiles() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

// mediaURLFunc resolves backend-relative image paths. Without a public
// backend origin they go through the same-origin proxy.
func mediaURLFunc(publicURL string) func(string) string {
	return func(path string) string {
		path = strings.TrimSpace(path)
		switch {
		case path == "":
			return placeholderImage
		case strings.HasPrefix(path, "http://"), strings.HasPrefix(path, "https://"):
			return path
		case publicURL != "":
			return publicURL + "/" + strings.TrimLeft(path, "/")
		case strings.HasPrefix(path, "/api/v1/"):
			return path
		default:
			return "/backend/" + strings.TrimLeft(path, "/")
		}
	}
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func videoTime(seconds *float64) string {
	if seconds == nil {
		return ""
	}
	total := int(*seconds)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}
