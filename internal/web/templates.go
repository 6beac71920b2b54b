package web

import (
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Languages offered on the upload form. "auto" lets the transcriber detect it.
var Languages = []Language{
	{Code: "auto", Name: "Auto detect"},
	{Code: "en", Name: "English"},
	{Code: "de", Name: "German"},
	{Code: "fr", Name: "French"},
	{Code: "es", Name: "Spanish"},
	{Code: "it", Name: "Italian"},
	{Code: "pt", Name: "Portuguese"},
	{Code: "nl", Name: "Dutch"},
	{Code: "ru", Name: "Russian"},
	{Code: "zh", Name: "Chinese"},
	{Code: "ja", Name: "Japanese"},
}

type Language struct {
	Code string
	Name string
}

type indexPage struct {
	Error     string
	Languages []Language
}

type processingPage struct {
	JobID string
}

type resultPage struct {
	Text        string
	DownloadURL string
}
