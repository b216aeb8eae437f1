// Package web embeds the printable document templates and the stylesheet
// they link to.
package web

import "embed"

// TemplatesFS holds the layout and the invoice, receipt, monthly and daily
// report templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS is served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
