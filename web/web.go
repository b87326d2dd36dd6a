// Package web holds the admin HTML templates.
package web

import "embed"

// Templates contains every page under templates/. Pages define a "content"
// block rendered inside layout.html.
//
//go:embed templates/*.html
var Templates embed.FS
