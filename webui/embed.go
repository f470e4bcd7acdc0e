// Package webui exposes the embedded status page filesystem.
// It MUST live at the module root to embed the sibling "web/" directory.
// internal/dashboard/static.go imports this package to serve static files.
package webui

import "embed"

// FS is the embedded web directory tree containing the status page.
//
//go:embed web
var FS embed.FS
