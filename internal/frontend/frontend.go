// Package frontend serves the embedded browser console for the change stream.
package frontend

import (
	"embed"
	"io/fs"
	"net/http"
)

// Prefix is the URL path the console is mounted under.
const Prefix = "/filewatch/"

//go:embed static/*
var staticFiles embed.FS

// Handler serves the console files with Prefix stripped.
func Handler() http.Handler {
	sub, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix(Prefix, http.FileServer(http.FS(sub)))
}
