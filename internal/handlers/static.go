package handlers

import (
	"net/http"
	"os"
	"path/filepath"
)

// NewStatic serve o conteúdo público a partir de dir. O que não for um
// arquivo existente cai no notFound em JSON, em vez do 404 texto do
// http.FileServer.
func NewStatic(dir string, notFound http.Handler) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		st, err := os.Stat(name)
		if err == nil && st.IsDir() {
			st, err = os.Stat(filepath.Join(name, "index.html"))
		}
		if err != nil || st.IsDir() {
			notFound.ServeHTTP(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
}
