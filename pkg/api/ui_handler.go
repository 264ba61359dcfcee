package api

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"time"

	gomime "github.com/cubewise-code/go-mime"
)

//go:embed ui
var uiContent embed.FS

const (
	indexFile     = "index.html"
	versionMarker = "{{version}}"
	originMarker  = "{{origin}}"
)

// Taken from https://github.com/mytrile/nocache
var noCacheHeaders = map[string]string{
	"Expires":         time.Unix(0, 0).Format(time.RFC1123),
	"Cache-Control":   "no-cache, private, max-age=0",
	"Pragma":          "no-cache",
	"X-Accel-Expires": "0",
}

var etagHeaders = []string{
	"ETag",
	"If-Modified-Since",
	"If-Match",
	"If-None-Match",
	"If-Range",
	"If-Unmodified-Since",
}

// NewUIHandler serves the embedded index page and its stylesheet.
func NewUIHandler(version, origin string) (http.Handler, error) {
	staticFiles, err := fs.Sub(uiContent, "ui")
	if err != nil {
		return nil, err
	}
	staticFiles, err = NewInjectIndexFS(staticFiles, indexFile, map[string]string{
		versionMarker: version,
		originMarker:  origin,
	})
	if err != nil {
		return nil, err
	}
	return NoCacheHandler(withContentType(http.FileServer(http.FS(staticFiles)))), nil
}

// withContentType sets the type from the file extension, so the file server does not sniff it.
func withContentType(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contentType := gomime.TypeByExtension(path.Ext(r.URL.Path)); contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		handler.ServeHTTP(w, r)
	})
}

// NoCacheHandler based on github.com/zenazn/goji's NoCache
func NoCacheHandler(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Delete any ETag headers that may have been set
		for _, v := range etagHeaders {
			if r.Header.Get(v) != "" {
				r.Header.Del(v)
			}
		}

		// Set our NoCache headers
		for k, v := range noCacheHeaders {
			w.Header().Set(k, v)
		}

		handler.ServeHTTP(w, r)
	})
}

// RedirectToIndex sends deep links of the web client back to the index page.
func RedirectToIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusFound)
}

// NotFound is the answer to every unknown path.
func NotFound(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("Nothing here!"))
}
