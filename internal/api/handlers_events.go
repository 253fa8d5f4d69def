package api

import (
	"errors"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/diogoX451/callrelay/internal/logging"
	"github.com/diogoX451/callrelay/internal/stream"
)

// Handler: GET /api/events
// Bloqueia enquanto o cliente estiver conectado
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	err := s.streams.Attach(r.Context(), w)
	if errors.Is(err, stream.ErrStreamingUnsupported) {
		respondError(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", err.Error())
		return
	}
	if err != nil {
		logging.Component("api").WithError(err).Debug("event stream ended")
	}
}

var contentTypes = map[string]string{
	".html": "text/html",
	".js":   "text/javascript",
	".css":  "text/css",
	".json": "application/json",
}

// Handler: GET / e arquivos estáticos de publicDir
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)
	if name == "/" {
		name = "/index.html"
	}
	if s.publicDir == "" || strings.Contains(name, "..") {
		http.Error(w, "404 Not Found", http.StatusNotFound)
		return
	}

	content, err := os.ReadFile(filepath.Join(s.publicDir, filepath.FromSlash(name)))
	if err != nil {
		http.Error(w, "404 Not Found", http.StatusNotFound)
		return
	}

	contentType, ok := contentTypes[path.Ext(name)]
	if !ok {
		contentType = "text/plain"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(content)
}
