package ws

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter mounts the websocket endpoint next to health, metrics and,
// when not nil, the storage inspector.
func NewRouter(server *Server, metrics http.Handler, inspect http.Handler, allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.Handle("/ws", server).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	if inspect != nil {
		r.Handle("/debug/inspect", inspect).Methods(http.MethodGet)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		MaxAge:           300,
		AllowCredentials: true,
	})
	return c.Handler(r)
}
