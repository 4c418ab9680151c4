package api

import (
	"net/http"
	"strings"

	"windrig/pkg/logger"
)

// Router gerencia as rotas da API
type Router struct {
	handler     *Handler
	mux         *http.ServeMux
	basePath    string
	middlewares []Middleware
}

// NewRouter cria um novo router para a API
func NewRouter(rigService RigController, store HistoryStore, basePath string) *Router {
	handler := NewHandler(rigService, store)

	// Normalizar base path
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	basePath = strings.TrimSuffix(basePath, "/")

	middlewares := []Middleware{
		LoggingMiddleware,
		RecoveryMiddleware,
		CorsMiddleware,
	}

	return &Router{
		handler:     handler,
		mux:         http.NewServeMux(),
		basePath:    basePath,
		middlewares: middlewares,
	}
}

// Setup configura todas as rotas
func (r *Router) Setup() {
	r.mux.HandleFunc(r.path("/status"), r.handler.GetStatus)
	r.mux.HandleFunc(r.path("/state"), r.handler.GetState)
	r.mux.HandleFunc(r.path("/events"), r.handler.GetEvents)
	r.mux.HandleFunc(r.path("/channels"), r.handler.GetChannels)
	r.mux.HandleFunc(r.path("/history/altitude"), r.handler.GetAltitudeHistory)
	r.mux.HandleFunc(r.path("/boost"), r.handler.PostBoost)

	logger.Infof("API configurada com base path: %s", r.basePath)
}

// Handler retorna o handler HTTP final com todos os middlewares aplicados
func (r *Router) Handler() http.Handler {
	return r.applyMiddleware(r.mux)
}

// AddMiddleware adiciona um novo middleware
func (r *Router) AddMiddleware(middleware Middleware) {
	r.middlewares = append(r.middlewares, middleware)
}

// path retorna o caminho completo para uma rota
func (r *Router) path(route string) string {
	if !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return r.basePath + route
}

// applyMiddleware aplica todos os middlewares ao handler
func (r *Router) applyMiddleware(handler http.Handler) http.Handler {
	if len(r.middlewares) == 0 {
		return handler
	}

	return Chain(r.middlewares...)(handler)
}

// ServeHTTP implementa a interface http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.Handler().ServeHTTP(w, req)
}
