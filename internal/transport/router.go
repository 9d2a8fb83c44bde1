package transport

import "net/http"

type Handler interface {
	healthz(w http.ResponseWriter, r *http.Request)
	listTasks(w http.ResponseWriter, r *http.Request)
	createTask(w http.ResponseWriter, r *http.Request)
	updateTask(w http.ResponseWriter, r *http.Request)
	deleteTask(w http.ResponseWriter, r *http.Request)
	attachImage(w http.ResponseWriter, r *http.Request)
	listImages(w http.ResponseWriter, r *http.Request)
	downloadImage(w http.ResponseWriter, r *http.Request)
	detachImage(w http.ResponseWriter, r *http.Request)
	metrics(w http.ResponseWriter, r *http.Request)
}

type router struct {
	h      Handler
	client http.Handler
}

func NewRouter(h Handler, client http.Handler) *router {
	return &router{h: h, client: client}
}

func (r *router) MountRoutes(mux *http.ServeMux) *http.ServeMux {
	mux.HandleFunc("GET /healthz", r.h.healthz)

	mux.HandleFunc("GET /tasks", r.h.listTasks)
	mux.HandleFunc("POST /tasks", r.h.createTask)
	mux.HandleFunc("PATCH /tasks/{id}", r.h.updateTask)
	mux.HandleFunc("DELETE /tasks/{id}", r.h.deleteTask)

	mux.HandleFunc("POST /tasks/{id}/images", r.h.attachImage)
	mux.HandleFunc("GET /tasks/{id}/images", r.h.listImages)
	mux.HandleFunc("GET /tasks/{id}/images/{imageID}/download", r.h.downloadImage)
	mux.HandleFunc("DELETE /tasks/{id}/images/{imageID}", r.h.detachImage)

	mux.HandleFunc("GET /metrics/basic", r.h.metrics)

	if r.client != nil {
		mux.Handle("/", r.client)
	}

	return mux
}
