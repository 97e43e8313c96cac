package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/trunov/framehub/internal/transport/handler"
)

func NewRouter(h *handler.Handler) chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Route("/images", func(r chi.Router) {
			r.Post("/", h.UploadImage)
			r.Get("/", h.ListImages)
			r.Get("/{id}", h.GetImage)
			r.Get("/{id}/thumbnail", h.GetThumbnail)
			r.Get("/{id}/preview", h.GetPreview)
		})

		r.Route("/devices", func(r chi.Router) {
			r.Post("/", h.CreateDevice)
			r.Get("/", h.ListDevices)
			r.Delete("/{id}", h.DeleteDevice)
			r.Post("/{id}/frame", h.SendFrame)
			r.Post("/{id}/brightness", h.SetControl("brightness"))
			r.Post("/{id}/temperature", h.SetControl("temperature"))
		})
	})

	return r
}
