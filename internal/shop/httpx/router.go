package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(RequireRequester)

		r.Post("/products", handler.CreateItem)
		r.Get("/products", handler.ListItems)
		r.Post("/orders", handler.SubmitOrder)
		r.Get("/orders/{id}", handler.GetOrderStatus)
	})

	return r
}
