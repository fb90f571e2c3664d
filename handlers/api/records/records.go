package records

import (
	"errors"
	"net/http"

	"codeshare-server/core"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

var (
	errNotFound = ErrorResponse{Error: "Record not found"}
	errInternal = ErrorResponse{Error: "Internal Server Error"}
)

// HandleGet returns the stored document for the {title} URL parameter.
func HandleGet(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		title := chi.URLParam(r, "title")
		log := logrus.WithField("title", title)

		doc, err := store.Get(r.Context(), title)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, errNotFound)
				return
			}
			log.WithError(err).Error("Failed to fetch record")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, errInternal)
			return
		}

		render.JSON(w, r, doc)
	}
}

// HandleList returns every stored document as a JSON array.
func HandleList(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		docs, err := store.List(r.Context())
		if err != nil {
			logrus.WithError(err).Error("Failed to list records")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, errInternal)
			return
		}
		if docs == nil {
			docs = []core.Document{}
		}

		render.JSON(w, r, docs)
	}
}
