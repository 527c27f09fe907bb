package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/danceflow/danceflow/core"
	"github.com/danceflow/danceflow/middleware/auth"
)

// Mount registers the five generated routes of svc under /<entity name>.
// extra registers hand-written routes on the same subrouter, e.g.
// /posts/{id}/reactions.
func Mount[T any](r chi.Router, svc *core.Service[T], log logrus.FieldLogger, extra ...func(chi.Router)) {
	h := &handlers[T]{svc: svc, log: log, param: svc.Entity().ParamName()}
	pattern := "/{" + h.param + "}"

	r.Route("/"+svc.Entity().Name(), func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		for _, register := range extra {
			register(r)
		}
		r.Get(pattern, h.get)
		r.Patch(pattern, h.update)
		r.Delete(pattern, h.delete)
	})
}

type handlers[T any] struct {
	svc   *core.Service[T]
	log   logrus.FieldLogger
	param string
}

func (h *handlers[T]) list(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.List(r.Context(), auth.GetIdentity(r.Context()), r.URL.Query())
	if err != nil {
		WriteError(w, r, h.log, err)
		return
	}
	if res.Paginated() {
		w.Header().Set("X-Total-Count", strconv.FormatInt(res.Total, 10))
		if link := LinkHeader(r, res.Page, res.Limit, res.Total); link != "" {
			w.Header().Set("Link", link)
		}
	}
	WriteData(w, http.StatusOK, res.Items)
}

func (h *handlers[T]) get(w http.ResponseWriter, r *http.Request) {
	doc, err := h.svc.Get(r.Context(), auth.GetIdentity(r.Context()), chi.URLParam(r, h.param))
	if err != nil {
		WriteError(w, r, h.log, err)
		return
	}
	WriteData(w, http.StatusOK, doc)
}

func (h *handlers[T]) create(w http.ResponseWriter, r *http.Request) {
	body, err := ReadBody(w, r)
	if err != nil {
		WriteError(w, r, h.log, err)
		return
	}
	doc, err := h.svc.Create(r.Context(), auth.GetIdentity(r.Context()), body)
	if err != nil {
		WriteError(w, r, h.log, err)
		return
	}
	WriteData(w, http.StatusCreated, doc)
}

func (h *handlers[T]) update(w http.ResponseWriter, r *http.Request) {
	body, err := ReadBody(w, r)
	if err != nil {
		WriteError(w, r, h.log, err)
		return
	}
	res, err := h.svc.Update(r.Context(), auth.GetIdentity(r.Context()), chi.URLParam(r, h.param), body)
	if err != nil {
		WriteError(w, r, h.log, err)
		return
	}
	WriteData(w, http.StatusOK, res)
}

func (h *handlers[T]) delete(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Delete(r.Context(), auth.GetIdentity(r.Context()), chi.URLParam(r, h.param))
	if err != nil {
		WriteError(w, r, h.log, err)
		return
	}
	WriteData(w, http.StatusOK, res)
}
