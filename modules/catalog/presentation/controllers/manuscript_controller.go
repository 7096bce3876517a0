package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/manuscript"
	"github.com/scriptorium-io/scriptorium/modules/catalog/services"
	"github.com/scriptorium-io/scriptorium/pkg/httpapi"
)

type ManuscriptController struct {
	service   *services.ManuscriptService
	revisions *services.RevisionService
}

func NewManuscriptController(service *services.ManuscriptService, revisions *services.RevisionService) *ManuscriptController {
	return &ManuscriptController{service: service, revisions: revisions}
}

func (c *ManuscriptController) Key() string {
	return "/manuscripts"
}

func (c *ManuscriptController) Register(r *mux.Router) {
	router := r.PathPrefix("/manuscripts").Subrouter()
	router.HandleFunc("", c.create).Methods(http.MethodPost)
	router.HandleFunc("/{id:[0-9]+}", c.get).Methods(http.MethodGet)
	router.HandleFunc("/{id:[0-9]+}", c.update).Methods(http.MethodPatch)
	router.HandleFunc("/{id:[0-9]+}", c.delete).Methods(http.MethodDelete)
	router.HandleFunc("/{id:[0-9]+}/merge/{secondaryID:[0-9]+}", c.merge).Methods(http.MethodPost)
	router.HandleFunc("/{id:[0-9]+}/revisions", c.listRevisions).Methods(http.MethodGet)
}

func (c *ManuscriptController) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	m, err := c.service.GetByID(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, m)
}

func (c *ManuscriptController) create(w http.ResponseWriter, r *http.Request) {
	dto := &manuscript.CreateDTO{}
	if err := decodeBody(r, dto); err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	created, err := c.service.Create(r.Context(), dto)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusCreated, created)
}

func (c *ManuscriptController) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	patch := &manuscript.UpdateDTO{}
	if err := decodeBody(r, patch); err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	updated, err := c.service.Update(r.Context(), id, patch)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, updated)
}

func (c *ManuscriptController) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	if err := c.service.Delete(r.Context(), id); err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusNoContent, nil)
}

func (c *ManuscriptController) merge(w http.ResponseWriter, r *http.Request) {
	primaryID, err := pathID(r, "id")
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	secondaryID, err := pathID(r, "secondaryID")
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	merged, err := c.service.Merge(r.Context(), primaryID, secondaryID)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, merged)
}

func (c *ManuscriptController) listRevisions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	writeRevisions(w, r, c.revisions, entity.KindManuscript, id)
}
