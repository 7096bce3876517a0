package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/person"
	"github.com/scriptorium-io/scriptorium/modules/catalog/services"
	"github.com/scriptorium-io/scriptorium/pkg/httpapi"
)

type PersonController struct {
	service   *services.PersonService
	revisions *services.RevisionService
}

func NewPersonController(service *services.PersonService, revisions *services.RevisionService) *PersonController {
	return &PersonController{service: service, revisions: revisions}
}

func (c *PersonController) Key() string {
	return "/persons"
}

func (c *PersonController) Register(r *mux.Router) {
	router := r.PathPrefix("/persons").Subrouter()
	router.HandleFunc("", c.create).Methods(http.MethodPost)
	router.HandleFunc("/{id:[0-9]+}", c.get).Methods(http.MethodGet)
	router.HandleFunc("/{id:[0-9]+}", c.update).Methods(http.MethodPatch)
	router.HandleFunc("/{id:[0-9]+}", c.delete).Methods(http.MethodDelete)
	router.HandleFunc("/{id:[0-9]+}/merge/{secondaryID:[0-9]+}", c.merge).Methods(http.MethodPost)
	router.HandleFunc("/{id:[0-9]+}/revisions", c.listRevisions).Methods(http.MethodGet)
}

func (c *PersonController) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	p, err := c.service.GetByID(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, p)
}

func (c *PersonController) create(w http.ResponseWriter, r *http.Request) {
	dto := &person.CreateDTO{}
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

func (c *PersonController) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	patch := &person.UpdateDTO{}
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

func (c *PersonController) delete(w http.ResponseWriter, r *http.Request) {
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

func (c *PersonController) merge(w http.ResponseWriter, r *http.Request) {
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

func (c *PersonController) listRevisions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	writeRevisions(w, r, c.revisions, entity.KindPerson, id)
}
