package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/management"
	"github.com/scriptorium-io/scriptorium/modules/catalog/services"
	"github.com/scriptorium-io/scriptorium/pkg/httpapi"
)

type ManagementController struct {
	service   *services.ManagementService
	revisions *services.RevisionService
}

func NewManagementController(service *services.ManagementService, revisions *services.RevisionService) *ManagementController {
	return &ManagementController{service: service, revisions: revisions}
}

func (c *ManagementController) Key() string {
	return "/managements"
}

func (c *ManagementController) Register(r *mux.Router) {
	router := r.PathPrefix("/managements").Subrouter()
	router.HandleFunc("", c.create).Methods(http.MethodPost)
	router.HandleFunc("/{id:[0-9]+}", c.get).Methods(http.MethodGet)
	router.HandleFunc("/{id:[0-9]+}", c.update).Methods(http.MethodPatch)
	router.HandleFunc("/{id:[0-9]+}", c.delete).Methods(http.MethodDelete)
	router.HandleFunc("/{id:[0-9]+}/merge/{secondaryID:[0-9]+}", c.merge).Methods(http.MethodPost)
	router.HandleFunc("/{id:[0-9]+}/tagged", c.listTagged).Methods(http.MethodGet)
	router.HandleFunc("/{id:[0-9]+}/revisions", c.listRevisions).Methods(http.MethodGet)
}

func (c *ManagementController) get(w http.ResponseWriter, r *http.Request) {
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

func (c *ManagementController) create(w http.ResponseWriter, r *http.Request) {
	dto := &management.CreateDTO{}
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

func (c *ManagementController) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	patch := &management.UpdateDTO{}
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

func (c *ManagementController) delete(w http.ResponseWriter, r *http.Request) {
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

func (c *ManagementController) merge(w http.ResponseWriter, r *http.Request) {
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

func (c *ManagementController) listTagged(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	refs, err := c.service.TaggedRefs(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, refs)
}

func (c *ManagementController) listRevisions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	writeRevisions(w, r, c.revisions, entity.KindManagement, id)
}
