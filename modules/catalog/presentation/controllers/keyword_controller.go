package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/keyword"
	"github.com/scriptorium-io/scriptorium/modules/catalog/services"
	"github.com/scriptorium-io/scriptorium/pkg/httpapi"
)

type KeywordController struct {
	service   *services.KeywordService
	revisions *services.RevisionService
}

func NewKeywordController(service *services.KeywordService, revisions *services.RevisionService) *KeywordController {
	return &KeywordController{service: service, revisions: revisions}
}

func (c *KeywordController) Key() string {
	return "/keywords"
}

func (c *KeywordController) Register(r *mux.Router) {
	router := r.PathPrefix("/keywords").Subrouter()
	router.HandleFunc("", c.create).Methods(http.MethodPost)
	router.HandleFunc("/{id:[0-9]+}", c.get).Methods(http.MethodGet)
	router.HandleFunc("/{id:[0-9]+}", c.update).Methods(http.MethodPatch)
	router.HandleFunc("/{id:[0-9]+}", c.delete).Methods(http.MethodDelete)
	router.HandleFunc("/{id:[0-9]+}/merge/{secondaryID:[0-9]+}", c.merge).Methods(http.MethodPost)
	router.HandleFunc("/{id:[0-9]+}/revisions", c.listRevisions).Methods(http.MethodGet)
}

func (c *KeywordController) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	k, err := c.service.GetByID(r.Context(), id)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, k)
}

func (c *KeywordController) create(w http.ResponseWriter, r *http.Request) {
	dto := &keyword.CreateDTO{}
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

func (c *KeywordController) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	patch := &keyword.UpdateDTO{}
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

func (c *KeywordController) delete(w http.ResponseWriter, r *http.Request) {
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

func (c *KeywordController) merge(w http.ResponseWriter, r *http.Request) {
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

func (c *KeywordController) listRevisions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	writeRevisions(w, r, c.revisions, entity.KindKeyword, id)
}
