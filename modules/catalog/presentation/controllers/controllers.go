// Package controllers exposes the catalog facades as a JSON API. The layer
// stays thin: decode a DTO, call the facade, map structured errors to
// statuses. All consistency logic lives in the services.
package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/wI2L/jsondiff"

	"github.com/scriptorium-io/scriptorium/modules/catalog/domain/entity"
	"github.com/scriptorium-io/scriptorium/modules/catalog/services"
	"github.com/scriptorium-io/scriptorium/pkg/configuration"
	"github.com/scriptorium-io/scriptorium/pkg/httpapi"
	"github.com/scriptorium-io/scriptorium/pkg/serrors"
)

func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, serrors.NewBadRequest("malformed id " + raw)
	}
	return id, nil
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return serrors.NewBadRequest("malformed request body")
	}
	return nil
}

func pagination(r *http.Request) (limit, offset int) {
	conf := configuration.Use()
	limit = conf.PageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= conf.MaxPageSize {
			limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

type revisionResponse struct {
	ID        int64           `json:"id"`
	ActorID   uuid.UUID       `json:"actor_id"`
	Old       json.RawMessage `json:"old,omitempty"`
	New       json.RawMessage `json:"new,omitempty"`
	Diff      jsondiff.Patch  `json:"diff,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type revisionListResponse struct {
	Total     int64               `json:"total"`
	Revisions []*revisionResponse `json:"revisions"`
}

func writeRevisions(w http.ResponseWriter, r *http.Request, revisions *services.RevisionService, kind entity.Kind, id int64) {
	limit, offset := pagination(r)
	params := &entity.RevisionFindParams{Kind: kind, EntityID: id, Limit: limit, Offset: offset}
	entries, err := revisions.List(r.Context(), params)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	total, err := revisions.Count(r.Context(), params)
	if err != nil {
		_ = httpapi.WriteServiceError(w, err)
		return
	}
	out := &revisionListResponse{Total: total, Revisions: make([]*revisionResponse, 0, len(entries))}
	for _, entry := range entries {
		out.Revisions = append(out.Revisions, &revisionResponse{
			ID:        entry.Revision.ID,
			ActorID:   entry.Revision.ActorID,
			Old:       entry.Revision.Old,
			New:       entry.Revision.New,
			Diff:      entry.Diff,
			CreatedAt: entry.Revision.CreatedAt,
		})
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, out)
}
