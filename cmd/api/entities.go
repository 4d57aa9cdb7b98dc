package main

import (
	"errors"
	"net/http"
	"strings"

	"groundz/internal/params"
	"groundz/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type CreateEntityPayload struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Type        string  `json:"type" validate:"required,oneof=place product book movie food"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	ImageURL    *string `json:"image_url" validate:"omitempty,url"`
}

// createEntityHandler godoc
//
//	@Summary		Create an entity
//	@Description	Creates a reviewable entity (place, product, book, movie or food)
//	@Tags			entities
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateEntityPayload			true	"Entity details"
//	@Success		201		{object}	store.Entity				"Entity created"
//	@Failure		400		{object}	ErrorBadRequestResponse		"Bad request"
//	@Failure		500		{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Security		ApiKeyAuth
//	@Router			/entities [post]
func (app *application) createEntityHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	var payload CreateEntityPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	entity := &store.Entity{
		Name:        payload.Name,
		Type:        payload.Type,
		Description: payload.Description,
		ImageURL:    payload.ImageURL,
		CreatedBy:   user.ID,
	}

	if err := app.store.Entities.Create(r.Context(), entity); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, entity); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getEntityHandler godoc
//
//	@Summary		Get an entity
//	@Description	Fetch one entity by ID
//	@Tags			entities
//	@Produce		json
//	@Param			entityID	path		string			true	"Entity ID"
//	@Success		200			{object}	store.Entity	"Entity"
//	@Failure		404			{object}	error			"Entity not found"
//	@Security		ApiKeyAuth
//	@Router			/entities/{entityID} [get]
func (app *application) getEntityHandler(w http.ResponseWriter, r *http.Request) {
	entityID, err := uuid.Parse(chi.URLParam(r, "entityID"))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	entity, err := app.store.Entities.GetByID(r.Context(), entityID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, entity); err != nil {
		app.internalServerError(w, r, err)
	}
}

// searchEntitiesHandler godoc
//
//	@Summary		Search entities
//	@Description	Case-insensitive name search over entities
//	@Tags			entities
//	@Produce		json
//	@Param			q		query		string			true	"Search term"
//	@Param			limit	query		int				false	"Max results (default: 15)"
//	@Success		200		{object}	[]store.Entity	"Matching entities"
//	@Failure		400		{object}	error			"Missing search term"
//	@Security		ApiKeyAuth
//	@Router			/entities/search [get]
func (app *application) searchEntitiesHandler(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		app.badRequestResponse(w, r, errors.New("search term is required"))
		return
	}

	pg := params.ParsePagination(r.URL.Query())

	entities, err := app.store.Entities.Search(r.Context(), term, pg.Limit)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, entities); err != nil {
		app.internalServerError(w, r, err)
	}
}
