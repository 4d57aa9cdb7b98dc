package main

import (
	"errors"
	"net/http"

	"groundz/internal/events"
	"groundz/internal/store"
	"groundz/internal/timeline"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// getTimelineHandler godoc
//
//	@Summary		Get a review's timeline
//	@Description	Returns the review's initial impression and follow-up updates as one ordered sequence, plus the summary gate state
//	@Tags			reviews
//	@Produce		json
//	@Param			reviewID	path		string			true	"Review ID"
//	@Success		200			{object}	map[string]any	"Timeline entries and summary state"
//	@Failure		404			{object}	error			"Review not found"
//	@Security		ApiKeyAuth
//	@Router			/reviews/{reviewID}/timeline [get]
func (app *application) getTimelineHandler(w http.ResponseWriter, r *http.Request) {
	reviewID, err := uuid.Parse(chi.URLParam(r, "reviewID"))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var (
		review  *store.Review
		updates []store.ReviewUpdate
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		review, err = app.store.Reviews.GetByID(ctx, reviewID)
		return err
	})
	g.Go(func() error {
		var err error
		updates, err = app.store.ReviewUpdates.Fetch(ctx, reviewID)
		return err
	})
	if err := g.Wait(); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	entries := timeline.Assemble(review, updates)

	response := map[string]any{
		"entries":       entries,
		"update_count":  len(updates),
		"summary_state": timeline.StateOf(review),
	}
	if timeline.ShouldShowSummary(review) {
		response["ai_summary"] = review.AISummary
	}

	if err := app.jsonResponse(w, http.StatusOK, response); err != nil {
		app.internalServerError(w, r, err)
	}
}

type AddTimelineUpdatePayload struct {
	Rating  *float64 `json:"rating" validate:"omitempty,halfstar"`
	Comment string   `json:"comment" validate:"required,max=2000"`
}

// addTimelineUpdateHandler godoc
//
//	@Summary		Add a timeline update
//	@Description	Appends an update to the caller's review. The review's timeline counter moves in the same transaction.
//	@Tags			reviews
//	@Accept			json
//	@Produce		json
//	@Param			reviewID	path		string						true	"Review ID"
//	@Param			payload		body		AddTimelineUpdatePayload	true	"Update content"
//	@Success		201			{object}	store.ReviewUpdate			"Update created"
//	@Failure		400			{object}	ErrorBadRequestResponse		"Empty comment or invalid rating"
//	@Failure		403			{object}	error						"Review belongs to someone else"
//	@Failure		404			{object}	error						"Review not found"
//	@Security		ApiKeyAuth
//	@Router			/reviews/{reviewID}/updates [post]
func (app *application) addTimelineUpdateHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	reviewID, err := uuid.Parse(chi.URLParam(r, "reviewID"))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload AddTimelineUpdatePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	review, err := app.store.Reviews.GetByID(r.Context(), reviewID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}
	if review.UserID != user.ID {
		app.forbiddenResponse(w, r)
		return
	}

	update := &store.ReviewUpdate{
		ReviewID: reviewID,
		UserID:   user.ID,
		Rating:   payload.Rating,
		Comment:  payload.Comment,
	}

	if err := app.store.ReviewUpdates.Add(r.Context(), update); err != nil {
		switch {
		case errors.Is(err, store.ErrEmptyComment):
			app.badRequestResponse(w, r, err)
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.publishEvent(r.Context(), events.Event{
		Topic:  events.TopicTimelineRefresh,
		UserID: review.UserID,
	})

	app.notifyFollowersOfUpdate(review)

	if err := app.jsonResponse(w, http.StatusCreated, update); err != nil {
		app.internalServerError(w, r, err)
	}
}
