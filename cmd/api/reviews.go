package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"groundz/internal/events"
	"groundz/internal/feed"
	"groundz/internal/notifications"
	"groundz/internal/sharelink"
	"groundz/internal/store"
	"groundz/internal/timeline"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// reviewResponse augments a stored review with derived fields: the opaque
// share code and the summary gate state. The raw AI summary text is stripped
// unless the gate says it is displayable.
type reviewResponse struct {
	store.Review
	ShareCode    string                `json:"share_code,omitempty"`
	SummaryState timeline.SummaryState `json:"summary_state"`
}

func (app *application) toReviewResponse(review store.Review) reviewResponse {
	state := timeline.StateOf(&review)
	if state != timeline.SummaryReady {
		review.AISummary = nil
	}

	code, err := app.shareCodes.Encode(review.ShareSeq)
	if err != nil {
		app.logger.Warnw("failed to encode share code", "review", review.ID, "error", err)
		code = ""
	}

	return reviewResponse{
		Review:       review,
		ShareCode:    code,
		SummaryState: state,
	}
}

type CreateReviewPayload struct {
	EntityID    *uuid.UUID `json:"entity_id"`
	Title       string     `json:"title" validate:"required,max=120"`
	Subtitle    *string    `json:"subtitle" validate:"omitempty,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	Rating      float64    `json:"rating" validate:"halfstar"`
	Category    string     `json:"category" validate:"required,oneof=place product book movie food"`
	Media       []string   `json:"media" validate:"omitempty,dive,url"`
}

// createReviewHandler godoc
//
//	@Summary		Create a review
//	@Description	Creates a review for an entity, optionally with media URLs
//	@Tags			reviews
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateReviewPayload			true	"Review details"
//	@Success		201		{object}	reviewResponse				"Review created"
//	@Failure		400		{object}	ErrorBadRequestResponse		"Bad request"
//	@Failure		500		{object}	ErrorInternalServerResponse	"Internal Server Error"
//	@Security		ApiKeyAuth
//	@Router			/reviews [post]
func (app *application) createReviewHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	var payload CreateReviewPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	review := &store.Review{
		UserID:      user.ID,
		EntityID:    payload.EntityID,
		Title:       payload.Title,
		Subtitle:    payload.Subtitle,
		Description: payload.Description,
		Rating:      payload.Rating,
		Category:    payload.Category,
		Media:       payload.Media,
	}

	if err := app.store.Reviews.Create(r.Context(), review); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	review.Username = user.Username
	review.AvatarURL = user.AvatarURL

	app.publishEvent(r.Context(), events.Event{
		Topic:  events.TopicPostsRefresh,
		UserID: user.ID,
	})

	if err := app.jsonResponse(w, http.StatusCreated, app.toReviewResponse(*review)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getReviewHandler godoc
//
//	@Summary		Get a review
//	@Description	Fetch one review with its share code and summary state
//	@Tags			reviews
//	@Produce		json
//	@Param			reviewID	path		string			true	"Review ID"
//	@Success		200			{object}	reviewResponse	"Review"
//	@Failure		404			{object}	error			"Review not found"
//	@Security		ApiKeyAuth
//	@Router			/reviews/{reviewID} [get]
func (app *application) getReviewHandler(w http.ResponseWriter, r *http.Request) {
	reviewID, err := uuid.Parse(chi.URLParam(r, "reviewID"))
	if err != nil {
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

	if err := app.jsonResponse(w, http.StatusOK, app.toReviewResponse(*review)); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteReviewHandler godoc
//
//	@Summary		Delete a review
//	@Description	Soft-deletes the caller's review; it disappears from feeds but timeline history is preserved
//	@Tags			reviews
//	@Produce		json
//	@Param			reviewID	path		string	true	"Review ID"
//	@Success		204			{string}	string	"Review deleted"
//	@Failure		404			{object}	error	"Review not found or not owned by caller"
//	@Security		ApiKeyAuth
//	@Router			/reviews/{reviewID} [delete]
func (app *application) deleteReviewHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	reviewID, err := uuid.Parse(chi.URLParam(r, "reviewID"))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.store.Reviews.SoftDelete(r.Context(), reviewID, user.ID); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.publishEvent(r.Context(), events.Event{
		Topic:  events.TopicPostsRefresh,
		UserID: user.ID,
	})

	w.WriteHeader(http.StatusNoContent)
}

// uploadReviewPhotoHandler godoc
//
//	@Summary		Upload a review photo
//	@Description	Uploads a photo to Cloudinary and appends it to the review's media list
//	@Tags			reviews
//	@Accept			mpfd
//	@Produce		json
//	@Param			reviewID	path		string			true	"Review ID"
//	@Param			photo		formData	file			true	"JPEG or PNG image (max 5 MB)"
//	@Success		200			{object}	map[string]any	"Uploaded photo URL"
//	@Failure		400			{object}	error			"Unable to parse form or retrieve file"
//	@Failure		500			{object}	error			"Upload or database failure"
//	@Security		ApiKeyAuth
//	@Router			/reviews/{reviewID}/photos [post]
func (app *application) uploadReviewPhotoHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	reviewID, err := uuid.Parse(chi.URLParam(r, "reviewID"))
	if err != nil {
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

	if err := r.ParseMultipartForm(5 << 20); err != nil {
		http.Error(w, "Unable to parse form, file size limit is 5MB", http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("photo")
	if err != nil {
		http.Error(w, "Unable to retrieve file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType != "image/jpeg" && contentType != "image/png" {
		http.Error(w, "Only JPEG and PNG images are allowed", http.StatusBadRequest)
		return
	}

	publicID := fmt.Sprintf("review_%s_%d", reviewID, time.Now().UnixNano())
	url, err := app.uploadToCloudinary(file, "reviews", publicID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.store.Reviews.AddPhotoURL(r.Context(), reviewID, url); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]any{"url": url}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// getEntityReviewsHandler godoc
//
//	@Summary		Classified entity review feed
//	@Description	Returns the entity's reviews filtered, partitioned into priority buckets and ordered for display
//	@Tags			entities
//	@Produce		json
//	@Param			entityID		path		string			true	"Entity ID"
//	@Param			sort			query		string			false	"Sort order"	Enums(most_recent, highest_rated, lowest_rated)
//	@Param			search			query		string			false	"Search in title and description"
//	@Param			verified		query		bool			false	"Only verified reviews"
//	@Param			rating			query		number			false	"Rating threshold"
//	@Param			rating_mode		query		string			false	"Rating match mode"	Enums(exact, range)
//	@Param			network_only	query		bool			false	"Only reviews from followed users"
//	@Param			has_timeline	query		bool			false	"Only reviews with timeline updates"
//	@Param			has_media		query		bool			false	"Only reviews with media"
//	@Success		200				{object}	map[string]any	"Ordered reviews plus bucket counts"
//	@Failure		400				{object}	error			"Invalid entity ID"
//	@Security		ApiKeyAuth
//	@Router			/entities/{entityID}/reviews [get]
func (app *application) getEntityReviewsHandler(w http.ResponseWriter, r *http.Request) {
	viewer := getUserFromContext(r)
	entityID, err := uuid.Parse(chi.URLParam(r, "entityID"))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	filters, sortBy, err := parseFeedQuery(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var (
		reviews   []store.Review
		circleIDs []uuid.UUID
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		reviews, err = app.store.Reviews.GetByEntity(ctx, entityID)
		return err
	})
	g.Go(func() error {
		var err error
		circleIDs, err = app.store.Followers.CircleIDs(ctx, viewer.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	result := feed.Classify(reviews, feed.NewCircleSet(circleIDs), filters, sortBy)

	app.jsonResponse(w, http.StatusOK, map[string]any{
		"reviews": app.toReviewResponses(result.Ordered),
		"counts":  result.Partition.Counts(),
		"sort":    sortBy,
	})
}

// maxRegularOnProfile caps the regular bucket on profile pages; priority
// buckets are always shown in full.
const maxRegularOnProfile = 3

// getUserReviewsHandler godoc
//
//	@Summary		Profile review section
//	@Description	Returns a user's reviews in priority order with the regular bucket truncated
//	@Tags			users
//	@Produce		json
//	@Param			userID	path		string			true	"User ID"
//	@Param			sort	query		string			false	"Sort order"	Enums(most_recent, highest_rated, lowest_rated)
//	@Success		200		{object}	map[string]any	"Ordered reviews plus bucket counts"
//	@Failure		400		{object}	error			"Invalid user ID"
//	@Security		ApiKeyAuth
//	@Router			/users/{userID}/reviews [get]
func (app *application) getUserReviewsHandler(w http.ResponseWriter, r *http.Request) {
	viewer := getUserFromContext(r)
	profileID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	filters, sortBy, err := parseFeedQuery(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var (
		reviews   []store.Review
		circleIDs []uuid.UUID
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		reviews, err = app.store.Reviews.GetByUser(ctx, profileID)
		return err
	})
	g.Go(func() error {
		var err error
		circleIDs, err = app.store.Followers.CircleIDs(ctx, viewer.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	circle := feed.NewCircleSet(circleIDs)
	filtered := feed.Apply(reviews, circle, filters)
	partition := feed.LimitRegular(feed.Split(filtered, circle), maxRegularOnProfile)

	app.jsonResponse(w, http.StatusOK, map[string]any{
		"reviews": app.toReviewResponses(feed.Order(partition, filtered, sortBy)),
		"counts":  partition.Counts(),
		"sort":    sortBy,
	})
}

// resolveShareCodeHandler godoc
//
//	@Summary		Resolve a share code
//	@Description	Decodes a share link code and returns the review it points at
//	@Tags			reviews
//	@Produce		json
//	@Param			code	path		string			true	"Share code"
//	@Success		200		{object}	reviewResponse	"Review"
//	@Failure		404		{object}	error			"Unknown or stale code"
//	@Router			/r/{code} [get]
func (app *application) resolveShareCodeHandler(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	shareSeq, err := app.shareCodes.Decode(code)
	if err != nil {
		if errors.Is(err, sharelink.ErrBadCode) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	review, err := app.store.Reviews.GetByShareSeq(r.Context(), shareSeq)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, app.toReviewResponse(*review)); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) toReviewResponses(reviews []store.Review) []reviewResponse {
	out := make([]reviewResponse, 0, len(reviews))
	for _, review := range reviews {
		out = append(out, app.toReviewResponse(review))
	}
	return out
}

func (app *application) publishEvent(ctx context.Context, e events.Event) {
	if err := app.bus.Publish(ctx, e); err != nil {
		app.logger.Warnw("failed to publish event", "topic", e.Topic, "error", err)
	}
}

func parseFeedQuery(r *http.Request) (feed.Filters, feed.Sort, error) {
	q := r.URL.Query()

	sortBy := feed.SortMostRecent
	switch q.Get("sort") {
	case "", string(feed.SortMostRecent):
	case string(feed.SortHighestRated):
		sortBy = feed.SortHighestRated
	case string(feed.SortLowestRated):
		sortBy = feed.SortLowestRated
	default:
		return feed.Filters{}, "", fmt.Errorf("invalid sort: %s", q.Get("sort"))
	}

	filters := feed.Filters{
		Search:      q.Get("search"),
		Verified:    q.Get("verified") == "true",
		NetworkOnly: q.Get("network_only") == "true",
		HasTimeline: q.Get("has_timeline") == "true",
		HasMedia:    q.Get("has_media") == "true",
		RatingMode:  feed.RatingModeRange,
	}

	if ratingStr := q.Get("rating"); ratingStr != "" {
		rating, err := strconv.ParseFloat(ratingStr, 64)
		if err != nil || rating < 0 || rating > 5 {
			return feed.Filters{}, "", fmt.Errorf("invalid rating: %s", ratingStr)
		}
		filters.RatingThreshold = &rating
	}
	if mode := q.Get("rating_mode"); mode == string(feed.RatingModeExact) {
		filters.RatingMode = feed.RatingModeExact
	}

	return filters, sortBy, nil
}

// notifyFollowersOfUpdate pushes a timeline-update notification in the
// background; a missing token set is normal, everything else gets logged.
func (app *application) notifyFollowersOfUpdate(review *store.Review) {
	go func() {
		err := notifications.SendTimelineUpdateToFollowers(context.Background(), app.push, app.store, review)
		if err != nil && !errors.Is(err, store.ErrNoTokens) {
			app.logger.Warnw("failed to send timeline update notification",
				"review", review.ID, "error", err)
		}
	}()
}
