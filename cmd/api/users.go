package main

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"groundz/internal/follow"
	"groundz/internal/notifications"
	"groundz/internal/store"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type userKey string

const userCtx userKey = "user"

func getUserFromContext(r *http.Request) *store.User {
	if user, ok := r.Context().Value(userCtx).(*store.User); ok {
		return user
	}
	return nil
}

// for cloudinary uploadParams
func boolPtr(b bool) *bool {
	return &b
}

// followSessions hands out one Toggler per authenticated user. The toggler
// carries the per-target in-flight guard, so a double-tapped follow button
// cannot issue two storage mutations for the same target.
type followSessions struct {
	mu       sync.Mutex
	togglers map[uuid.UUID]*follow.Toggler
}

func newFollowSessions() *followSessions {
	return &followSessions{togglers: make(map[uuid.UUID]*follow.Toggler)}
}

// togglerFor returns the viewer's toggler, creating and seeding it from
// storage on first use. The toggled target is the profile being viewed, so a
// cached toggler viewing a different profile is repointed with that profile's
// stored follower count before use.
func (app *application) togglerFor(ctx context.Context, viewer *store.User, target uuid.UUID) (*follow.Toggler, error) {
	app.follows.mu.Lock()
	t, ok := app.follows.togglers[viewer.ID]
	app.follows.mu.Unlock()
	if ok {
		if t.Profile() != target {
			followers, _, err := app.store.Followers.Counts(ctx, target)
			if err != nil {
				return nil, err
			}
			t.ViewProfile(target, followers)
		}
		return t, nil
	}

	following, err := app.store.Followers.CircleIDs(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	followers, _, err := app.store.Followers.Counts(ctx, target)
	if err != nil {
		return nil, err
	}
	_, viewerFollowing, err := app.store.Followers.Counts(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}

	t = follow.NewToggler(viewer.ID, target, app.store.Followers, app.bus, app.logger)
	t.Seed(following, followers, viewerFollowing)

	app.follows.mu.Lock()
	// another request may have seeded concurrently; first one wins
	if existing, ok := app.follows.togglers[viewer.ID]; ok {
		t = existing
	} else {
		app.follows.togglers[viewer.ID] = t
	}
	app.follows.mu.Unlock()
	if t.Profile() != target {
		t.ViewProfile(target, followers)
	}
	return t, nil
}

// FollowUser godoc
//
//	@Summary		Follows a user
//	@Description	Follows a user by ID. The relationship flips optimistically and rolls back if storage rejects it.
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			userID	path		string	true	"User ID"
//	@Success		204		{string}	string	"User followed"
//	@Success		202		{string}	string	"A toggle for this user is already resolving"
//	@Failure		400		{object}	error	"Invalid user ID or self-follow"
//	@Failure		409		{object}	error	"Already following"
//	@Security		ApiKeyAuth
//	@Router			/users/{userID}/follow [put]
func (app *application) followUserHandler(w http.ResponseWriter, r *http.Request) {
	viewer := getUserFromContext(r)
	target, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if target == viewer.ID {
		app.badRequestResponse(w, r, errors.New("cannot follow yourself"))
		return
	}

	ctx := r.Context()

	toggler, err := app.togglerFor(ctx, viewer, target)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if toggler.IsFollowing(target) {
		app.conflictResponse(w, r, store.ErrConflict)
		return
	}

	if err := toggler.Toggle(ctx, target); err != nil {
		switch {
		case errors.Is(err, follow.ErrToggleInFlight):
			// duplicate tap while the first request is still resolving
			w.WriteHeader(http.StatusAccepted)
		case errors.Is(err, store.ErrConflict):
			app.conflictResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	go func() {
		err := notifications.SendNewFollowerToUser(context.Background(), app.push, app.store, target, viewer.Username)
		if err != nil && !errors.Is(err, store.ErrNoTokens) {
			app.logger.Warnw("failed to send new follower notification", "target", target, "error", err)
		}
	}()

	if err := app.jsonResponse(w, http.StatusNoContent, nil); err != nil {
		app.internalServerError(w, r, err)
	}
}

// UnfollowUser godoc
//
//	@Summary		Unfollow a user
//	@Description	Unfollow a user by ID
//	@Tags			users
//	@Accept			json
//	@Produce		json
//	@Param			userID	path		string	true	"User ID"
//	@Success		204		{string}	string	"User unfollowed"
//	@Success		202		{string}	string	"A toggle for this user is already resolving"
//	@Failure		400		{object}	error	"Invalid user ID"
//	@Failure		404		{object}	error	"Not following this user"
//	@Security		ApiKeyAuth
//	@Router			/users/{userID}/unfollow [put]
func (app *application) unfollowUserHandler(w http.ResponseWriter, r *http.Request) {
	viewer := getUserFromContext(r)
	target, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	toggler, err := app.togglerFor(ctx, viewer, target)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if !toggler.IsFollowing(target) {
		app.notFoundResponse(w, r, store.ErrNotFound)
		return
	}

	if err := toggler.Toggle(ctx, target); err != nil {
		switch {
		case errors.Is(err, follow.ErrToggleInFlight):
			// duplicate tap while the first request is still resolving
			w.WriteHeader(http.StatusAccepted)
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusNoContent, nil); err != nil {
		app.internalServerError(w, r, err)
	}
}

// GetFollowers godoc
//
//	@Summary		List a user's followers
//	@Description	Lists followers of a user, personalized with whether the caller follows each one
//	@Tags			users
//	@Produce		json
//	@Param			userID	path		string			true	"User ID"
//	@Success		200		{object}	map[string]any	"followers plus counts"
//	@Failure		400		{object}	error			"Invalid user ID"
//	@Security		ApiKeyAuth
//	@Router			/users/{userID}/followers [get]
func (app *application) getFollowersHandler(w http.ResponseWriter, r *http.Request) {
	viewer := getUserFromContext(r)
	profileID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	profiles, err := app.store.Followers.ListFollowers(ctx, profileID, viewer.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	followers, following, err := app.store.Followers.Counts(ctx, profileID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, map[string]any{
		"followers":       profiles,
		"follower_count":  followers,
		"following_count": following,
	})
}

// GetFollowing godoc
//
//	@Summary		List who a user follows
//	@Description	Lists users a user follows, personalized with whether the caller follows each one
//	@Tags			users
//	@Produce		json
//	@Param			userID	path		string			true	"User ID"
//	@Success		200		{object}	map[string]any	"following plus counts"
//	@Failure		400		{object}	error			"Invalid user ID"
//	@Security		ApiKeyAuth
//	@Router			/users/{userID}/following [get]
func (app *application) getFollowingHandler(w http.ResponseWriter, r *http.Request) {
	viewer := getUserFromContext(r)
	profileID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()

	profiles, err := app.store.Followers.ListFollowing(ctx, profileID, viewer.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	followers, following, err := app.store.Followers.Counts(ctx, profileID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, map[string]any{
		"following":       profiles,
		"follower_count":  followers,
		"following_count": following,
	})
}

// getCurrentUserHandler godoc
//
//	@Summary		Get current user profile
//	@Description	Retrieve the authenticated user's profile information with follow counts
//	@Tags			users
//	@Produce		json
//	@Success		200	{object}	map[string]any	"Current user data"
//	@Failure		401	{object}	error			"Unauthorized"
//	@Failure		500	{object}	error			"Internal server error"
//	@Security		ApiKeyAuth
//	@Router			/users/me [get]
func (app *application) getCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	current := getUserFromContext(r)
	if current == nil {
		app.unauthorizedErrorResponse(w, r, errors.New("not authorized"))
		return
	}

	// re-fetch fresh data to avoid stale info
	user, err := app.store.Users.GetByID(r.Context(), current.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			app.notFoundResponse(w, r, err)
		} else {
			app.internalServerError(w, r, err)
		}
		return
	}

	followers, following, err := app.store.Followers.Counts(r.Context(), user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]any{
		"user":            user,
		"follower_count":  followers,
		"following_count": following,
	}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// editProfileHandler godoc
//
//	@Summary		Edit current user's profile
//	@Description	Update any combination of username, bio and/or avatar in one call.
//	@Tags			users
//	@Accept			mpfd
//	@Produce		json
//	@Param			username	formData	string	false	"Username"
//	@Param			bio			formData	string	false	"Short bio"
//	@Param			avatar		formData	file	false	"JPEG or PNG image (max 5 MB)"
//	@Success		204			{string}	string	"Profile updated successfully"
//	@Failure		400			{object}	error	"Bad request (e.g. parse error, invalid field)"
//	@Failure		500			{object}	error	"Internal server error"
//	@Security		ApiKeyAuth
//	@Router			/users/update-profile [patch]
func (app *application) editProfileHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	userID := user.ID

	if err := r.ParseMultipartForm(5 << 20); err != nil {
		http.Error(w, "Could not parse form", http.StatusBadRequest)
		return
	}

	// Build updates map
	updates := make(map[string]interface{})
	allowed := []string{"username", "bio"}
	for _, f := range allowed {
		if vals := r.MultipartForm.Value[f]; len(vals) > 0 {
			updates[f] = vals[0]
		}
	}

	// Handle optional avatar upload
	file, header, err := r.FormFile("avatar")
	if err == nil {
		defer file.Close()
		ct := header.Header.Get("Content-Type")
		if ct != "image/jpeg" && ct != "image/png" {
			http.Error(w, "only jpeg/png", http.StatusBadRequest)
			return
		}
		uploadParams := uploader.UploadParams{
			PublicID:       userID.String(),
			Overwrite:      boolPtr(true),
			Folder:         "avatars",
			Transformation: "w_300,h_300,c_fill,q_auto",
		}
		res, err := app.cld.Upload.Upload(r.Context(), file, uploadParams)
		if err != nil {
			http.Error(w, "upload failed", http.StatusInternalServerError)
			return
		}
		if err := app.store.Users.SetAvatar(r.Context(), userID, res.SecureURL); err != nil {
			app.internalServerError(w, r, err)
			return
		}
	}

	if len(updates) > 0 {
		if err := app.store.Users.UpdateProfile(r.Context(), userID, updates); err != nil {
			switch {
			case errors.Is(err, store.ErrDuplicateUsername):
				app.conflictResponse(w, r, err)
			case errors.Is(err, store.ErrNotFound):
				app.notFoundResponse(w, r, err)
			default:
				app.internalServerError(w, r, err)
			}
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// deleteUserAccountHandler godoc
//
//	@Summary		Delete current user account
//	@Description	Deletes the logged-in user's account and Cloudinary avatar
//	@Tags			users
//	@Produce		json
//	@Success		204	{string}	string	"User deleted"
//	@Failure		401	{object}	error	"Unauthorized"
//	@Failure		500	{object}	error	"Internal server error"
//	@Security		ApiKeyAuth
//	@Router			/users/me [delete]
func (app *application) deleteUserAccountHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)
	if user == nil {
		app.unauthorizedErrorResponse(w, r, errors.New("not authorized"))
		return
	}

	// Delete avatar if one exists
	if user.AvatarURL != nil {
		if err := app.deletePhotoFromCloudinary(*user.AvatarURL); err != nil {
			// Log failure, don't block deletion
			app.logger.Warnw("failed to delete avatar from cloudinary",
				"user", user.ID, "url", *user.AvatarURL, "error", err)
		}
	}

	if err := app.store.Users.Delete(r.Context(), user.ID); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.follows.mu.Lock()
	delete(app.follows.togglers, user.ID)
	app.follows.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// ActivateUser godoc
//
//	@Summary		Activate user account
//	@Description	Activate a user account using an activation token provided in the URL
//	@Tags			authentication
//	@Accept			json
//	@Produce		json
//	@Param			token	path		string	true	"Activation token"
//	@Success		204		{string}	string	"User activated"
//	@Failure		404		{object}	error	"User not found"
//	@Failure		500		{object}	error	"Internal server error"
//	@Router			/users/activate/{token} [put]
func (app *application) activateUserHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	err := app.store.Users.Activate(r.Context(), token)
	if err != nil {
		switch err {
		case store.ErrNotFound:
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusNoContent, "")
}
