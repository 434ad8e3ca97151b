package httpx

import (
	"context"
	"net/http"

	"github.com/splax/crate/internal/apperror"
	"github.com/splax/crate/internal/domain"
	"github.com/splax/crate/internal/service/auth"
	"github.com/splax/crate/internal/service/item"
	"github.com/splax/crate/internal/validate"
)

type sessionView struct {
	AccessToken string          `json:"accessToken"`
	User        domain.UserView `json:"user"`
}

func (r *Router) signupChain() http.HandlerFunc {
	return r.pipeline(
		validBody(validate.SignupSchema),
		r.lookupUser,
		rejectExistingUser,
		r.createUser,
		r.issueToken,
		renderUser,
	)
}

func (r *Router) loginChain() http.HandlerFunc {
	return r.pipeline(
		validBody(validate.LoginSchema),
		r.lookupUser,
		r.comparePassword,
		r.issueToken,
		renderUser,
	)
}

func (r *Router) meChain() http.HandlerFunc {
	return r.pipeline(
		r.authenticate,
		r.limitUser(perMinute("me", rateLimitUserRead)),
		r.lookupUser,
		renderUser,
	)
}

func (r *Router) userItemsChain() http.HandlerFunc {
	return r.pipeline(
		r.authenticate,
		r.limitUser(perMinute("user_items", rateLimitUserRead)),
		r.loadUser,
		requireRole(domain.RoleArtist),
		r.listOwnItems,
		renderItems,
	)
}

func (r *Router) createItemChain() http.HandlerFunc {
	return r.pipeline(
		r.authenticate,
		r.limitUser(perMinute("items_create", rateLimitUserWrite)),
		r.loadUser,
		requireRole(domain.RoleArtist),
		validBody(validate.ItemSchema),
		r.createItem,
	)
}

func (r *Router) getItemChain() http.HandlerFunc {
	return r.pipeline(
		r.authenticate,
		r.limitUser(perMinute("items_get", rateLimitUserRead)),
		r.lookupItem,
		renderItem,
	)
}

func (r *Router) updateItemChain() http.HandlerFunc {
	return r.pipeline(
		r.authenticate,
		r.limitUser(perMinute("items_update", rateLimitUserWrite)),
		r.lookupItem,
		requireOwner,
		validBody(validate.ItemSchema),
		r.updateItem,
	)
}

func (r *Router) deleteItemChain() http.HandlerFunc {
	return r.pipeline(
		r.authenticate,
		r.limitUser(perMinute("items_delete", rateLimitUserWrite)),
		r.lookupItem,
		requireOwner,
		r.removeItem,
	)
}

func rejectExistingUser(_ context.Context, st *State) Outcome {
	if st.User != nil {
		return Fail(apperror.BadRequest(auth.MsgEmailTaken))
	}
	return Next()
}

func (r *Router) createUser(ctx context.Context, st *State) Outcome {
	user, err := r.auth.Create(ctx, auth.SignupInput{
		Email:     stringField(st.Body, "email"),
		Password:  stringField(st.Body, "password"),
		FirstName: stringField(st.Body, "firstName"),
		LastName:  stringField(st.Body, "lastName"),
		Role:      domain.Role(stringField(st.Body, "role")),
	})
	if err != nil {
		return Fail(err)
	}
	st.User = user
	return Next()
}

// comparePassword is skipped for unknown emails; renderUser reports those.
func (r *Router) comparePassword(_ context.Context, st *State) Outcome {
	if st.User == nil {
		return Next()
	}
	same, err := r.auth.VerifyPassword(stringField(st.Body, "password"), st.User)
	if err != nil {
		return Fail(err)
	}
	if !same {
		return Fail(apperror.BadRequest("Password is not matching email address"))
	}
	return Next()
}

func (r *Router) issueToken(_ context.Context, st *State) Outcome {
	if st.User == nil {
		return Next()
	}
	st.Token = r.auth.IssueToken(st.User.Email)
	return Next()
}

// renderUser answers with the session when a token was issued and with the
// bare user view otherwise.
func renderUser(_ context.Context, st *State) Outcome {
	if st.User == nil {
		return Fail(apperror.NotFound(msgUserNotFound))
	}
	view := auth.PublicView(st.User)
	if st.Token != "" {
		return Done(http.StatusOK, sessionView{AccessToken: st.Token, User: view})
	}
	return Done(http.StatusOK, view)
}

func (r *Router) listOwnItems(ctx context.Context, st *State) Outcome {
	items, err := r.items.ListByOwner(ctx, st.Email)
	if err != nil {
		return Fail(err)
	}
	st.Items = items
	return Next()
}

func renderItems(_ context.Context, st *State) Outcome {
	return Done(http.StatusOK, item.PublicViews(st.Items))
}

func renderItem(_ context.Context, st *State) Outcome {
	return Done(http.StatusOK, item.PublicView(st.Item))
}

func (r *Router) createItem(ctx context.Context, st *State) Outcome {
	created, err := r.items.Create(ctx, st.Email, item.CreateInput{
		Title:       stringField(st.Body, "title"),
		Description: stringField(st.Body, "description"),
		IsPublic:    optionalBool(st.Body, "isPublic"),
	})
	if err != nil {
		return Fail(err)
	}
	return Done(http.StatusOK, item.PublicView(created))
}

func (r *Router) updateItem(ctx context.Context, st *State) Outcome {
	updated, err := r.items.Update(ctx, st.Item, domain.ItemPatch{
		Title:       optionalString(st.Body, "title"),
		Description: optionalString(st.Body, "description"),
		IsPublic:    optionalBool(st.Body, "isPublic"),
	})
	if err != nil {
		return Fail(err)
	}
	if updated == nil {
		return Fail(apperror.NotFound(msgItemNotFound))
	}
	return Done(http.StatusOK, item.PublicView(updated))
}

func (r *Router) removeItem(ctx context.Context, st *State) Outcome {
	removed, err := r.items.Remove(ctx, st.Item.ID)
	if err != nil {
		return Fail(err)
	}
	if removed == nil {
		return Fail(apperror.NotFound(msgItemNotFound))
	}
	return Done(http.StatusNoContent, nil)
}
