package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/splax/crate/internal/apperror"
	"github.com/splax/crate/internal/domain"
	"github.com/splax/crate/internal/validate"
)

const (
	maxBodyBytes = 1 << 20

	msgInvalidJSON   = "Invalid JSON body"
	msgUserNotFound  = "User with this email is not found"
	msgItemNotFound  = "Item not found"
	msgOwnerRequired = "Only owner have permission to execute this operation"
)

// authenticate resolves the access token header to an email.
func (r *Router) authenticate(_ context.Context, st *State) Outcome {
	email, err := r.auth.Authenticate(accessToken(st.Request))
	if err != nil {
		r.logger.Warn("access token rejected", "error", err, "path", st.Request.URL.Path)
		return Fail(apperror.Unauthorized(msgNotAuthorized))
	}
	st.Email = email
	return Next()
}

// lookupUser loads the user named by the token, or by the body on public
// routes. A missing user is left for later steps to judge.
func (r *Router) lookupUser(ctx context.Context, st *State) Outcome {
	email := st.Email
	if email == "" {
		email = stringField(st.Body, "email")
	}
	user, err := r.auth.FindByEmail(ctx, email)
	if err != nil {
		return Fail(err)
	}
	st.User = user
	return Next()
}

// loadUser is lookupUser for authenticated routes: a token whose user is gone
// is treated as unauthorized.
func (r *Router) loadUser(ctx context.Context, st *State) Outcome {
	if out := r.lookupUser(ctx, st); out.kind != outcomeNext {
		return out
	}
	if st.User == nil {
		return Fail(apperror.Unauthorized(msgNotAuthorized))
	}
	return Next()
}

func requireRole(role domain.Role) Step {
	msg := fmt.Sprintf("Only %s have permission to execute this operation", role)
	return func(_ context.Context, st *State) Outcome {
		if st.User == nil || st.User.Role != role {
			return Fail(apperror.Forbidden(msg))
		}
		return Next()
	}
}

func (r *Router) lookupItem(ctx context.Context, st *State) Outcome {
	item, err := r.items.FindByID(ctx, st.Request.PathValue("id"))
	if err != nil {
		return Fail(err)
	}
	if item == nil {
		return Fail(apperror.NotFound(msgItemNotFound))
	}
	st.Item = item
	return Next()
}

func requireOwner(_ context.Context, st *State) Outcome {
	if st.Item == nil || st.Item.Owner != st.Email {
		return Fail(apperror.Forbidden(msgOwnerRequired))
	}
	return Next()
}

// validBody decodes a JSON object body and checks it against schema.
func validBody(schema validate.Schema) Step {
	return func(_ context.Context, st *State) Outcome {
		body, err := decodeObject(st.Request)
		if err != nil {
			return Fail(apperror.BadRequest(msgInvalidJSON))
		}
		if errs := validate.Check(schema, body); len(errs) > 0 {
			msgs := make([]apperror.Message, 0, len(errs))
			for _, fe := range errs {
				msgs = append(msgs, apperror.Message{Field: fe.Field, Message: fe.Message})
			}
			return Fail(apperror.Validation(msgs...))
		}
		st.Body = body
		return Next()
	}
}

func decodeObject(req *http.Request) (map[string]any, error) {
	dec := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes))
	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errors.New("body is not a JSON object")
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON object")
	}
	return body, nil
}

func stringField(body map[string]any, key string) string {
	s, _ := body[key].(string)
	return s
}

func optionalString(body map[string]any, key string) *string {
	if s, ok := body[key].(string); ok {
		return &s
	}
	return nil
}

func optionalBool(body map[string]any, key string) *bool {
	if b, ok := body[key].(bool); ok {
		return &b
	}
	return nil
}
