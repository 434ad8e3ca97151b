package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/splax/crate/internal/domain"
)

// State is the per-request value threaded through a pipeline. Steps read what
// earlier steps resolved and record their own results on it.
type State struct {
	Request *http.Request
	Body    map[string]any
	Email   string
	User    *domain.User
	Item    *domain.Item
	Items   []domain.Item
	Token   string

	header http.Header
}

type outcomeKind int

const (
	outcomeNext outcomeKind = iota
	outcomeDone
	outcomeFail
)

// Outcome is what a step decided: continue, respond now, or fail.
type Outcome struct {
	kind    outcomeKind
	status  int
	payload any
	err     error
}

// Next continues with the following step.
func Next() Outcome { return Outcome{kind: outcomeNext} }

// Done ends the pipeline with a response. A nil payload writes no body.
func Done(status int, payload any) Outcome {
	return Outcome{kind: outcomeDone, status: status, payload: payload}
}

// Fail ends the pipeline with err, skipping every remaining step.
func Fail(err error) Outcome { return Outcome{kind: outcomeFail, err: err} }

// Step is one stage of request processing.
type Step func(ctx context.Context, st *State) Outcome

var errNoResponse = errors.New("pipeline finished without a response")

// Run executes steps in order until one of them responds or fails.
func Run(ctx context.Context, st *State, steps ...Step) Outcome {
	for _, step := range steps {
		out := step(ctx, st)
		if out.kind != outcomeNext {
			return out
		}
	}
	return Fail(errNoResponse)
}

// pipeline adapts a step chain to an http.HandlerFunc.
func (r *Router) pipeline(steps ...Step) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		st := &State{Request: req, header: w.Header()}
		out := Run(req.Context(), st, steps...)
		if st.Email != "" {
			if setter, ok := w.(contextSetter); ok {
				setter.SetContext(withAuthInfo(req.Context(), authInfo{Email: st.Email}))
			}
		}
		if out.kind == outcomeFail {
			r.respondError(w, req, out.err)
			return
		}
		if out.payload == nil {
			w.WriteHeader(out.status)
			return
		}
		writeJSON(w, out.status, out.payload)
	}
}
