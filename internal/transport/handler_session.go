package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pitabwire/vesselwizard/internal/wizard"
	"github.com/pitabwire/vesselwizard/model"
)

// maxBodyBytes bounds request bodies; file fields carry references, not
// content.
const maxBodyBytes = 1 << 20

// versionedRequest is the body shared by the session mutations. Version may
// also be sent in an If-Match header.
type versionedRequest struct {
	Version int            `json:"version"`
	Values  model.FormData `json:"values"`
	Step    *int           `json:"step,omitempty"`
	UnitIDs []string       `json:"unit_ids,omitempty"`
	Accept  *bool          `json:"accept,omitempty"`
}

func handleSessionStart(engine *wizard.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		var body struct {
			TransactionType string         `json:"transaction_type"`
			Prefill         model.FormData `json:"prefill"`
		}
		if err := decodeBody(r, &body); err != nil {
			WriteError(w, err)
			return
		}
		if body.TransactionType == "" {
			WriteBadRequest(w, "transaction_type is required")
			return
		}

		view, err := engine.Start(r.Context(), rctx, body.TransactionType, body.Prefill)
		if err != nil {
			writeRequestError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusCreated, view)
	}
}

func handleSessionList(engine *wizard.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		summaries, err := engine.List(r.Context(), rctx)
		if err != nil {
			writeRequestError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": summaries})
	}
}

func handleSessionGet(engine *wizard.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		view, err := engine.Get(r.Context(), rctx, chi.URLParam(r, "sessionId"))
		if err != nil {
			writeRequestError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	}
}

// sessionMutation adapts a versioned engine call to an HTTP handler.
func sessionMutation(call func(r *http.Request, rctx *model.RequestContext, id string, req versionedRequest) (*wizard.View, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		var req versionedRequest
		if err := decodeBody(r, &req); err != nil {
			WriteError(w, err)
			return
		}
		version, err := requestVersion(r, req.Version)
		if err != nil {
			WriteError(w, err)
			return
		}
		req.Version = version

		view, err := call(r, rctx, chi.URLParam(r, "sessionId"), req)
		if err != nil {
			writeRequestError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	}
}

func handleSessionFields(engine *wizard.Engine) http.HandlerFunc {
	return sessionMutation(func(r *http.Request, rctx *model.RequestContext, id string, req versionedRequest) (*wizard.View, error) {
		return engine.UpdateFields(r.Context(), rctx, id, req.Version, req.Values)
	})
}

func handleSessionNext(engine *wizard.Engine) http.HandlerFunc {
	return sessionMutation(func(r *http.Request, rctx *model.RequestContext, id string, req versionedRequest) (*wizard.View, error) {
		return engine.Next(r.Context(), rctx, id, req.Version, req.Values)
	})
}

func handleSessionBack(engine *wizard.Engine) http.HandlerFunc {
	return sessionMutation(func(r *http.Request, rctx *model.RequestContext, id string, req versionedRequest) (*wizard.View, error) {
		return engine.Back(r.Context(), rctx, id, req.Version)
	})
}

func handleSessionJump(engine *wizard.Engine) http.HandlerFunc {
	return sessionMutation(func(r *http.Request, rctx *model.RequestContext, id string, req versionedRequest) (*wizard.View, error) {
		if req.Step == nil {
			return nil, model.NewBadRequestError("step is required")
		}
		return engine.JumpTo(r.Context(), rctx, id, req.Version, *req.Step)
	})
}

func handleSessionConfirm(engine *wizard.Engine) http.HandlerFunc {
	return sessionMutation(func(r *http.Request, rctx *model.RequestContext, id string, req versionedRequest) (*wizard.View, error) {
		if req.Accept == nil {
			return nil, model.NewBadRequestError("accept is required")
		}
		return engine.Confirm(r.Context(), rctx, id, req.Version, *req.Accept)
	})
}

func handleSessionSelectUnits(engine *wizard.Engine) http.HandlerFunc {
	return sessionMutation(func(r *http.Request, rctx *model.RequestContext, id string, req versionedRequest) (*wizard.View, error) {
		return engine.SelectUnit(r.Context(), rctx, id, req.Version, req.UnitIDs)
	})
}

func handleSessionCancel(engine *wizard.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		var body versionedRequest
		if err := decodeBody(r, &body); err != nil {
			WriteError(w, err)
			return
		}
		version, err := requestVersion(r, body.Version)
		if err != nil {
			WriteError(w, err)
			return
		}

		if err := engine.Cancel(r.Context(), rctx, chi.URLParam(r, "sessionId"), version); err != nil {
			writeRequestError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": model.SessionStatusCancelled})
	}
}

func handleSessionUnits(engine *wizard.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := model.RequestContextFrom(r.Context())
		if rctx == nil {
			WriteError(w, model.NewUnauthorizedError("missing request context"))
			return
		}

		list, err := engine.ListUnits(r.Context(), rctx, chi.URLParam(r, "sessionId"))
		if err != nil {
			writeRequestError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, list)
	}
}

// decodeBody decodes a JSON body into dst. An empty body leaves dst
// unchanged.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return model.NewBadRequestError("invalid JSON body")
	}
	return nil
}

// requestVersion returns the session version from the body or, when the
// body has none, from If-Match. A version is required on every mutation.
func requestVersion(r *http.Request, fromBody int) (int, error) {
	if fromBody > 0 {
		return fromBody, nil
	}
	tag := strings.Trim(strings.TrimPrefix(r.Header.Get("If-Match"), "W/"), `"`)
	if tag == "" {
		return 0, model.NewBadRequestError("version is required")
	}
	v, err := strconv.Atoi(tag)
	if err != nil || v < 1 {
		return 0, model.NewBadRequestError("If-Match must carry the session version")
	}
	return v, nil
}
