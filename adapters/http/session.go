package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/artpar/dinogen/app"
	"github.com/artpar/dinogen/domain/datatype"
	"github.com/artpar/dinogen/domain/draft"
	"github.com/artpar/dinogen/domain/field"
	"github.com/artpar/dinogen/domain/validation"
	"github.com/artpar/dinogen/ports"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const maxBodyBytes = 1 << 20

// SessionHandler exposes editing sessions over HTTP.
type SessionHandler struct {
	service *app.SessionService
	logger  zerolog.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(service *app.SessionService, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{service: service, logger: logger}
}

// RegisterRoutes mounts the session endpoints on r, which is expected to be
// rooted at /api/sessions.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)

	r.Route("/{sid}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Put("/meta", h.SetMeta)
		r.Get("/data-types", h.DataTypes)
		r.Get("/draft", h.Draft)

		r.Post("/fields", h.AddField)
		r.Put("/fields/order", h.Reorder)
		r.Patch("/fields/{fid}", h.UpdateField)
		r.Delete("/fields/{fid}", h.RemoveField)
		r.Post("/fields/{fid}/items", h.AddItems)
		r.Post("/fields/{fid}/move", h.MoveField)
		r.Put("/fields/{fid}/attributes/{name}", h.SetAttribute)
		r.Delete("/fields/{fid}/attributes/{name}", h.DeleteAttribute)

		r.Post("/validate", h.Validate)
		r.Get("/schema", h.Schema)
		r.Post("/submit", h.Submit)
		r.Get("/submissions", h.Submissions)
		r.Get("/submissions/{subid}", h.Submission)
	})
}

// -----------------------------------------------------------------------------
// Sessions
// -----------------------------------------------------------------------------

// List returns the ids of open sessions.
//
//	@Summary		List sessions
//	@Tags			Sessions
//	@Produce		json
//	@Success		200	{object}	map[string][]string	"Open session ids"
//	@Router			/api/sessions [get]
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": h.service.List()})
}

// Create opens a session. An optional body seeds it with a draft.
//
//	@Summary		Open session
//	@Description	Opens a session, optionally seeded with a JSON or YAML draft
//	@Tags			Sessions
//	@Accept			json
//	@Produce		json
//	@Success		201	{object}	app.Snapshot
//	@Failure		400	{object}	ErrorResponseBody
//	@Failure		429	{object}	ErrorResponseBody
//	@Router			/api/sessions [post]
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "failed to read body")
		return
	}

	var d *draft.Draft
	if len(strings.TrimSpace(string(body))) > 0 {
		d, err = draft.Parse(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_draft", err.Error())
			return
		}
	}

	sess, err := h.service.Create(r.Context(), d)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

// Get returns a session snapshot.
//
//	@Summary		Get session
//	@Tags			Sessions
//	@Produce		json
//	@Param			sid	path	string	true	"Session ID"
//	@Success		200	{object}	app.Snapshot
//	@Failure		404	{object}	ErrorResponseBody
//	@Router			/api/sessions/{sid} [get]
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// Delete closes a session.
//
//	@Summary		Close session
//	@Tags			Sessions
//	@Param			sid	path	string	true	"Session ID"
//	@Success		204
//	@Failure		404	{object}	ErrorResponseBody
//	@Router			/api/sessions/{sid} [delete]
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(chi.URLParam(r, "sid")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetMeta replaces the schema header.
//
//	@Summary		Set schema header
//	@Tags			Sessions
//	@Accept			json
//	@Produce		json
//	@Param			sid	path	string	true	"Session ID"
//	@Param			body	body	app.Meta	true	"Title, description and sample count"
//	@Success		200	{object}	app.Meta
//	@Failure		400	{object}	ErrorResponseBody
//	@Router			/api/sessions/{sid}/meta [put]
func (h *SessionHandler) SetMeta(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var m app.Meta
	if !decodeBody(w, r, &m) {
		return
	}
	if err := sess.SetMeta(m); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot().Meta)
}

// DataTypes returns the catalog the session was opened with.
//
//	@Summary		List data types
//	@Tags			Sessions
//	@Produce		json
//	@Param			sid	path	string	true	"Session ID"
//	@Success		200	{object}	map[string][]datatype.DataType
//	@Router			/api/sessions/{sid}/data-types [get]
func (h *SessionHandler) DataTypes(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	types := sess.Catalog().Types()
	if types == nil {
		types = []datatype.DataType{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data_types": types})
}

// Draft exports the session content as JSON, or YAML with ?format=yaml.
//
//	@Summary		Export draft
//	@Tags			Sessions
//	@Produce		json
//	@Produce		application/yaml
//	@Param			sid	path	string	true	"Session ID"
//	@Param			format	query	string	false	"json or yaml"
//	@Success		200	{object}	draft.Draft
//	@Router			/api/sessions/{sid}/draft [get]
func (h *SessionHandler) Draft(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	d := sess.Draft()
	if r.URL.Query().Get("format") != "yaml" {
		writeJSON(w, http.StatusOK, d)
		return
	}
	out, err := yaml.Marshal(d)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(out)
}

// -----------------------------------------------------------------------------
// Fields
// -----------------------------------------------------------------------------

// AddField appends a blank field.
//
//	@Summary		Add field
//	@Tags			Fields
//	@Accept			json
//	@Produce		json
//	@Param			sid	path	string	true	"Session ID"
//	@Param			body	body	AddData	false	"Optional parent"
//	@Success		201	{object}	AddedResponse
//	@Failure		404	{object}	ErrorResponseBody
//	@Router			/api/sessions/{sid}/fields [post]
func (h *SessionHandler) AddField(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var data AddData
	if !decodeOptionalBody(w, r, &data) {
		return
	}
	id, err := sess.AddField(data.ParentID)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AddedResponse{ID: id, Fields: sess.Fields()})
}

// AddItems gives a field a blank items definition.
//
//	@Summary		Add items definition
//	@Tags			Fields
//	@Produce		json
//	@Param			sid	path	string	true	"Session ID"
//	@Param			fid	path	string	true	"Field ID"
//	@Success		201	{object}	AddedResponse
//	@Failure		404	{object}	ErrorResponseBody
//	@Router			/api/sessions/{sid}/fields/{fid}/items [post]
func (h *SessionHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	id, err := sess.AddItems(chi.URLParam(r, "fid"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AddedResponse{ID: id, Fields: sess.Fields()})
}

// UpdateField sets one key of a field.
//
//	@Summary		Update field
//	@Tags			Fields
//	@Accept			json
//	@Produce		json
//	@Param			sid	path	string	true	"Session ID"
//	@Param			fid	path	string	true	"Field ID"
//	@Param			body	body	UpdateData	true	"Key and value"
//	@Success		200	{object}	FieldsResponse
//	@Failure		400	{object}	ErrorResponseBody
//	@Failure		404	{object}	ErrorResponseBody
//	@Router			/api/sessions/{sid}/fields/{fid} [patch]
func (h *SessionHandler) UpdateField(w http.ResponseWriter, r *http.Request) {
	sess, fid, ok := h.field(w, r)
	if !ok {
		return
	}
	var data UpdateData
	if !decodeBody(w, r, &data) {
		return
	}
	data.ID = fid
	fields, err := update(sess, data)
	h.respondFields(w, fields, err)
}

// SetAttribute sets one attribute of a field.
//
//	@Summary		Set attribute
//	@Tags			Fields
//	@Accept			json
//	@Produce		json
//	@Param			sid	path	string	true	"Session ID"
//	@Param			fid	path	string	true	"Field ID"
//	@Param			name	path	string	true	"Attribute name"
//	@Param			body	body	AttributeData	true	"Attribute value"
//	@Success		200	{object}	FieldsResponse
//	@Failure		404	{object}	ErrorResponseBody
//	@Router			/api/sessions/{sid}/fields/{fid}/attributes/{name} [put]
func (h *SessionHandler) SetAttribute(w http.ResponseWriter, r *http.Request) {
	sess, fid, ok := h.field(w, r)
	if !ok {
		return
	}
	var data AttributeData
	if !decodeBody(w, r, &data) {
		return
	}
	fields, err := sess.Apply(field.SetAttribute{ID: fid, Name: chi.URLParam(r, "name"), Value: data.Value})
	h.respondFields(w, fields, err)
}

// DeleteAttribute removes one attribute of a field.
//
//	@Summary		Delete attribute
//	@Tags			Fields
//	@Produce		json
//	@Param			sid	path	string	true	"Session ID"
//	@Param			fid	path	string	true	"Field ID"
//	@Param			name	path	string	true	"Attribute name"
//	@Success		200	{object}	FieldsResponse
//	@Failure		404	{object}	ErrorResponseBody
//	@Router			/api/sessions/{sid}/fields/{fid}/attributes/{name} [delete]
func (h *SessionHandler) DeleteAttribute(w http.ResponseWriter, r *http.Request) {
	sess, fid, ok := h.field(w, r)
	if !ok {
		return
	}
	fields, err := sess.Apply(field.SetAttribute{ID: fid, Name: chi.URLParam(r, "name")})
	h.respondFields(w, fields, err)
}

// MoveField moves a field within its sibling list.
//
//	@Summary		Move field
//	@Tags			Fields
//	@Accept			json
//	@Produce		json
//	@Param			sid	path	string	true	"Session ID"
//	@Param			fid	path	string	true	"Field ID"
//	@Param			body	body	MoveData	true	"Target index"
//	@Success		200	{object}	FieldsResponse
//	@Failure		404	{object}	ErrorResponseBody
//	@Router			/api/sessions/{sid}/fields/{fid}/move [post]
func (h *SessionHandler) MoveField(w http.ResponseWriter, r *http.Request) {
	sess, fid, ok := h.field(w, r)
	if !ok {
		return
	}
	var data MoveData
	if !decodeBody(w, r, &data) {
		return
	}
	fields, err := sess.Apply(field.MoveField{ID: fid, Index: data.Index})
	h.respondFields(w, fields, err)
}

// RemoveField deletes a field and its subtree.
//
//	@Summary		Remove field
//	@Tags			Fields
//	@Produce		json
//	@Param			sid	path	string	true	"Session ID"
//	@Param			fid	path	string	true	"Field ID"
//	@Success		200	{object}	FieldsResponse
//	@Failure		404	{object}	ErrorResponseBody
//	@Router			/api/sessions/{sid}/fields/{fid} [delete]
func (h *SessionHandler) RemoveField(w http.ResponseWriter, r *http.Request) {
	sess, fid, ok := h.field(w, r)
	if !ok {
		return
	}
	fields, err := sess.Apply(field.RemoveField{ID: fid})
	h.respondFields(w, fields, err)
}

// Reorder replaces the order of the root fields.
//
//	@Summary		Reorder root fields
//	@Tags			Fields
//	@Accept			json
//	@Produce		json
//	@Param			sid	path	string	true	"Session ID"
//	@Param			body	body	OrderData	true	"Root field ids in the new order"
//	@Success		200	{object}	FieldsResponse
//	@Failure		400	{object}	ErrorResponseBody
//	@Router			/api/sessions/{sid}/fields/order [put]
func (h *SessionHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var data OrderData
	if !decodeBody(w, r, &data) {
		return
	}
	fields, err := sess.Reorder(data.IDs)
	h.respondFields(w, fields, err)
}

// -----------------------------------------------------------------------------
// Validation, compilation and submission
// -----------------------------------------------------------------------------

// Validate reports every violation without submitting.
//
//	@Summary		Validate fields
//	@Tags			Generation
//	@Produce		json
//	@Param			sid	path	string	true	"Session ID"
//	@Success		200	{object}	ValidateResponse
//	@Router			/api/sessions/{sid}/validate [post]
func (h *SessionHandler) Validate(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	v := sess.Validate()
	if v == nil {
		v = validation.Violations{}
	}
	writeJSON(w, http.StatusOK, ValidateResponse{Valid: len(v) == 0, Errors: v})
}

// Schema returns the compiled JSON Schema document.
//
//	@Summary		Compiled schema
//	@Tags			Generation
//	@Produce		json
//	@Param			sid	path	string	true	"Session ID"
//	@Success		200	{object}	map[string]interface{}	"JSON Schema document"
//	@Header			200	{integer}	X-Catalog-Misses	"Data types missing from the catalog"
//	@Router			/api/sessions/{sid}/schema [get]
func (h *SessionHandler) Schema(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	doc, report := sess.Schema()
	if n := len(report.Misses); n > 0 {
		w.Header().Set("X-Catalog-Misses", strconv.Itoa(n))
	}
	writeJSON(w, http.StatusOK, doc)
}

// Submit validates, compiles and sends the schema for generation.
//
//	@Summary		Submit for generation
//	@Tags			Generation
//	@Produce		json
//	@Param			sid	path	string	true	"Session ID"
//	@Success		200	{object}	app.SubmitResult
//	@Failure		422	{object}	ViolationsResponse
//	@Failure		502	{object}	map[string]interface{}	"Generation failed, submission recorded"
//	@Router			/api/sessions/{sid}/submit [post]
func (h *SessionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	res, err := sess.Submit(r.Context())

	var v validation.Violations
	switch {
	case errors.As(err, &v):
		writeJSON(w, http.StatusUnprocessableEntity, ViolationsResponse{
			Error:      ErrorDetail{Code: "validation_failed", Message: v.Error()},
			Violations: v,
		})
	case err != nil && res.Submission.ID != "":
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":      ErrorDetail{Code: "generation_failed", Message: err.Error()},
			"submission": res.Submission,
		})
	case err != nil:
		h.fail(w, err)
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// Submissions lists the submission history, newest first.
//
//	@Summary		List submissions
//	@Tags			Generation
//	@Produce		json
//	@Param			sid	path	string	true	"Session ID"
//	@Param			limit	query	int	false	"Maximum rows"	default(50)
//	@Success		200	{object}	map[string][]ports.Submission
//	@Router			/api/sessions/{sid}/submissions [get]
func (h *SessionHandler) Submissions(w http.ResponseWriter, r *http.Request) {
	sid := chi.URLParam(r, "sid")
	limit := parseIntQuery(r, "limit", 50)
	subs, err := h.service.Submissions(r.Context(), sid, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	if subs == nil {
		subs = []ports.Submission{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}

// Submission returns one submission of the session.
//
//	@Summary		Get submission
//	@Tags			Generation
//	@Produce		json
//	@Param			sid	path	string	true	"Session ID"
//	@Param			subid	path	string	true	"Submission ID"
//	@Success		200	{object}	ports.Submission
//	@Failure		404	{object}	ErrorResponseBody
//	@Router			/api/sessions/{sid}/submissions/{subid} [get]
func (h *SessionHandler) Submission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.service.Submission(r.Context(), chi.URLParam(r, "subid"))
	if err == nil && sub.SessionID != chi.URLParam(r, "sid") {
		err = ports.ErrSubmissionNotFound
	}
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*app.Session, bool) {
	sess, err := h.service.Get(chi.URLParam(r, "sid"))
	if err != nil {
		h.fail(w, err)
		return nil, false
	}
	return sess, true
}

// field resolves the session and checks that the field exists.
func (h *SessionHandler) field(w http.ResponseWriter, r *http.Request) (*app.Session, string, bool) {
	sess, ok := h.session(w, r)
	if !ok {
		return nil, "", false
	}
	fid := chi.URLParam(r, "fid")
	if err := requireField(sess, fid); err != nil {
		h.fail(w, err)
		return nil, "", false
	}
	return sess, fid, true
}

func (h *SessionHandler) respondFields(w http.ResponseWriter, fields []*field.Node, err error) {
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FieldsResponse{Fields: fields})
}

func (h *SessionHandler) fail(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	if status >= 500 {
		h.logger.Error().Err(err).Msg("request failed")
	}
	writeError(w, status, code, err.Error())
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func parseIntQuery(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
