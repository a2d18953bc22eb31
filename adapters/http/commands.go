package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/artpar/dinogen/app"
	"github.com/artpar/dinogen/domain/field"
	"github.com/artpar/dinogen/domain/validation"
	"github.com/artpar/dinogen/ports"
)

// Payloads shared by the REST endpoints and the WebSocket messages.

// AddData is the payload of "add" and "add_items".
type AddData struct {
	ParentID string `json:"parent_id,omitempty"`
}

// UpdateData is the payload of "update".
type UpdateData struct {
	ID    string          `json:"id,omitempty"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// AttributeData is the payload of "set_attribute".
type AttributeData struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Value string `json:"value"`
}

// MoveData is the payload of "move".
type MoveData struct {
	ID    string `json:"id,omitempty"`
	Index int    `json:"index"`
}

// RemoveData is the payload of "remove".
type RemoveData struct {
	ID string `json:"id"`
}

// OrderData is the payload of "reorder".
type OrderData struct {
	IDs []string `json:"ids"`
}

// AddedResponse reports the id of a new field and the resulting tree.
type AddedResponse struct {
	ID     string        `json:"id"`
	Fields []*field.Node `json:"fields"`
}

// FieldsResponse carries the root fields after a command.
type FieldsResponse struct {
	Fields []*field.Node `json:"fields"`
}

// ValidateResponse is the body of the validate endpoint.
type ValidateResponse struct {
	Valid  bool                  `json:"valid"`
	Errors validation.Violations `json:"errors"`
}

// ViolationsResponse is the body of a rejected submission.
type ViolationsResponse struct {
	Error      ErrorDetail           `json:"error"`
	Violations validation.Violations `json:"violations"`
}

var errBadPayload = errors.New("invalid payload")

// decodeValue turns the raw JSON value of an update into the Go type the
// key expects.
func decodeValue(key field.Key, raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	switch key {
	case field.KeyTitle, field.KeyDataType, field.KeyDescription:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %s wants a string", field.ErrValueType, key)
		}
		return s, nil
	case field.KeyAttributes:
		var a field.Attributes
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, fmt.Errorf("%w: attributes want an object of strings", field.ErrValueType)
		}
		return a, nil
	case field.KeyProperties:
		var nodes []*field.Node
		if err := json.Unmarshal(raw, &nodes); err != nil {
			return nil, fmt.Errorf("%w: properties want an array of fields", field.ErrValueType)
		}
		return nodes, nil
	case field.KeyItems:
		var n *field.Node
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, fmt.Errorf("%w: items want a field", field.ErrValueType)
		}
		if n == nil {
			return nil, nil
		}
		return n, nil
	}
	return nil, fmt.Errorf("%w: %q", field.ErrUnknownKey, key)
}

// requireField reports field.ErrNotFound for ids absent from the session tree.
// The domain treats edits of unknown ids as no-ops; both APIs answer 404.
func requireField(sess *app.Session, id string) error {
	if _, ok := sess.Find(id); !ok {
		return fmt.Errorf("%w: %q", field.ErrNotFound, id)
	}
	return nil
}

// update applies an UpdateData to the session.
func update(sess *app.Session, data UpdateData) ([]*field.Node, error) {
	if err := requireField(sess, data.ID); err != nil {
		return nil, err
	}
	key, err := field.ParseKey(data.Key)
	if err != nil {
		return nil, err
	}
	value, err := decodeValue(key, data.Value)
	if err != nil {
		return nil, err
	}
	return sess.Update(data.ID, key, value)
}

// errorStatus maps service and domain errors to an HTTP status and code.
func errorStatus(err error) (int, string) {
	var v validation.Violations
	switch {
	case errors.As(err, &v):
		return http.StatusUnprocessableEntity, "validation_failed"
	case errors.Is(err, app.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, ports.ErrSubmissionNotFound):
		return http.StatusNotFound, "submission_not_found"
	case errors.Is(err, field.ErrNotFound):
		return http.StatusNotFound, "field_not_found"
	case errors.Is(err, field.ErrDuplicateID):
		return http.StatusConflict, "duplicate_id"
	case errors.Is(err, field.ErrItemsPresent):
		return http.StatusConflict, "items_present"
	case errors.Is(err, field.ErrMissingID), errors.Is(err, field.ErrNilNode),
		errors.Is(err, field.ErrUnknownKey), errors.Is(err, field.ErrValueType):
		return http.StatusBadRequest, "invalid_command"
	case errors.Is(err, app.ErrInvalidOrder):
		return http.StatusBadRequest, "invalid_order"
	case errors.Is(err, app.ErrInvalidSamples):
		return http.StatusBadRequest, "invalid_samples"
	case errors.Is(err, app.ErrTooManySessions):
		return http.StatusTooManyRequests, "too_many_sessions"
	case errors.Is(err, errBadPayload):
		return http.StatusBadRequest, "invalid_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
