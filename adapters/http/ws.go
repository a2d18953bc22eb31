package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/artpar/dinogen/app"
	"github.com/artpar/dinogen/domain/field"
	"github.com/artpar/dinogen/domain/validation"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

var errUnknownType = errors.New("unknown message type")

// ClientMessage is a command sent over the WebSocket.
type ClientMessage struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is a reply or notification sent over the WebSocket.
type ServerMessage struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// ServeWS upgrades to WebSocket and runs the command loop of one session.
// Each message is applied to completion before the next one is read.
func (h *SessionHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	log := h.logger.With().Str("session_id", sess.ID()).Logger()
	log.Debug().Msg("websocket connected")

	h.send(ctx, conn, ServerMessage{Type: "session", Data: sess.Snapshot()})

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				log.Debug().Int("status", int(status)).Msg("websocket closed")
			}
			return
		}
		h.dispatch(ctx, conn, sess, msg)
	}
}

func (h *SessionHandler) dispatch(ctx context.Context, conn *websocket.Conn, sess *app.Session, msg ClientMessage) {
	switch msg.Type {
	case "ping":
		h.send(ctx, conn, ServerMessage{Type: "pong", RequestID: msg.ID})
		return
	case "validate":
		v := sess.Validate()
		if v == nil {
			v = validation.Violations{}
		}
		h.send(ctx, conn, ServerMessage{Type: "violations", RequestID: msg.ID, Data: v})
		return
	}

	fields, err := h.command(sess, msg)
	if err != nil {
		var code string
		switch {
		case errors.Is(err, errUnknownType):
			code = "unknown_type"
		case errors.Is(err, errBadPayload):
			code = "invalid_data"
		default:
			_, code = errorStatus(err)
		}
		h.sendError(ctx, conn, msg.ID, code, err.Error())
		return
	}
	h.send(ctx, conn, ServerMessage{Type: "fields", RequestID: msg.ID, Data: fields})
}

// command decodes and applies one field command.
func (h *SessionHandler) command(sess *app.Session, msg ClientMessage) ([]*field.Node, error) {
	switch msg.Type {
	case "add":
		var data AddData
		if err := decodeData(msg.Data, &data); err != nil {
			return nil, err
		}
		if _, err := sess.AddField(data.ParentID); err != nil {
			return nil, err
		}
		return sess.Fields(), nil
	case "add_items":
		var data AddData
		if err := decodeData(msg.Data, &data); err != nil {
			return nil, err
		}
		if _, err := sess.AddItems(data.ParentID); err != nil {
			return nil, err
		}
		return sess.Fields(), nil
	case "remove":
		var data RemoveData
		if err := decodeData(msg.Data, &data); err != nil {
			return nil, err
		}
		if err := requireField(sess, data.ID); err != nil {
			return nil, err
		}
		return sess.Apply(field.RemoveField{ID: data.ID})
	case "update":
		var data UpdateData
		if err := decodeData(msg.Data, &data); err != nil {
			return nil, err
		}
		return update(sess, data)
	case "set_attribute":
		var data AttributeData
		if err := decodeData(msg.Data, &data); err != nil {
			return nil, err
		}
		if err := requireField(sess, data.ID); err != nil {
			return nil, err
		}
		return sess.Apply(field.SetAttribute{ID: data.ID, Name: data.Name, Value: data.Value})
	case "move":
		var data MoveData
		if err := decodeData(msg.Data, &data); err != nil {
			return nil, err
		}
		if err := requireField(sess, data.ID); err != nil {
			return nil, err
		}
		return sess.Apply(field.MoveField{ID: data.ID, Index: data.Index})
	case "reorder":
		var data OrderData
		if err := decodeData(msg.Data, &data); err != nil {
			return nil, err
		}
		return sess.Reorder(data.IDs)
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownType, msg.Type)
	}
}

func decodeData(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", errBadPayload, err)
	}
	return nil
}

func (h *SessionHandler) send(ctx context.Context, conn *websocket.Conn, msg ServerMessage) {
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		h.logger.Debug().Err(err).Str("type", msg.Type).Msg("websocket write failed")
	}
}

func (h *SessionHandler) sendError(ctx context.Context, conn *websocket.Conn, requestID, code, message string) {
	h.send(ctx, conn, ServerMessage{
		Type:      "error",
		RequestID: requestID,
		Data:      ErrorDetail{Code: code, Message: message},
	})
}
