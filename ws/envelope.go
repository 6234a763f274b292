package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sodeclick-chat/contract"
	"sodeclick-chat/domain/chat"
	"sodeclick-chat/domain/event"
	"sodeclick-chat/errors"
)

// Envelope is the inbound frame: {"event": "...", "data": {...}}.
type Envelope struct {
	Event event.Name      `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func parseEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, errors.Validation(err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event name", errors.ErrInvalidPayload)
	}
	return env, nil
}

// decode rejects unknown fields so that typos surface as validation errors.
func decode[T any](data json.RawMessage) (T, error) {
	var req T
	if len(data) == 0 {
		return req, fmt.Errorf("%w: missing data", errors.ErrInvalidPayload)
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return req, errors.Validation(err)
	}
	return req, nil
}

func handle[T any](data json.RawMessage, fn func(T) error) error {
	req, err := decode[T](data)
	if err != nil {
		return err
	}
	return fn(req)
}

// dispatch routes one inbound envelope to the chat service.
func dispatch(ctx context.Context, service contract.ChatService, connectionID string, sink contract.EventSink, env Envelope) error {
	switch env.Event {
	case event.Join:
		return handle(env.Data, func(req chat.JoinRequest) error {
			return service.Join(ctx, connectionID, sink, req)
		})
	case event.Leave:
		return handle(env.Data, func(req chat.LeaveRequest) error {
			return service.Leave(ctx, connectionID, req)
		})
	case event.SendMessage:
		return handle(env.Data, func(req chat.SendMessageRequest) error {
			_, err := service.SendMessage(ctx, connectionID, req)
			return err
		})
	case event.React:
		return handle(env.Data, func(req chat.ReactRequest) error {
			return service.React(ctx, connectionID, req)
		})
	case event.MarkRead:
		return handle(env.Data, func(req chat.MarkReadRequest) error {
			return service.MarkRead(ctx, connectionID, req)
		})
	case event.TypingStart, event.TypingStop:
		return handle(env.Data, func(req chat.TypingRequest) error {
			return service.Typing(ctx, connectionID, req, env.Event == event.TypingStart)
		})
	case event.DeleteMessage:
		return handle(env.Data, func(req chat.DeleteMessageRequest) error {
			return service.DeleteMessage(ctx, connectionID, req)
		})
	case event.DeleteConversation:
		return handle(env.Data, func(req chat.DeleteConversationRequest) error {
			return service.DeleteConversation(ctx, connectionID, req)
		})
	default:
		return fmt.Errorf("%w: %q", errors.ErrUnknownEvent, env.Event)
	}
}

// knownEvent keeps the metric label set bounded.
func knownEvent(name event.Name) string {
	switch name {
	case event.Join, event.Leave, event.SendMessage, event.React, event.MarkRead,
		event.TypingStart, event.TypingStop, event.DeleteMessage, event.DeleteConversation:
		return string(name)
	default:
		return "unknown"
	}
}
