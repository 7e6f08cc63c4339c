// Package protocol defines the wire-level message envelope exchanged with
// tool servers and its serialization contract.
//
// An envelope is a tagged union with four variants: request, response,
// notification, and error. On the wire every envelope is a JSON document of
// the shape {"type": "...", "data": {...}}. Requests carry an id that
// correlates them with exactly one terminal reply (a response or an error
// with the matching id); notifications carry no id and expect no reply.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/toolgrid/toolgrid-go/pkg/errors"
)

// EnvelopeType identifies the variant carried by an envelope
type EnvelopeType string

const (
	TypeRequest      EnvelopeType = "request"
	TypeResponse     EnvelopeType = "response"
	TypeNotification EnvelopeType = "notification"
	TypeError        EnvelopeType = "error"
)

// Request asks a server to invoke a named method
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response carries the successful result for a request
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
}

// Notification is a fire-and-forget message with no reply channel
type Notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ErrorPayload is the terminal failure reply for a request. ID may be empty
// when the failure could not be correlated to a request.
type ErrorPayload struct {
	ID      string          `json:"id,omitempty"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Envelope is the tagged message unit exchanged over a transport. Exactly one
// of the variant pointers matching Type is non-nil.
type Envelope struct {
	Type         EnvelopeType
	Request      *Request
	Response     *Response
	Notification *Notification
	Error        *ErrorPayload
}

// envelopeWire is the on-the-wire shape of an envelope
type envelopeWire struct {
	Type EnvelopeType    `json:"type"`
	Data json.RawMessage `json:"data"`
}

// NewRequest creates a request envelope, marshalling params to JSON
func NewRequest(id, method string, params interface{}) (*Envelope, error) {
	raw, err := marshalField(params)
	if err != nil {
		return nil, errors.SerializationError("marshal request params", err)
	}
	return &Envelope{
		Type:    TypeRequest,
		Request: &Request{ID: id, Method: method, Params: raw},
	}, nil
}

// NewResponse creates a response envelope, marshalling the result to JSON
func NewResponse(id string, result interface{}) (*Envelope, error) {
	raw, err := marshalField(result)
	if err != nil {
		return nil, errors.SerializationError("marshal response result", err)
	}
	return &Envelope{
		Type:     TypeResponse,
		Response: &Response{ID: id, Result: raw},
	}, nil
}

// NewNotification creates a notification envelope
func NewNotification(method string, params interface{}) (*Envelope, error) {
	raw, err := marshalField(params)
	if err != nil {
		return nil, errors.SerializationError("marshal notification params", err)
	}
	return &Envelope{
		Type:         TypeNotification,
		Notification: &Notification{Method: method, Params: raw},
	}, nil
}

// NewError creates an error envelope
func NewError(id string, code int, message string, data interface{}) (*Envelope, error) {
	raw, err := marshalField(data)
	if err != nil {
		return nil, errors.SerializationError("marshal error data", err)
	}
	return &Envelope{
		Type:  TypeError,
		Error: &ErrorPayload{ID: id, Code: code, Message: message, Data: raw},
	}, nil
}

func marshalField(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(v)
}

// CorrelationID returns the id correlating a request with its terminal reply,
// or the empty string for variants without one.
func (e *Envelope) CorrelationID() string {
	switch e.Type {
	case TypeRequest:
		if e.Request != nil {
			return e.Request.ID
		}
	case TypeResponse:
		if e.Response != nil {
			return e.Response.ID
		}
	case TypeError:
		if e.Error != nil {
			return e.Error.ID
		}
	}
	return ""
}

// Method returns the method name for request and notification envelopes
func (e *Envelope) Method() string {
	switch e.Type {
	case TypeRequest:
		if e.Request != nil {
			return e.Request.Method
		}
	case TypeNotification:
		if e.Notification != nil {
			return e.Notification.Method
		}
	}
	return ""
}

// MarshalJSON implements json.Marshaler using the {"type","data"} wire shape
func (e *Envelope) MarshalJSON() ([]byte, error) {
	var payload interface{}
	switch e.Type {
	case TypeRequest:
		payload = e.Request
	case TypeResponse:
		payload = e.Response
	case TypeNotification:
		payload = e.Notification
	case TypeError:
		payload = e.Error
	default:
		return nil, fmt.Errorf("unknown envelope type: %q", e.Type)
	}
	if payload == nil {
		return nil, fmt.Errorf("envelope type %q has no payload", e.Type)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelopeWire{Type: e.Type, Data: data})
}

// UnmarshalJSON implements json.Unmarshaler for the {"type","data"} wire shape
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var wire envelopeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	e.Type = wire.Type
	e.Request, e.Response, e.Notification, e.Error = nil, nil, nil, nil

	switch wire.Type {
	case TypeRequest:
		e.Request = &Request{}
		return json.Unmarshal(wire.Data, e.Request)
	case TypeResponse:
		e.Response = &Response{}
		return json.Unmarshal(wire.Data, e.Response)
	case TypeNotification:
		e.Notification = &Notification{}
		return json.Unmarshal(wire.Data, e.Notification)
	case TypeError:
		e.Error = &ErrorPayload{}
		return json.Unmarshal(wire.Data, e.Error)
	default:
		return fmt.Errorf("unknown envelope type: %q", wire.Type)
	}
}

// Marshal serializes an envelope to its wire representation
func Marshal(e *Envelope) ([]byte, error) {
	if e == nil {
		return nil, errors.SerializationError("marshal envelope", fmt.Errorf("nil envelope"))
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.SerializationError("marshal envelope", err)
	}
	return data, nil
}

// Unmarshal parses the wire representation of an envelope. Malformed input
// yields a typed serialization error, never a panic.
func Unmarshal(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errors.SerializationError("unmarshal envelope", err)
	}
	return &e, nil
}
