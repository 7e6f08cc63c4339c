package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/toolgrid/toolgrid-go/pkg/errors"
)

const (
	// MaxMethodLength bounds method names; pathological lengths are rejected
	// before any dispatch work happens.
	MaxMethodLength = 512

	// MaxPayloadDepth caps nesting when walking params and result payloads.
	// The walk is iterative, so depth never translates into stack growth.
	MaxPayloadDepth = 128
)

// ValidateMethod checks a method name against the protocol rules: non-empty,
// bounded in length, and free of control characters. Unicode method names
// are permitted.
func ValidateMethod(method string) error {
	if method == "" {
		return errors.InvalidMethod("empty method name")
	}
	if len(method) > MaxMethodLength {
		return errors.InvalidMethod(fmt.Sprintf("method name exceeds %d bytes", MaxMethodLength))
	}
	if strings.ContainsRune(method, 0) {
		return errors.InvalidMethod("method name contains NUL")
	}
	for _, r := range method {
		if unicode.IsControl(r) {
			return errors.InvalidMethod("method name contains control characters")
		}
	}
	return nil
}

// Validate checks an envelope before dispatch. It never panics: any
// malformed input yields a typed error.
func Validate(e *Envelope) error {
	if e == nil {
		return errors.ValidationError("nil envelope")
	}

	switch e.Type {
	case TypeRequest:
		if e.Request == nil {
			return errors.ValidationError("request envelope without request payload")
		}
		if e.Request.ID == "" {
			return errors.ValidationError("request envelope without id")
		}
		if err := ValidateMethod(e.Request.Method); err != nil {
			return err
		}
		return validatePayload(e.Request.Params)
	case TypeResponse:
		if e.Response == nil {
			return errors.ValidationError("response envelope without response payload")
		}
		if e.Response.ID == "" {
			return errors.ValidationError("response envelope without id")
		}
		return validatePayload(e.Response.Result)
	case TypeNotification:
		if e.Notification == nil {
			return errors.ValidationError("notification envelope without notification payload")
		}
		if err := ValidateMethod(e.Notification.Method); err != nil {
			return err
		}
		return validatePayload(e.Notification.Params)
	case TypeError:
		if e.Error == nil {
			return errors.ValidationError("error envelope without error payload")
		}
		if e.Error.Message == "" {
			return errors.ValidationError("error envelope without message")
		}
		return validatePayload(e.Error.Data)
	default:
		return errors.ValidationError(fmt.Sprintf("unknown envelope type: %q", e.Type))
	}
}

// validatePayload walks a decoded payload iteratively and enforces the depth
// cap. Large but well-formed payloads pass; only excessive nesting fails.
func validatePayload(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}

	var decoded interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return errors.SerializationError("decode payload", err)
	}

	type frame struct {
		value interface{}
		depth int
	}

	stack := []frame{{decoded, 1}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if f.depth > MaxPayloadDepth {
			return errors.New(errors.CodePayloadTooDeep,
				fmt.Sprintf("payload nesting exceeds %d levels", MaxPayloadDepth),
				errors.CategoryValidation, errors.SeverityError)
		}

		switch v := f.value.(type) {
		case map[string]interface{}:
			for _, child := range v {
				stack = append(stack, frame{child, f.depth + 1})
			}
		case []interface{}:
			for _, child := range v {
				stack = append(stack, frame{child, f.depth + 1})
			}
		}
	}
	return nil
}
