// Package protocol defines the single-shot wire exchange of the push relay:
// one JSON request, one JSON reply, stable integer error codes.
package protocol

import (
	"encoding/json"
	"errors"
	"math"
)

// ServerVersion is the protocol version this server speaks. Clients must
// match it after truncation to one decimal digit (see CompatibleVersions).
const ServerVersion = 0.100

// Code is a wire-stable response code. The integer values are part of the
// protocol and must not be renumbered.
type Code int

const (
	CodeNoError                  Code = 0
	CodeDatabaseError            Code = 1
	CodeAuthError                Code = 2
	CodeIllegalMsgError          Code = 3
	CodeGatewayMsgTooLarge       Code = 4
	CodeGatewayConnection        Code = 5
	CodeGatewayUnknown           Code = 6
	CodeGatewayAuth              Code = 7
	CodeVersionMismatch          Code = 8
	CodeNoNotificationPermission Code = 9
)

// Capability is a permission an account can hold. Stored as its integer
// value in the acl table.
type Capability int

const (
	// CapabilityNotificationChannel allows sending to the reserved
	// broadcast channel.
	CapabilityNotificationChannel Capability = 0
)

// Request is the one message a client sends per connection.
type Request struct {
	Identifier string  `json:"identifier"`
	Secret     string  `json:"secret"`
	Channel    string  `json:"channel"`
	Payload    string  `json:"payload"`
	Version    float64 `json:"version"`
}

// Response is the one reply the server sends. Version is included only on a
// version mismatch, carrying the server's protocol version.
type Response struct {
	Code    Code    `json:"code"`
	Version float64 `json:"version,omitempty"`
}

var (
	// ErrMalformed marks input that is not valid JSON at all. The session
	// drops the connection without a reply.
	ErrMalformed = errors.New("malformed message")

	// ErrIllegalMessage marks a decoded message with a missing or mistyped
	// field. The session replies with CodeIllegalMsgError.
	ErrIllegalMessage = errors.New("illegal message")
)

// DecodeRequest parses raw bytes into a Request. Field presence and types
// are checked on the decoded JSON values, so a number where a string is
// required is ErrIllegalMessage, not a decode failure.
func DecodeRequest(data []byte) (*Request, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		// Valid JSON that is not an object decodes into something else;
		// treat it as an illegal message rather than transport garbage.
		var probe any
		if json.Unmarshal(data, &probe) == nil {
			return nil, ErrIllegalMessage
		}
		return nil, ErrMalformed
	}

	req := &Request{}
	for _, f := range []struct {
		name   string
		target *string
	}{
		{"identifier", &req.Identifier},
		{"secret", &req.Secret},
		{"channel", &req.Channel},
		{"payload", &req.Payload},
	} {
		v, ok := raw[f.name]
		if !ok {
			return nil, ErrIllegalMessage
		}
		s, ok := v.(string)
		if !ok {
			return nil, ErrIllegalMessage
		}
		*f.target = s
	}

	v, ok := raw["version"]
	if !ok {
		return nil, ErrIllegalMessage
	}
	version, ok := v.(float64)
	if !ok {
		return nil, ErrIllegalMessage
	}
	req.Version = version

	return req, nil
}

// CompatibleVersions reports whether two protocol versions agree after
// truncation to one decimal digit, e.g. 0.99 and 0.100 do not (9 vs 10).
func CompatibleVersions(a, b float64) bool {
	return math.Floor(a*10) == math.Floor(b*10)
}
