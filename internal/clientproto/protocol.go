// Package clientproto implements the line-delimited JSON protocol a
// client connection speaks: a positional request array in, a reply
// array (or an async push) out. Grounded on
// original_source/src/{client,command}.rs, whose Command::from_json
// parses the same four-element array by hand; here the elements are
// additionally run through a validator.v10 struct check before being
// handed to the manager.
package clientproto

import (
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"

	"github.com/qumulus-db/qumulus/internal/zone"
)

var validate = validator.New()

// Request is a client-issued command, decoded from the wire array
// `[id, call, path, params]`.
type Request struct {
	ID     uint64   `validate:"-"`
	Call   string   `validate:"oneof=bind kill read write"`
	Path   []string `validate:"dive,required"`
	Params any      `validate:"-"`
}

// Kind translates the wire call name to a zone.CommandKind. Call must
// already have passed Request validation.
func (r Request) Kind() zone.CommandKind {
	switch r.Call {
	case "bind":
		return zone.CommandBind
	case "kill":
		return zone.CommandKill
	case "read":
		return zone.CommandRead
	case "write":
		return zone.CommandWrite
	default:
		panic("clientproto: unvalidated call " + r.Call)
	}
}

// parseRequest decodes one line into a Request, rejecting anything
// that isn't a well-formed 4-element request array.
func parseRequest(line []byte) (Request, error) {
	var raw []any
	if err := sonic.Unmarshal(line, &raw); err != nil {
		return Request{}, fmt.Errorf("bad json: %w", err)
	}
	if len(raw) != 4 {
		return Request{}, fmt.Errorf("wrong number of elements: %d", len(raw))
	}

	id, ok := raw[0].(float64)
	if !ok {
		return Request{}, fmt.Errorf("bad id")
	}
	call, ok := raw[1].(string)
	if !ok {
		return Request{}, fmt.Errorf("bad call")
	}
	rawPath, ok := raw[2].([]any)
	if !ok {
		return Request{}, fmt.Errorf("bad path")
	}
	segments := make([]string, len(rawPath))
	for i, seg := range rawPath {
		s, ok := seg.(string)
		if !ok {
			return Request{}, fmt.Errorf("bad path segment at %d", i)
		}
		segments[i] = s
	}

	req := Request{ID: uint64(id), Call: call, Path: segments, Params: raw[3]}
	if err := validate.Struct(req); err != nil {
		return Request{}, fmt.Errorf("bad request: %w", err)
	}
	return req, nil
}

// errorFrame builds the `[0,"error","<msg>"]` wire shape.
func errorFrame(msg string) []byte {
	b, err := sonic.Marshal([]any{0, "error", msg})
	if err != nil {
		// Marshaling a []any of two strings and an int cannot fail.
		panic(err)
	}
	return b
}

var helloFrame = mustMarshal(map[string]int{"hello!": 1})
var pingFrame = mustMarshal(map[string]int{"ping": 1})

func mustMarshal(v any) []byte {
	b, err := sonic.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
