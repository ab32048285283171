// Package codec converts wire payloads to validated commands and
// outcomes back to wire payloads. It is pure: no side effects, no
// state. Anything not matching the published schema exactly is
// rejected with a DecodeError before the dispatcher is involved.
package codec

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/arcafs/arca/internal/command"
)

// envelope is the wire form of a command.
type envelope struct {
	Key    command.Key     `json:"key"`
	Params json.RawMessage `json:"params"`
}

// outcomeEnvelope is the wire form of an outcome.
type outcomeEnvelope struct {
	OK    json.RawMessage `json:"ok,omitempty"`
	Error *command.Error  `json:"error,omitempty"`
}

// Decode parses a raw payload into a typed command. The key must be a
// published schema key and the params must match its shape exactly: no
// unknown fields, no missing required fields, no type mismatches.
func Decode(raw []byte) (command.Command, error) {
	var env envelope
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return command.Command{}, command.Errorf(command.KindDecodeError, "malformed command envelope: %v", err)
	}
	if env.Key == "" {
		return command.Command{}, command.NewError(command.KindDecodeError, "command envelope has no key")
	}

	spec, ok := command.SpecFor(env.Key)
	if !ok {
		return command.Command{}, command.
			Errorf(command.KindDecodeError, "unsupported operation: %s", env.Key).
			WithDetail("key", string(env.Key))
	}

	params := spec.NewParams()
	if err := decodeParams(env.Key, env.Params, params); err != nil {
		return command.Command{}, err
	}
	return command.Command{Key: env.Key, Params: params}, nil
}

// decodeParams strictly decodes raw params into the schema prototype.
func decodeParams(key command.Key, raw json.RawMessage, dest any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}

	// Field-presence pass: encoding/json cannot distinguish a missing
	// integer from zero, so required fields are checked by hand.
	var given map[string]json.RawMessage
	if err := json.Unmarshal(raw, &given); err != nil {
		return command.Errorf(command.KindDecodeError, "%s: params must be an object: %v", key, err)
	}

	required, optional := paramFields(dest)
	for name := range given {
		if !required[name] && !optional[name] {
			return command.Errorf(command.KindDecodeError, "%s: unknown field %q", key, name).
				WithDetail("field", name)
		}
	}
	for name := range required {
		if _, ok := given[name]; !ok {
			return command.Errorf(command.KindDecodeError, "%s: missing required field %q", key, name).
				WithDetail("field", name)
		}
	}

	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return command.Errorf(command.KindDecodeError, "%s: %v", key, err)
	}
	return nil
}

// paramFields splits a params struct's wire fields into required
// (value fields) and optional (pointer fields).
func paramFields(proto any) (required, optional map[string]bool) {
	required = make(map[string]bool)
	optional = make(map[string]bool)
	t := reflect.TypeOf(proto)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := wireName(f)
		if name == "" {
			continue
		}
		if f.Type.Kind() == reflect.Pointer {
			optional[name] = true
		} else {
			required[name] = true
		}
	}
	return required, optional
}

func wireName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	if idx := strings.Index(tag, ","); idx >= 0 {
		tag = tag[:idx]
	}
	if tag == "" {
		return f.Name
	}
	return tag
}

// EncodeCommand renders a command back to its wire form.
func EncodeCommand(cmd command.Command) ([]byte, error) {
	params, err := json.Marshal(cmd.Params)
	if err != nil {
		return nil, fmt.Errorf("encode %s params: %w", cmd.Key, err)
	}
	return json.Marshal(envelope{Key: cmd.Key, Params: params})
}

// Encode renders an outcome to its wire form: {"ok": ...} on success,
// {"error": {kind, message, details?}} on failure.
func Encode(out command.Outcome) ([]byte, error) {
	if out.IsError() {
		return json.Marshal(outcomeEnvelope{Error: out.Err})
	}
	ok, err := json.Marshal(out.OK)
	if err != nil {
		return nil, fmt.Errorf("encode outcome payload: %w", err)
	}
	return json.Marshal(outcomeEnvelope{OK: ok})
}

// DecodeOutcome parses a wire outcome. Success payloads come back as
// generic JSON values; errors come back fully typed.
func DecodeOutcome(raw []byte) (command.Outcome, error) {
	var env outcomeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return command.Outcome{}, fmt.Errorf("malformed outcome envelope: %w", err)
	}
	if env.Error != nil {
		return command.Failure(env.Error), nil
	}
	var payload any
	if len(env.OK) > 0 {
		if err := json.Unmarshal(env.OK, &payload); err != nil {
			return command.Outcome{}, fmt.Errorf("malformed outcome payload: %w", err)
		}
	}
	return command.Success(payload), nil
}
