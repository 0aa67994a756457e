package casing

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Rename is an irregular backend <-> client field pair that the default
// snake/camel rule would not produce.
type Rename struct {
	Backend string
	Client  string
}

// Transcoder maps field names between the backend (snake_case) and the
// client (camelCase). Renames are applied before the default rule.
//
// The zero value applies only the default rule.
type Transcoder struct {
	toClient  map[string]string
	toBackend map[string]string
}

// New builds a transcoder. The rename table must be a bijection: every backend
// name and every client name may appear at most once.
func New(renames ...Rename) (Transcoder, error) {
	t := Transcoder{
		toClient:  make(map[string]string, len(renames)),
		toBackend: make(map[string]string, len(renames)),
	}
	for _, r := range renames {
		if r.Backend == "" || r.Client == "" {
			return Transcoder{}, fmt.Errorf("casing: empty rename %+v", r)
		}
		if prev, ok := t.toClient[r.Backend]; ok {
			return Transcoder{}, fmt.Errorf("casing: backend field %q mapped twice (%q, %q)", r.Backend, prev, r.Client)
		}
		if prev, ok := t.toBackend[r.Client]; ok {
			return Transcoder{}, fmt.Errorf("casing: client field %q mapped twice (%q, %q)", r.Client, prev, r.Backend)
		}
		t.toClient[r.Backend] = r.Client
		t.toBackend[r.Client] = r.Backend
	}
	return t, nil
}

// MustNew is New for package-level tables.
func MustNew(renames ...Rename) Transcoder {
	t, err := New(renames...)
	if err != nil {
		panic(err)
	}
	return t
}

// Default applies only the snake <-> camel rule.
var Default = Transcoder{}

// ToClientCase rewrites every map key under v from backend to client naming.
// Sequences are walked element-wise and scalars are returned untouched. A nil
// input yields an empty object.
func (t Transcoder) ToClientCase(v any) any {
	if v == nil {
		return map[string]any{}
	}
	return t.walk(v, t.clientKey, t.toClient)
}

// ToBackendCase is the inverse of ToClientCase.
func (t Transcoder) ToBackendCase(v any) any {
	if v == nil {
		return map[string]any{}
	}
	return t.walk(v, t.backendKey, t.toBackend)
}

func (t Transcoder) clientKey(k string) string {
	if c, ok := t.toClient[k]; ok {
		return c
	}
	return SnakeToCamel(k)
}

func (t Transcoder) backendKey(k string) string {
	if b, ok := t.toBackend[k]; ok {
		return b
	}
	return CamelToSnake(k)
}

func (t Transcoder) walk(v any, key func(string) string, renames map[string]string) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		// Regular keys first so an explicit rename always wins a collision,
		// independent of map iteration order.
		for k, val := range x {
			if _, renamed := renames[k]; renamed {
				continue
			}
			out[key(k)] = t.walk(val, key, renames)
		}
		for k, val := range x {
			if _, renamed := renames[k]; !renamed {
				continue
			}
			out[key(k)] = t.walk(val, key, renames)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = t.walk(val, key, renames)
		}
		return out
	case []map[string]any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = t.walk(val, key, renames)
		}
		return out
	default:
		return v
	}
}

// Decode transcodes a backend JSON document to client case and unmarshals it
// into out, whose json tags use client (camelCase) names.
func (t Transcoder) Decode(raw json.RawMessage, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("casing: decode: %w", err)
	}
	b, err := json.Marshal(t.ToClientCase(generic))
	if err != nil {
		return fmt.Errorf("casing: decode: %w", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("casing: decode: %w", err)
	}
	return nil
}

// Encode marshals a client-shaped value and returns its backend-case form,
// ready to be sent as a JSON body.
func (t Transcoder) Encode(in any) (any, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("casing: encode: %w", err)
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, fmt.Errorf("casing: encode: %w", err)
	}
	return t.ToBackendCase(generic), nil
}

// SnakeToCamel converts "phone_number_id" to "phoneNumberId". Keys without an
// underscore, or with a leading one, are returned unchanged so already-camel
// input is a fixed point.
func SnakeToCamel(s string) string {
	if !strings.Contains(s, "_") || strings.HasPrefix(s, "_") {
		return s
	}
	parts := strings.Split(s, "_")
	var b strings.Builder
	b.Grow(len(s))
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(p)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(p[size:])
	}
	return b.String()
}

// CamelToSnake converts "isCoverImage" to "is_cover_image". Upper-case runs
// are treated as one word ("avatarURL" -> "avatar_url").
func CamelToSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
