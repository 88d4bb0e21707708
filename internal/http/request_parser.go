package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"clubfin/internal/core"
)

const maxBodyBytes = 1 << 20

// Identity headers set by the authenticating proxy in front of the API.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// ActorFromRequest reads the caller identity. A missing user id yields
// core.ErrMissingActor.
func ActorFromRequest(r *http.Request) (core.Actor, error) {
	actor := core.Actor{
		UserID: sanitizeInput(r.Header.Get(HeaderUserID)),
		Email:  sanitizeInput(r.Header.Get(HeaderUserEmail)),
	}
	return actor, actor.Validate()
}

// DecodeJSON reads a single JSON object from the body, rejecting unknown
// fields and trailing data.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	if dec.More() {
		return badRequest("unexpected data after JSON body")
	}
	return nil
}

// ParseFiscalYear parses a fiscal year such as "2026" or "FY2026".
func ParseFiscalYear(s string) (int, error) {
	s = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "FY")
	fy, err := strconv.Atoi(s)
	if err != nil || fy < 1900 || fy > 9999 {
		return 0, badRequest("invalid fiscal year %q", s)
	}
	return fy, nil
}

// optionalFiscalYear reads ?fiscalYear=, returning 0 when absent.
func optionalFiscalYear(r *http.Request) (int, error) {
	v := r.URL.Query().Get("fiscalYear")
	if v == "" {
		return 0, nil
	}
	return ParseFiscalYear(v)
}

func parseItemKind(s string) (core.ItemKind, error) {
	kind := core.ItemKind(strings.ToLower(strings.TrimSpace(s)))
	if !kind.Valid() {
		return "", badRequest("unknown item kind %q", s)
	}
	return kind, nil
}

func parseIntParam(r *http.Request, name string, required bool) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		if required {
			return 0, badRequest("missing %s", name)
		}
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, badRequest("invalid %s %q", name, v)
	}
	return n, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
