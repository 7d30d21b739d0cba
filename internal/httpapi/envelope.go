package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
)

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

// page is the pagination envelope returned with every list response.
type page struct {
	Items   any `json:"items"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Total   int `json:"total"`
}

// writeData writes the success envelope {"data": v}.
func writeData(w http.ResponseWriter, r *http.Request, code int, v any) {
	writeJSON(w, code, map[string]any{"data": v})
}

// writeList writes the success envelope wrapping a paginated list.
func writeList(w http.ResponseWriter, r *http.Request, items any, pageNum, perPage, total int) {
	writeData(w, r, http.StatusOK, page{Items: items, Page: pageNum, PerPage: perPage, Total: total})
}

// writeAPIError writes the failure envelope for a Kind-carrying error.
func writeAPIError(w http.ResponseWriter, r *http.Request, err error) {
	ae := translateError(err)
	body := map[string]any{
		"kind":    ae.kind,
		"message": ae.message,
	}
	if ae.details != nil {
		body["details"] = ae.details
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		body["request_id"] = rid
	}
	writeJSON(w, statusFor(ae.kind), map[string]any{"error": body})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeAPIError(w, r, badRequest("method not allowed"))
}

// decodeJSON decodes a request body into dst, rejecting unknown fields
// and trailing garbage rather than silently ignoring them.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is required")
		}
		if isBodyTooLarge(err) {
			return payloadTooLarge("request body exceeds the maximum allowed size")
		}
		return badRequest(err.Error())
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return badRequest("unexpected data after JSON body")
		}
		if isBodyTooLarge(err) {
			return payloadTooLarge("request body exceeds the maximum allowed size")
		}
		return badRequest(err.Error())
	}
	return nil
}

// isBodyTooLarge reports whether err originated from an http.MaxBytesReader
// rejecting an oversized body, across the *http.MaxBytesError type (Go
// 1.19+) and json.Decoder's habit of wrapping it.
func isBodyTooLarge(err error) bool {
	var tooLarge *http.MaxBytesError
	return errors.As(err, &tooLarge)
}

// pagination parses ?page= and ?per_page=, defaulting per_page to
// defaultPerPage and rejecting a value outside [1, maxPerPage] as a bad
// request.
func pagination(r *http.Request) (pageNum, perPage int, err error) {
	pageNum = 1
	perPage = defaultPerPage

	if raw := r.URL.Query().Get("page"); raw != "" {
		pageNum, err = strconv.Atoi(raw)
		if err != nil || pageNum < 1 {
			return 0, 0, badRequest("page must be a positive integer")
		}
	}
	if raw := r.URL.Query().Get("per_page"); raw != "" {
		perPage, err = strconv.Atoi(raw)
		if err != nil || perPage < 1 || perPage > maxPerPage {
			return 0, 0, badRequest("per_page must be between 1 and 200")
		}
	}
	return pageNum, perPage, nil
}
