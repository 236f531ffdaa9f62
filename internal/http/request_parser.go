package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"billing/internal/core"
)

// Query-string keys of the table view.
const (
	ParamQuery     = "q"
	ParamStatus    = "status"
	ParamSort      = "sort"
	ParamDirection = "dir"
)

// maxBodyBytes caps posted forms; the invoice dialog is a few hundred bytes.
const maxBodyBytes = 64 << 10

// ParseViewState reads the table view from query parameters. Unknown or
// malformed values fall back to the defaults instead of failing the request.
func ParseViewState(query url.Values) core.ViewState {
	state := core.DefaultViewState()
	state.Query = sanitizeInput(query.Get(ParamQuery))

	if st, err := core.ParseStatusFilter(query.Get(ParamStatus)); err == nil {
		state.Status = st
	}

	if v := strings.TrimSpace(query.Get(ParamSort)); v != "" {
		if field, err := core.ParseSortField(v); err == nil {
			state.Sort = core.SortState{Field: field, Direction: core.Asc}
		}
	}
	if v := strings.TrimSpace(query.Get(ParamDirection)); v != "" {
		if dir, err := core.ParseDirection(v); err == nil {
			state.Sort.Direction = dir
		}
	}
	return state
}

// ViewStateQuery is the inverse of ParseViewState.
func ViewStateQuery(state core.ViewState) url.Values {
	v := url.Values{}
	if state.Query != "" {
		v.Set(ParamQuery, state.Query)
	}
	status := state.Status
	if status == "" {
		status = core.StatusAll
	}
	v.Set(ParamStatus, string(status))
	v.Set(ParamSort, state.Sort.Field.Key())
	v.Set(ParamDirection, string(state.Sort.Direction))
	return v
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body of r once. A body over maxBodyBytes
// fails with *http.MaxBytesError rather than being cut short.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a sanitized value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// Raw returns a value exactly as posted, for fields such as passwords that
// must not be trimmed.
func (p *RequestBodyParser) Raw(key string) string {
	if p.jsonData != nil {
		return stringValue(p.jsonData[key])
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

// Values returns every parsed field, sanitized, as form values.
func (p *RequestBodyParser) Values() url.Values {
	out := url.Values{}
	if p.jsonData != nil {
		for k := range p.jsonData {
			out.Set(k, p.Get(k))
		}
		return out
	}
	for k := range p.formData {
		out.Set(k, p.Get(k))
	}
	return out
}

func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseBodyOrFail parses the request body and returns an error response on failure.
func ParseBodyOrFail(r *http.Request) (*RequestBodyParser, *HTMXResponseBuilder) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return nil, BadRequestError("Invalid request body")
	}
	return p, nil
}
