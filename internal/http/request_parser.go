package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tripsplit/internal/core"
)

const maxBodyBytes = 1 << 20

// RequestBodyParser reads a body once and serves fields from it whether it
// was sent as a JSON object or as a urlencoded form.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	err      error
}

func NewRequestBodyParser(w http.ResponseWriter, r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{}
	p.body, p.err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if p.err != nil {
		p.err = fmt.Errorf("%w: %v", errMalformed, p.err)
	}
	return p
}

// Parse decodes the body. Bodies starting with '{' are JSON; anything
// else is treated as a form.
func (p *RequestBodyParser) Parse() error {
	if p.err != nil {
		return p.err
	}
	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || trimmed[0] == '[' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = fmt.Errorf("%w: invalid JSON body", errMalformed)
			return p.err
		}
		return nil
	}

	form, err := url.ParseQuery(string(trimmed))
	if err != nil {
		p.err = fmt.Errorf("%w: invalid form body", errMalformed)
		return p.err
	}
	p.formData = form
	return nil
}

// Get returns the first of keys that is present and non-empty.
func (p *RequestBodyParser) Get(keys ...string) string {
	for _, key := range keys {
		var v string
		if p.jsonData != nil {
			v = stringValue(p.jsonData[key])
		} else if p.formData != nil {
			v = p.formData.Get(key)
		}
		if v = sanitizeInput(v); v != "" {
			return v
		}
	}
	return ""
}

// GetList returns a list field: a JSON array, repeated form keys, or a
// comma separated string.
func (p *RequestBodyParser) GetList(key string) []string {
	var raw []string
	if p.jsonData != nil {
		switch v := p.jsonData[key].(type) {
		case []any:
			for _, item := range v {
				raw = append(raw, stringValue(item))
			}
		case string:
			raw = strings.Split(v, ",")
		}
	} else if p.formData != nil {
		for _, v := range p.formData[key] {
			raw = append(raw, strings.Split(v, ",")...)
		}
	}

	var out []string
	for _, s := range raw {
		if s = sanitizeInput(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// Amount reads "amount", falling back to "amount_eur" when amount is
// missing or zero.
func (p *RequestBodyParser) Amount() (core.Money, error) {
	s := p.Get("amount")
	if isZeroAmount(s) {
		s = p.Get("amount_eur")
	}
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

func isZeroAmount(s string) bool {
	if s == "" {
		return true
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	return err == nil && f == 0
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput trims and drops control characters other than whitespace.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}
