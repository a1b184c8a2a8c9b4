package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tripsplit/internal/core"
)

func newParser(t *testing.T, body string) *RequestBodyParser {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	p := NewRequestBodyParser(httptest.NewRecorder(), r)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse(%q) = %v", body, err)
	}
	return p
}

func TestRequestBodyParserGet(t *testing.T) {
	tests := []struct {
		name string
		body string
		keys []string
		want string
	}{
		{"json string", `{"payer":"  Ana "}`, []string{"payer"}, "Ana"},
		{"json number", `{"amount":12.5}`, []string{"amount"}, "12.5"},
		{"json fallback key", `{"payer_name":"Marko"}`, []string{"payer", "payer_name"}, "Marko"},
		{"form", "payer=Luka&note=ferry", []string{"note"}, "ferry"},
		{"control chars dropped", "note=a%00b", []string{"note"}, "ab"},
		{"missing", `{}`, []string{"payer"}, ""},
		{"empty body", "", []string{"payer"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newParser(t, tt.body).Get(tt.keys...); got != tt.want {
				t.Errorf("Get(%v) = %q, want %q", tt.keys, got, tt.want)
			}
		})
	}
}

func TestRequestBodyParserGetList(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"members":["Ana"," ","Marko"]}`, "Ana|Marko"},
		{`{"members":"Ana, Marko"}`, "Ana|Marko"},
		{"members=Ana&members=Marko,Luka", "Ana|Marko|Luka"},
		{`{}`, ""},
	}
	for _, tt := range tests {
		if got := strings.Join(newParser(t, tt.body).GetList("members"), "|"); got != tt.want {
			t.Errorf("GetList(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestRequestBodyParserAmount(t *testing.T) {
	tests := []struct {
		body    string
		want    int64
		wantErr bool
	}{
		{`{"amount":"12,34"}`, 1234, false},
		{`{"amount":0.1}`, 10, false},
		{`{"amount":0,"amount_eur":"7.5"}`, 750, false},
		{"amount_eur=3", 300, false},
		{`{"amount":"abc"}`, 0, true},
		{`{}`, 0, true},
	}
	for _, tt := range tests {
		got, err := newParser(t, tt.body).Amount()
		if tt.wantErr {
			if !errors.Is(err, core.ErrInvalidAmount) {
				t.Errorf("Amount(%q) err = %v, want ErrInvalidAmount", tt.body, err)
			}
			continue
		}
		if err != nil || got.Cents != tt.want {
			t.Errorf("Amount(%q) = %d, %v; want %d", tt.body, got.Cents, err, tt.want)
		}
	}
}

func TestRequestBodyParserMalformed(t *testing.T) {
	for _, body := range []string{`{"a":`, `[1,2]`} {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		err := NewRequestBodyParser(httptest.NewRecorder(), r).Parse()
		if !errors.Is(err, errMalformed) {
			t.Errorf("Parse(%q) = %v, want errMalformed", body, err)
		}
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errMalformed, http.StatusBadRequest},
		{core.ErrTripNotFound, http.StatusNotFound},
		{core.ErrExpenseNotFound, http.StatusNotFound},
		{core.ErrMemberNotFound, http.StatusNotFound},
		{core.ErrMemberExists, http.StatusConflict},
		{core.ErrPayerNotMember, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
