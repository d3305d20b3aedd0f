package places

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type stubBackend struct {
	calls int
	out   []Suggestion
	err   error
}

func (s *stubBackend) Suggest(ctx context.Context, input string) ([]Suggestion, error) {
	s.calls++
	return s.out, s.err
}

func TestServiceShortInput(t *testing.T) {
	b := &stubBackend{out: []Suggestion{{ID: "1", Text: "x"}}}
	s := NewService(b, testLogger(), nil)
	for _, in := range []string{"", "ab", "  ab  "} {
		if got := s.Suggest(context.Background(), in); len(got) != 0 {
			t.Errorf("Suggest(%q) = %v, want empty", in, got)
		}
	}
	if b.calls != 0 {
		t.Errorf("backend called %d times for short input", b.calls)
	}
}

func TestServiceDegradesSilently(t *testing.T) {
	s := NewService(&stubBackend{err: errors.New("boom")}, testLogger(), nil)
	got := s.Suggest(context.Background(), "market")
	if got == nil || len(got) != 0 {
		t.Errorf("Suggest on error = %v, want empty non-nil slice", got)
	}

	s = NewService(nil, testLogger(), nil)
	if got := s.Suggest(context.Background(), "market"); len(got) != 0 {
		t.Errorf("Suggest without backend = %v", got)
	}
}

func TestGoogleAutocomplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/maps/api/place/autocomplete/json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("input") != "ferry" || r.URL.Query().Get("key") != "k" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		io.WriteString(w, `{"status":"OK","predictions":[
			{"place_id":"abc","description":"Ferry Building, San Francisco, CA, USA",
			 "structured_formatting":{"main_text":"Ferry Building","secondary_text":"San Francisco, CA, USA"}}]}`)
	}))
	defer srv.Close()

	g := NewGoogleAutocomplete(srv.URL+"/", "k", srv.Client())
	got, err := g.Suggest(context.Background(), "ferry")
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(got))
	}
	want := Suggestion{ID: "abc", Text: "Ferry Building, San Francisco, CA, USA", Secondary: "San Francisco, CA, USA"}
	if got[0] != want {
		t.Errorf("suggestion = %+v, want %+v", got[0], want)
	}
}

func TestGoogleAutocompleteStatuses(t *testing.T) {
	tests := []struct {
		body    string
		wantErr bool
	}{
		{`{"status":"ZERO_RESULTS","predictions":[]}`, false},
		{`{"status":"REQUEST_DENIED"}`, true},
		{`garbage`, true},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, tt.body)
		}))
		got, err := NewGoogleAutocomplete(srv.URL, "k", srv.Client()).Suggest(context.Background(), "abc")
		srv.Close()
		if (err != nil) != tt.wantErr {
			t.Errorf("body %s: err = %v, wantErr %v", tt.body, err, tt.wantErr)
		}
		if len(got) != 0 {
			t.Errorf("body %s: got %v", tt.body, got)
		}
	}
}

func TestLikeEscape(t *testing.T) {
	if got := likeEscape(`50%_off\`); got != `50\%\_off\\` {
		t.Errorf("likeEscape = %q", got)
	}
}
