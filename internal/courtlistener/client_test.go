package courtlistener

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestSearchBuildsParamsAndNormalizes(t *testing.T) {
	var gotQuery url.Values
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"results":[
			{"caseName":"Smith v. Jones","citation":"12 Cal.3d 456","snippet":"wrongful termination","absolute_url":"/opinion/1/smith-v-jones/","decision_date":"1998-04-01"},
			{"name":"In re Doe","snippet":""},
			{"snippet":"no names at all","absolute_url":"https://example.org/opinion/2/"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, Token: "tok"})
	cases, err := c.Search(context.Background(), Query{
		Text:      "workers compensation retaliation",
		Court:     "California Supreme Court",
		CourtID:   "cal",
		StartDate: "1990-01-01",
		Extra:     map[string]string{"order_by": "score desc"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotAuth != "Token tok" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotQuery.Get("q") != "workers compensation retaliation" {
		t.Fatalf("unexpected q: %q", gotQuery.Get("q"))
	}
	if gotQuery.Get("page") != "1" || gotQuery.Get("page_size") != "10" {
		t.Fatalf("expected default paging, got page=%q page_size=%q", gotQuery.Get("page"), gotQuery.Get("page_size"))
	}
	if gotQuery.Get("court") != "California Supreme Court" || gotQuery.Get("court__id") != "cal" {
		t.Fatalf("unexpected court params: %v", gotQuery)
	}
	if gotQuery.Get("decision_date__gte") != "1990-01-01" {
		t.Fatalf("unexpected date filter: %v", gotQuery)
	}
	if gotQuery.Get("order_by") != "score desc" {
		t.Fatalf("extra filters not merged: %v", gotQuery)
	}

	if len(cases) != 3 {
		t.Fatalf("expected 3 cases, got %d", len(cases))
	}
	if cases[0].Title != "Smith v. Jones" || cases[0].Citation != "12 Cal.3d 456" {
		t.Fatalf("unexpected first case: %+v", cases[0])
	}
	if cases[0].PDFLink != srv.URL+"/opinion/1/smith-v-jones/" {
		t.Fatalf("relative link not rewritten against origin: %q", cases[0].PDFLink)
	}
	if cases[1].Title != "In re Doe" {
		t.Fatalf("expected name fallback, got %q", cases[1].Title)
	}
	if cases[1].PDFLink != "" || cases[1].Citation != "" || cases[1].DecisionDate != "" {
		t.Fatalf("missing fields should be empty strings: %+v", cases[1])
	}
	if cases[2].Title != "Untitled" {
		t.Fatalf("expected Untitled fallback, got %q", cases[2].Title)
	}
	if cases[2].PDFLink != "https://example.org/opinion/2/" {
		t.Fatalf("absolute link should pass through unchanged: %q", cases[2].PDFLink)
	}
}

func TestSearchNon2xxIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broke", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Search(context.Background(), Query{Text: "anything"})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if te.Status != http.StatusBadGateway {
		t.Fatalf("unexpected status: %d", te.Status)
	}
}

func TestSearchConnectionRefusedIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	_, err := c.Search(context.Background(), Query{Text: "anything"})
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}
