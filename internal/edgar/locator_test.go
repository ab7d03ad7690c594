package edgar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dat-tracker/treasury-cli/internal/model"
	"github.com/dat-tracker/treasury-cli/internal/resilience"
)

const sampleSubmissions = `{
  "cik": 1050446,
  "name": "Strategy Inc",
  "filings": {
    "recent": {
      "form": ["8-K", "4", "10-Q", "S-8", "8-K"],
      "filingDate": ["2025-08-11", "2025-08-08", "2025-08-05", "2025-07-30", "2025-07-28"],
      "accessionNumber": ["0001050446-25-000123", "0001050446-25-000122", "0001050446-25-000121", "0001050446-25-000120", "0001050446-25-000119"],
      "primaryDocument": ["mstr-20250811.htm", "form4.xml", "mstr-20250805.htm", "s8.htm", "mstr-20250728.htm"]
    }
  }
}`

const sampleIndex = `{
  "directory": {
    "item": [
      {"name": "0001050446-25-000123-index.htm", "size": "4211"},
      {"name": "ex99-1.htm", "size": "10233"},
      {"name": "mstr-20250811.htm", "size": "84521"},
      {"name": "mstr-20250811.xsd", "size": "2111"}
    ],
    "name": "/Archives/edgar/data/1050446/000105044625000123"
  }
}`

func newTestLocator(t *testing.T, handler http.Handler) (*Locator, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := newTestClient(t, time.Hour)
	return NewLocator(client, srv.URL, srv.URL), srv
}

func TestListFilings(t *testing.T) {
	loc, _ := newTestLocator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/submissions/CIK0001050446.json", r.URL.Path)
		w.Write([]byte(sampleSubmissions)) //nolint:errcheck
	}))

	filings, err := loc.ListFilings(context.Background(), "1050446")
	require.NoError(t, err)

	// Form 4 and S-8 filtered out; order preserved newest first.
	require.Len(t, filings, 3)
	assert.Equal(t, "8-K", filings[0].FormType)
	assert.Equal(t, "000105044625000123", filings[0].Accession, "accession is dash-free")
	assert.Equal(t, "0001050446", filings[0].CIK)
	assert.Equal(t, time.Date(2025, 8, 11, 0, 0, 0, 0, time.UTC), filings[0].FilingDate)
	assert.Equal(t, "mstr-20250811.htm", filings[0].PrimaryDocument)
	assert.Equal(t, "10-Q", filings[1].FormType)
	assert.True(t, filings[0].FilingDate.After(filings[2].FilingDate))
}

func TestListFilingsNotFound(t *testing.T) {
	loc, _ := newTestLocator(t, http.NotFoundHandler())

	_, err := loc.ListFilings(context.Background(), "9999999")
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrNotFound)
}

func TestResolvePrimaryDocument(t *testing.T) {
	loc, srv := newTestLocator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Archives/edgar/data/1050446/000105044625000123/index.json", r.URL.Path)
		w.Write([]byte(sampleIndex)) //nolint:errcheck
	}))

	// Dashed accession input is normalized.
	url, err := loc.ResolvePrimaryDocument(context.Background(), "1050446", "0001050446-25-000123")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/Archives/edgar/data/1050446/000105044625000123/mstr-20250811.htm", url)
}

func TestResolvePrimaryDocumentSkipsExhibits(t *testing.T) {
	// Only exhibits and non-HTML entries: nothing qualifies.
	index := `{"directory": {"item": [
	  {"name": "ex99-1.htm", "size": "10233"},
	  {"name": "ex10-2.htm", "size": "5000"},
	  {"name": "data.xml", "size": "100"}
	]}}`
	loc, _ := newTestLocator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(index)) //nolint:errcheck
	}))

	_, err := loc.ResolvePrimaryDocument(context.Background(), "1050446", "000105044625000123")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestResolvePrimaryDocumentKeepsBodiesContainingEx(t *testing.T) {
	// "dexcom8k.htm" and "annex1.htm" are body documents, not exhibits.
	index := `{"directory": {"item": [
	  {"name": "0001050446-25-000123-index.htm", "size": "4211"},
	  {"name": "ex99-1.htm", "size": "10233"},
	  {"name": "dexcom8k.htm", "size": "64000"}
	]}}`
	loc, srv := newTestLocator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(index)) //nolint:errcheck
	}))

	url, err := loc.ResolvePrimaryDocument(context.Background(), "1050446", "000105044625000123")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/Archives/edgar/data/1050446/000105044625000123/dexcom8k.htm", url)
}

func TestIsFilingBody(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"mstr-20250811.htm", true},
		{"dexcom8k.htm", true},
		{"annex1.html", true},
		{"ex99-1.htm", false},
		{"ex10_2.htm", false},
		{"d869234dex991.htm", false},
		{"exhibit99.htm", false},
		{"0001050446-25-000123-index.htm", false},
		{"mstr-20250811.xsd", false},
		{"form4.xml", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isFilingBody(tt.name))
		})
	}
}

func TestResolveFilingDocumentFastPath(t *testing.T) {
	// The feed names the body document; no index fetch happens.
	loc, srv := newTestLocator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected fetch of %s", r.URL.Path)
	}))

	filing := &model.Filing{
		CIK:             "0001050446",
		Accession:       "000105044625000123",
		PrimaryDocument: "mstr-20250811.htm",
	}
	url, err := loc.ResolveFilingDocument(context.Background(), filing)
	require.NoError(t, err)
	want := srv.URL + "/Archives/edgar/data/1050446/000105044625000123/mstr-20250811.htm"
	assert.Equal(t, want, url)
	assert.Equal(t, want, filing.PrimaryDocumentURL)
}

func TestResolveFilingDocumentFallsBackToIndex(t *testing.T) {
	loc, srv := newTestLocator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Archives/edgar/data/1050446/000105044625000123/index.json", r.URL.Path)
		w.Write([]byte(sampleIndex)) //nolint:errcheck
	}))

	// An XBRL-only primaryDocument cannot be the body.
	filing := &model.Filing{
		CIK:             "0001050446",
		Accession:       "000105044625000123",
		PrimaryDocument: "mstr-20250811.xml",
	}
	url, err := loc.ResolveFilingDocument(context.Background(), filing)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/Archives/edgar/data/1050446/000105044625000123/mstr-20250811.htm", url)
	assert.Equal(t, url, filing.PrimaryDocumentURL)
}

func TestEndpointURLs(t *testing.T) {
	loc := NewLocator(nil, "https://data.sec.gov/", "https://www.sec.gov/")
	assert.Equal(t, "https://data.sec.gov/submissions/CIK0001829311.json", loc.SubmissionsURL("0001829311"))
	assert.Equal(t, "https://data.sec.gov/api/xbrl/companyfacts/CIK0001829311.json", loc.CompanyFactsURL("0001829311"))
	assert.Equal(t,
		"https://www.sec.gov/Archives/edgar/data/1829311/000182931125000042/doc.htm",
		loc.DocumentURL("0001829311", "000182931125000042", "doc.htm"))
}
