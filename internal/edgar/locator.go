package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/dat-tracker/treasury-cli/internal/model"
)

// ErrDocumentNotFound is returned when an accession index has no HTML filing
// body. The pipeline dead-letters it as "primary_document_missing".
var ErrDocumentNotFound = eris.New("edgar: primary document not found")

// relevantForms are the filing types that can carry treasury disclosures.
var relevantForms = []string{"8-K", "10-Q", "10-K", "6-K", "20-F"}

// Locator lists a company's filings and resolves accession documents.
type Locator struct {
	client          *Client
	submissionsHost string
	archiveHost     string
}

// NewLocator wires a locator over the source client.
func NewLocator(client *Client, submissionsHost, archiveHost string) *Locator {
	return &Locator{
		client:          client,
		submissionsHost: strings.TrimRight(submissionsHost, "/"),
		archiveHost:     strings.TrimRight(archiveHost, "/"),
	}
}

// SubmissionsURL is the filing-listing endpoint for a normalized CIK.
func (l *Locator) SubmissionsURL(cik string) string {
	return fmt.Sprintf("%s/submissions/CIK%s.json", l.submissionsHost, cik)
}

// CompanyFactsURL is the XBRL company-facts endpoint for a normalized CIK.
func (l *Locator) CompanyFactsURL(cik string) string {
	return fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", l.submissionsHost, cik)
}

// indexURL is the document index for one accession.
func (l *Locator) indexURL(cik, accession string) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s/index.json", l.archiveHost, cikDigits(cik), accession)
}

// DocumentURL is the full URL of one named document inside an accession.
func (l *Locator) DocumentURL(cik, accession, name string) string {
	return fmt.Sprintf("%s/Archives/edgar/data/%s/%s/%s", l.archiveHost, cikDigits(cik), accession, name)
}

// submissions mirrors the EDGAR feed: parallel arrays aligned by index, not
// an array of objects.
type submissions struct {
	Filings struct {
		Recent struct {
			Form            []string `json:"form"`
			FilingDate      []string `json:"filingDate"`
			AccessionNumber []string `json:"accessionNumber"`
			PrimaryDocument []string `json:"primaryDocument"`
		} `json:"recent"`
	} `json:"filings"`
}

// ListFilings returns the company's relevant filings, newest first.
// Accession numbers come back dash-free.
func (l *Locator) ListFilings(ctx context.Context, rawCIK string) ([]model.Filing, error) {
	cik, err := NormalizeCIK(rawCIK)
	if err != nil {
		return nil, err
	}

	res, err := l.client.Fetch(ctx, l.SubmissionsURL(cik))
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, res.Err()
	}

	var subs submissions
	if err := json.Unmarshal(res.Body, &subs); err != nil {
		return nil, eris.Wrapf(err, "edgar: parse submissions for CIK %s", cik)
	}

	recent := subs.Filings.Recent
	n := len(recent.Form)
	if len(recent.FilingDate) < n {
		n = len(recent.FilingDate)
	}
	if len(recent.AccessionNumber) < n {
		n = len(recent.AccessionNumber)
	}

	var filings []model.Filing
	for i := 0; i < n; i++ {
		form := recent.Form[i]
		if !isRelevantForm(form) {
			continue
		}
		filed, err := time.Parse("2006-01-02", recent.FilingDate[i])
		if err != nil {
			continue
		}
		f := model.Filing{
			CIK:        cik,
			Accession:  strings.ReplaceAll(recent.AccessionNumber[i], "-", ""),
			FormType:   form,
			FilingDate: filed,
		}
		if i < len(recent.PrimaryDocument) {
			f.PrimaryDocument = recent.PrimaryDocument[i]
		}
		filings = append(filings, f)
	}
	return filings, nil
}

func isRelevantForm(form string) bool {
	for _, t := range relevantForms {
		if strings.HasPrefix(form, t) {
			return true
		}
	}
	return false
}

// filingIndex is the accession document index shape.
type filingIndex struct {
	Directory struct {
		Item []struct {
			Name string `json:"name"`
			Size string `json:"size"`
		} `json:"item"`
	} `json:"directory"`
}

// exhibitRe matches exhibit filenames (ex99-1.htm, dex991.htm,
// exhibit10.htm) without catching body documents that merely contain
// "ex" (dexcom8k.htm, annex1.htm).
var exhibitRe = regexp.MustCompile(`(?i)ex-?\d{2}|exhibit`)

// isFilingBody reports whether name looks like the filing's HTML body
// rather than an exhibit or the accession index page.
func isFilingBody(name string) bool {
	name = strings.ToLower(name)
	if !strings.HasSuffix(name, ".htm") && !strings.HasSuffix(name, ".html") {
		return false
	}
	if strings.Contains(name, "index") {
		return false
	}
	return !exhibitRe.MatchString(name)
}

// ResolveFilingDocument returns the URL of the filing's HTML body. The
// submissions feed's primaryDocument is trusted as a fast path when it
// names an HTML body; otherwise the accession index is consulted. The
// resolved URL is recorded on the filing.
func (l *Locator) ResolveFilingDocument(ctx context.Context, filing *model.Filing) (string, error) {
	if isFilingBody(filing.PrimaryDocument) {
		filing.PrimaryDocumentURL = l.DocumentURL(filing.CIK, filing.Accession, filing.PrimaryDocument)
		return filing.PrimaryDocumentURL, nil
	}
	url, err := l.ResolvePrimaryDocument(ctx, filing.CIK, filing.Accession)
	if err != nil {
		return "", err
	}
	filing.PrimaryDocumentURL = url
	return url, nil
}

// ResolvePrimaryDocument returns the URL of the accession's HTML filing
// body per the index; when nothing qualifies the result is
// ErrDocumentNotFound.
func (l *Locator) ResolvePrimaryDocument(ctx context.Context, rawCIK, accession string) (string, error) {
	cik, err := NormalizeCIK(rawCIK)
	if err != nil {
		return "", err
	}
	accession = strings.ReplaceAll(accession, "-", "")

	res, err := l.client.Fetch(ctx, l.indexURL(cik, accession))
	if err != nil {
		return "", err
	}
	if !res.OK() {
		return "", res.Err()
	}

	var index filingIndex
	if err := json.Unmarshal(res.Body, &index); err != nil {
		return "", eris.Wrapf(err, "edgar: parse index for accession %s", accession)
	}

	for _, item := range index.Directory.Item {
		if isFilingBody(item.Name) {
			return l.DocumentURL(cik, accession, item.Name), nil
		}
	}
	return "", ErrDocumentNotFound
}
