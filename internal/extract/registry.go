package extract

import (
	"sync"

	"github.com/rotisserie/eris"

	"github.com/dat-tracker/treasury-cli/internal/model"
)

// Kind names one extraction pattern. A single pattern may yield facts of
// several canonical kinds (an ATM update discloses both shares and proceeds).
type Kind string

const (
	KindATMSale      Kind = "atm_sale"
	KindHoldings     Kind = "holdings"
	KindCapitalEvent Kind = "capital_event"
)

// Document is the normalized input to an extractor.
type Document struct {
	URL  string
	Text string
	// Asset is the company's treasury asset symbol; holdings patterns key
	// their keyword sets off it.
	Asset string
}

// NewDocument normalizes raw filing HTML into a Document.
func NewDocument(url string, rawHTML []byte, asset string) Document {
	return Document{URL: url, Text: NormalizeHTML(rawHTML), Asset: asset}
}

// Func is one extraction pattern: a pure function from document text to
// facts. An empty result with a nil error means the pattern did not match,
// which is not an error; the caller decides whether that is expected.
type Func func(doc Document) ([]model.ExtractedFact, error)

// Registry maps fact kinds to their extractors. Each kind owns an
// independent pattern; new kinds register without touching shared code.
type Registry struct {
	mu    sync.RWMutex
	funcs map[Kind]Func
}

// NewRegistry returns a registry with the built-in extractors installed.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[Kind]Func)}
	r.Register(KindATMSale, ExtractATMSale)
	r.Register(KindHoldings, ExtractHoldings)
	r.Register(KindCapitalEvent, ExtractCapitalEvents)
	return r
}

// Register installs (or replaces) the extractor for a kind.
func (r *Registry) Register(kind Kind, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[kind] = fn
}

// Extract dispatches to the registered extractor for kind.
func (r *Registry) Extract(kind Kind, doc Document) ([]model.ExtractedFact, error) {
	r.mu.RLock()
	fn, ok := r.funcs[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, eris.Errorf("extract: no extractor registered for kind %q", kind)
	}
	return fn(doc)
}

// Kinds lists the registered kinds.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.funcs))
	for k := range r.funcs {
		kinds = append(kinds, k)
	}
	return kinds
}
