package extractors

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/cookiebanner/scanner/internal/result"
)

// Catalogue is the parsed disconnect.json tracker list: top-level category
// name -> list of entities, each entity mapping company name -> company URL
// -> service name -> tracked domains.
//
// Grounded on original_source/.../extractors/TrackerExtractor.py.
type Catalogue struct {
	Categories map[string][]Entity `json:"categories"`
}

// Entity maps a company name to its homepage URL to its service name to the
// list of domains that service's trackers run on.
type Entity map[string]map[string]map[string][]string

// LoadCatalogue reads disconnect.json from path, discarding the "Content"
// top-level category (defence in depth; the refresh path already strips it
// before writing the file, per §6).
func LoadCatalogue(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("extractors: read tracker catalogue %q: %w", path, err)
	}
	var c Catalogue
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("extractors: parse tracker catalogue %q: %w", path, err)
	}
	delete(c.Categories, "Content")
	return &c, nil
}

// catalogueEntry is one flattened (category, company, company URL, domain)
// row of the catalogue, in deterministic order.
type catalogueEntry struct {
	Category   string
	Company    string
	CompanyURL string
	Domain     string
}

// Entries flattens the catalogue into a sorted entry list so matching is
// reproducible run to run: the same request log always produces the same
// tracker list in the same order.
func (c *Catalogue) Entries() []catalogueEntry {
	var out []catalogueEntry

	categories := make([]string, 0, len(c.Categories))
	for category := range c.Categories {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		for _, entity := range c.Categories[category] {
			for _, company := range sortedKeys(entity) {
				urls := entity[company]
				for _, companyURL := range sortedKeys(urls) {
					services := urls[companyURL]
					for _, service := range sortedKeys(services) {
						for _, domain := range services[service] {
							out = append(out, catalogueEntry{
								Category:   category,
								Company:    company,
								CompanyURL: companyURL,
								Domain:     domain,
							})
						}
					}
				}
			}
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Tracker matches recorded request URLs against a tracker catalogue.
type Tracker struct {
	Catalogue *Catalogue
}

func (Tracker) Name() string { return "disconnect" }

// minDomainLength is the non-trivial-substring floor (§4.4: "the catalogue
// domain to be a non-trivial substring (length > 5)").
const minDomainLength = 5

func (t Tracker) Extract(ec *Context, res *result.Result) {
	if t.Catalogue == nil {
		return
	}
	entries := t.Catalogue.Entries()

	var matches []result.TrackerMatch
	for _, req := range ec.Page.Requests() {
		reqDomain := registeredDomain(req.URL)
		if reqDomain == "" {
			continue
		}

		// At most one entry per request: the first matching catalogue
		// domain wins, as in the source's early return.
		for _, e := range entries {
			if len(e.Domain) <= minDomainLength {
				continue
			}
			if !strings.Contains(req.URL, e.Domain) {
				continue
			}
			if reqDomain == e.Domain {
				continue
			}
			matches = append(matches, result.TrackerMatch{
				URL:        req.URL,
				Category:   e.Category,
				Company:    e.Company,
				CompanyURL: e.CompanyURL,
				Domain:     e.Domain,
			})
			break
		}
	}

	res.Disconnect = matches
	res.DisconnectNum = len(matches)
}
