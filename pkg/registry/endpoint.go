// Package registry wraps the national business registry's open-data API.
// The API's location is not guaranteed stable, so the package discovers its
// live endpoint at runtime (see Resolver) before issuing search and detail
// lookups.
package registry

import "strings"

// DetailPlaceholder marks where the entity identifier is substituted into
// a detail path.
const DetailPlaceholder = "{businessId}"

// Endpoint describes the resolved registry API surface: a base URL, the
// search path, and a detail-path template containing DetailPlaceholder.
type Endpoint struct {
	BaseURL    string
	SearchPath string
	DetailPath string
}

// SearchURL returns the full search URL.
func (e Endpoint) SearchURL() string {
	return e.BaseURL + e.SearchPath
}

// DetailURL returns the full detail URL for the given entity identifier.
func (e Endpoint) DetailURL(businessID string) string {
	return e.BaseURL + strings.ReplaceAll(e.DetailPath, DetailPlaceholder, businessID)
}

// FixedEndpoint builds a descriptor for a caller-supplied base URL,
// bypassing discovery. The search path is the base itself and the detail
// path is guessed by appending the identifier placeholder.
func FixedEndpoint(baseURL string) Endpoint {
	return Endpoint{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		SearchPath: "",
		DetailPath: "/" + DetailPlaceholder,
	}
}
