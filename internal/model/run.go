package model

import "time"

// RunStatus tracks a discovery run's lifecycle in the local store.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunParams captures the query parameters a run was started with, so past
// runs can be inspected and re-exported.
type RunParams struct {
	MonthsBack        int      `json:"months_back"`
	Amenities         []string `json:"amenities,omitempty"`
	BusinessLineCodes []string `json:"business_line_codes,omitempty"`
	UseNewerProxy     bool     `json:"use_newer_proxy,omitempty"`
	ReverseGeocode    bool     `json:"reverse_geocode,omitempty"`
	UsePlaceSearch    bool     `json:"use_place_search,omitempty"`
	UseRegistry       bool     `json:"use_registry,omitempty"`
	StrictRestaurants bool     `json:"strict_restaurants,omitempty"`
}

// Run is one persisted discovery run.
type Run struct {
	ID           string         `json:"id"`
	City         string         `json:"city"`
	Cutoff       time.Time      `json:"cutoff"`
	Params       RunParams      `json:"params"`
	Status       RunStatus      `json:"status"`
	RecordCount  int            `json:"record_count"`
	SourceCounts map[Source]int `json:"source_counts,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
