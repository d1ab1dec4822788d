package models

import "time"

// Region kinds as derived from the depth in the registry tree.
const (
	RegionKindTop = "region"
	RegionKindSub = "subregion"
)

// Region is one entry of the BDNS region catalog, keyed by registry id.
type Region struct {
	ID        int       `json:"id"`
	Code      string    `json:"code"` // NUTS-like code, e.g. "ES70"
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Purpose is one entry of the BDNS finalidad catalog.
type Purpose struct {
	ID          int       `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Area is a locally defined topic grouping. PurposeIDs carries a
// provisional comma-joined mapping to registry purpose ids; subscription
// matching does not consume it yet.
type Area struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PurposeIDs  string    `json:"purpose_ids"`
	CreatedAt   time.Time `json:"created_at"`
}

// SyncRun is one recorded execution of the synchronization pipeline.
type SyncRun struct {
	RunID      string     `json:"run_id"`
	Status     string     `json:"status"` // running, success, partial, failed
	Fetched    int        `json:"fetched"`
	NewItems   int        `json:"new_items"`
	Persisted  int        `json:"persisted"`
	Mirrored   int        `json:"mirrored"`
	Notified   int        `json:"notified"`
	Error      string     `json:"error"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
}
