package models

import "time"

// Grant is one funding call (convocatoria) pulled from the BDNS registry.
type Grant struct {
	ID               int64      `json:"id"`
	ExternalID       string     `json:"external_id"` // BDNS numeroConvocatoria, unique
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	PublicationDate  *time.Time `json:"publication_date"`
	ApplicationStart *time.Time `json:"application_start"`
	ApplicationEnd   *time.Time `json:"application_end"` // required for a grant to be active
	IssuingBody      string     `json:"issuing_body"`
	IssuingLevel1    string     `json:"issuing_level1"`
	IssuingLevel2    string     `json:"issuing_level2"`
	IssuingLevel3    string     `json:"issuing_level3"`
	CallType         string     `json:"call_type"`
	Instruments      []string   `json:"instruments"`
	Sectors          []string   `json:"sectors"`
	Budget           *float64   `json:"budget"`
	PurposeID        *int       `json:"purpose_id"`
	PurposeName      string     `json:"purpose_name"`
	RegionID         *int       `json:"region_id"`
	RegionName       string     `json:"region_name"`
	BeneficiaryTypes []string   `json:"beneficiary_types"`
	BDNSURL          string     `json:"bdns_url"`
	RegulationURL    string     `json:"regulation_url"`
	ApplicationURL   string     `json:"application_url"`
	CalendarEventID  string     `json:"calendar_event_id"` // empty until mirrored
	Active           bool       `json:"active"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// HasDeadline reports whether the grant carries an application-end date.
func (g *Grant) HasDeadline() bool {
	return g.ApplicationEnd != nil && !g.ApplicationEnd.IsZero()
}
