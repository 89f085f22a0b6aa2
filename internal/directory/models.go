package directory

import "time"

const (
	TypeParty    = "party"
	TypeSite     = "site"
	TypeProspect = "prospect"
)

// Directory is a visitable stop entity. Coordinates are optional; entries
// without them never win proximity resolution.
type Directory struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Type           string    `json:"type"`
	Name           string    `json:"name"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

func ValidType(t string) bool {
	return t == TypeParty || t == TypeSite || t == TypeProspect
}
