package beatplan

import "time"

// BeatPlan is a scheduled route assigning salespeople to a set of stops over
// a period.
type BeatPlan struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Name           string    `json:"name"`
	StartDate      time.Time `json:"startDate"`
	EndDate        time.Time `json:"endDate"`
	CreatedBy      string    `json:"createdBy"`
	CreatedAt      time.Time `json:"createdAt"`
}

type Assignment struct {
	BeatPlanID string    `json:"beatPlanId"`
	UserID     string    `json:"userId"`
	AssignedAt time.Time `json:"assignedAt"`
}

// StopRef links a directory entity into a plan at a listing position.
type StopRef struct {
	BeatPlanID  string `json:"beatPlanId"`
	DirectoryID string `json:"directoryId"`
	Position    int    `json:"position"`
}
