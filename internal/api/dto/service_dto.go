package dto

// ServiceResponse is the catalog entry projection.
type ServiceResponse struct {
	ID                     string `json:"id"`
	Category               string `json:"category"`
	Subcategory            string `json:"subcategory"`
	TargetHours            *int   `json:"target_hours,omitempty"`
	MaxHours               *int   `json:"max_hours,omitempty"`
	RequiresApprovalLetter bool   `json:"requires_approval_letter"`
}
