package domain

import "time"

// Service is a catalog entry: a category/subcategory pair with its SLA
// budgets and routing hints.
type Service struct {
	ID          string
	Category    string
	Subcategory string
	// TargetHours and MaxHours are the SLA budgets; either may be absent.
	TargetHours *int
	MaxHours    *int
	// InitialResponsible is a free-text label consulted by the assignment
	// fallback when automated resolution fails.
	InitialResponsible     string
	RequiresApprovalLetter bool
	Active                 bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
