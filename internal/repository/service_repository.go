package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ServiceRepository gives access to the service catalog.
type ServiceRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Service, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Service, error)
}

type serviceRepository struct {
	db DBTX
}

// NewServiceRepository instantiates the repository.
func NewServiceRepository(db DBTX) ServiceRepository {
	return &serviceRepository{db: db}
}

func (r *serviceRepository) GetByID(ctx context.Context, id string) (*domain.Service, error) {
	const query = `
        SELECT id, category, subcategory, target_hours, max_hours, initial_responsible,
               requires_approval_letter, active_flag, created_at, updated_at
        FROM services WHERE id=$1`
	var svc domain.Service
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&svc.ID,
		&svc.Category,
		&svc.Subcategory,
		&svc.TargetHours,
		&svc.MaxHours,
		&svc.InitialResponsible,
		&svc.RequiresApprovalLetter,
		&svc.Active,
		&svc.CreatedAt,
		&svc.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &svc, nil
}

func (r *serviceRepository) List(ctx context.Context, activeOnly bool) ([]domain.Service, error) {
	query := `
        SELECT id, category, subcategory, target_hours, max_hours, initial_responsible,
               requires_approval_letter, active_flag, created_at, updated_at
        FROM services`
	if activeOnly {
		query += " WHERE active_flag=TRUE"
	}
	query += " ORDER BY category, subcategory"

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Service
	for rows.Next() {
		var svc domain.Service
		if err := rows.Scan(
			&svc.ID,
			&svc.Category,
			&svc.Subcategory,
			&svc.TargetHours,
			&svc.MaxHours,
			&svc.InitialResponsible,
			&svc.RequiresApprovalLetter,
			&svc.Active,
			&svc.CreatedAt,
			&svc.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, svc)
	}
	return result, rows.Err()
}
