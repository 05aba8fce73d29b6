package assignments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/omaldonado/crewdispatch-backend/pkg/db/models"
	"github.com/omaldonado/crewdispatch-backend/pkg/enums"
	"github.com/omaldonado/crewdispatch-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an assignments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateAssignment(ctx context.Context, assignment *models.Assignment) (*models.Assignment, error) {
	if err := r.db.WithContext(ctx).Create(assignment).Error; err != nil {
		return nil, err
	}
	return assignment, nil
}

func (r *repository) FindAssignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&assignment).Error
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) FindServiceOrder(ctx context.Context, id uuid.UUID) (*models.ServiceOrder, error) {
	var order models.ServiceOrder
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindProvidersWithTeams(ctx context.Context, ids []uuid.UUID) ([]models.Provider, error) {
	var providers []models.Provider
	err := r.db.WithContext(ctx).
		Preload("WorkTeams").
		Where("id IN ?", ids).
		Order("created_at ASC").
		Find(&providers).Error
	if err != nil {
		return nil, err
	}
	return providers, nil
}

func (r *repository) FindAcceptedByServiceOrder(ctx context.Context, serviceOrderID uuid.UUID) (*models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.WithContext(ctx).
		Where("service_order_id = ? AND status = ?", serviceOrderID, enums.AssignmentStatusAccepted).
		First(&assignment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) ListAssignments(ctx context.Context, params pagination.Params, filters ListFilters) (*AssignmentList, error) {
	limit := pagination.NormalizeLimit(params.Limit)

	query := r.db.WithContext(ctx).Model(&models.Assignment{})
	if filters.ServiceOrderID != nil {
		query = query.Where("service_order_id = ?", *filters.ServiceOrderID)
	}
	if filters.ProviderID != nil {
		query = query.Where("provider_id = ?", *filters.ProviderID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.Mode != nil {
		query = query.Where("mode = ?", *filters.Mode)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where(
			"created_at < ? OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}

	var rows []models.Assignment
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	list := &AssignmentList{Items: rows}
	if len(rows) > limit {
		list.Items = rows[:limit]
		last := list.Items[len(list.Items)-1]
		next := pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		list.NextCursor = &next
	}
	return list, nil
}

func (r *repository) UpdateStatusIf(ctx context.Context, id uuid.UUID, expected enums.AssignmentStatus, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) UpdateProposalIf(ctx context.Context, id uuid.UUID, expectedRound int, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND status = ? AND date_negotiation_round = ?", id, enums.AssignmentStatusPending, expectedRound).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repository) FindPendingSiblings(ctx context.Context, serviceOrderID, excludeID uuid.UUID) ([]models.Assignment, error) {
	var rows []models.Assignment
	err := r.db.WithContext(ctx).
		Where("service_order_id = ? AND id <> ? AND status = ?", serviceOrderID, excludeID, enums.AssignmentStatusPending).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) DeclinePendingSiblings(ctx context.Context, serviceOrderID, excludeID uuid.UUID, reason string, declinedAt time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("service_order_id = ? AND id <> ? AND status = ?", serviceOrderID, excludeID, enums.AssignmentStatusPending).
		Updates(map[string]any{
			"status":         enums.AssignmentStatusDeclined,
			"declined_at":    declinedAt,
			"decline_reason": reason,
		})
	return result.RowsAffected, result.Error
}

func (r *repository) FindPendingExpiredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Assignment, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Assignment
	err := r.db.WithContext(ctx).
		Where("status = ? AND offer_expires_at IS NOT NULL AND offer_expires_at < ?", enums.AssignmentStatusPending, cutoff).
		Order("offer_expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CreateNegotiation(ctx context.Context, negotiation *models.DateNegotiation) error {
	return r.db.WithContext(ctx).Create(negotiation).Error
}

func (r *repository) FindNegotiations(ctx context.Context, assignmentID uuid.UUID) ([]models.DateNegotiation, error) {
	var rows []models.DateNegotiation
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("round ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
