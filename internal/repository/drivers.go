package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"aegis-safety/internal/models"

	"go.uber.org/zap"
)

// ErrDriverNotFound 驾驶员不存在
var ErrDriverNotFound = errors.New("driver not found")

// DriverRepository 驾驶员仓库
type DriverRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDriverRepository 创建驾驶员仓库
func NewDriverRepository(db *sql.DB, logger *zap.Logger) *DriverRepository {
	return &DriverRepository{
		db:     db,
		logger: logger,
	}
}

// GetProfile 读取驾驶员档案（含公司负责人邮箱与家属通知名单）
func (r *DriverRepository) GetProfile(ctx context.Context, driverID int64) (*models.DriverProfile, error) {
	query := `
		SELECT
			d.id,
			d.full_name,
			COALESCE(d.email, ''),
			d.safety_score,
			d.company_id,
			COALESCE(c.name, ''),
			COALESCE(c.representative_email, '')
		FROM drivers d
		LEFT JOIN companies c ON c.id = d.company_id
		WHERE d.id = $1
	`

	var p models.DriverProfile
	var companyID sql.NullInt64

	err := r.db.QueryRowContext(ctx, query, driverID).Scan(
		&p.DriverID,
		&p.FullName,
		&p.Email,
		&p.SafetyScore,
		&companyID,
		&p.CompanyName,
		&p.CompanyRepresentativeEmail,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDriverNotFound
		}
		return nil, fmt.Errorf("failed to get driver %d: %w", driverID, err)
	}
	if companyID.Valid {
		p.CompanyID = &companyID.Int64
	}

	familyQuery := `
		SELECT full_name, email, COALESCE(relationship, ''), notify_on_critical, notify_on_high
		FROM family_members
		WHERE driver_id = $1
		  AND email <> ''
	`

	rows, err := r.db.QueryContext(ctx, familyQuery, driverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list family members for driver %d: %w", driverID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var fm models.FamilyMember
		if err := rows.Scan(&fm.FullName, &fm.Email, &fm.Relationship, &fm.NotifyOnCritical, &fm.NotifyOnHigh); err != nil {
			return nil, fmt.Errorf("failed to scan family member row: %w", err)
		}
		p.FamilyMembers = append(p.FamilyMembers, fm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate family member rows: %w", err)
	}

	return &p, nil
}

// DeductSafetyScore 扣减安全评分，下限为 0（数据库侧 GREATEST 保证下限，
// 并发扣分按最后写入为准）
func (r *DriverRepository) DeductSafetyScore(ctx context.Context, driverID int64, deduction int) (int, error) {
	if deduction <= 0 {
		return 0, fmt.Errorf("deduction must be positive")
	}

	query := `
		UPDATE drivers
		SET safety_score = GREATEST(0, safety_score - $2)
		WHERE id = $1
		RETURNING safety_score
	`

	var newScore int
	err := r.db.QueryRowContext(ctx, query, driverID, deduction).Scan(&newScore)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrDriverNotFound
		}
		return 0, fmt.Errorf("failed to deduct safety score for driver %d: %w", driverID, err)
	}

	return newScore, nil
}
