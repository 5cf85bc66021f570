package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/yeremiapane/bar-booking/models"
)

// TableInput is the admin form for a table. On update, nil fields are kept.
type TableInput struct {
	BranchID      uint
	TableNumber   string
	Zone          *string
	TableType     *string
	Capacity      *int
	MinimumSpend  *decimal.Decimal
	BasePrice     *decimal.Decimal
	FloorPosition *string
	Notes         *string
	IsActive      *bool
}

type BranchInput struct {
	Name         string
	Address      string
	Phone        string
	OpeningHours string
	Description  string
}

// CatalogService manages branches and their tables.
type CatalogService struct {
	store
}

func NewCatalogService(db *gorm.DB, log *logrus.Logger, policy Policy) *CatalogService {
	return &CatalogService{store: newStore(db, log, policy.CommitTimeout)}
}

func (s *CatalogService) ListBranches(ctx context.Context, activeOnly bool) ([]models.Branch, error) {
	db, cancel := s.read(ctx)
	defer cancel()
	q := db.Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var branches []models.Branch
	if err := q.Find(&branches).Error; err != nil {
		return nil, s.fail("list branches", err)
	}
	return branches, nil
}

func (s *CatalogService) GetBranch(ctx context.Context, id uint) (*models.Branch, error) {
	db, cancel := s.read(ctx)
	defer cancel()
	var b models.Branch
	if err := db.First(&b, id).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, ErrBranchNotFound
		}
		return nil, s.fail("get branch", err)
	}
	return &b, nil
}

func (s *CatalogService) CreateBranch(ctx context.Context, in BranchInput) (*models.Branch, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, invalidInput("name", "branch name is required")
	}
	b := &models.Branch{
		Name:         strings.TrimSpace(in.Name),
		Address:      strings.TrimSpace(in.Address),
		Phone:        strings.TrimSpace(in.Phone),
		OpeningHours: strings.TrimSpace(in.OpeningHours),
		Description:  strings.TrimSpace(in.Description),
		IsActive:     true,
	}
	if err := s.transaction(ctx, "create branch", func(tx *gorm.DB) error {
		return tx.Create(b).Error
	}); err != nil {
		return nil, err
	}
	s.log.WithField("branch_id", b.ID).Info("branch created")
	return b, nil
}

// ListTables orders by branch, then table number. branchID zero lists all.
func (s *CatalogService) ListTables(ctx context.Context, branchID uint, activeOnly bool) ([]models.Table, error) {
	db, cancel := s.read(ctx)
	defer cancel()
	q := db.Order("branch_id ASC").Order("table_number ASC")
	if branchID != 0 {
		q = q.Where("branch_id = ?", branchID)
	}
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var tables []models.Table
	if err := q.Find(&tables).Error; err != nil {
		return nil, s.fail("list tables", err)
	}
	return tables, nil
}

func (s *CatalogService) GetTable(ctx context.Context, id uint) (*models.Table, error) {
	db, cancel := s.read(ctx)
	defer cancel()
	var t models.Table
	if err := db.First(&t, id).Error; err != nil {
		if isRecordNotFound(err) {
			return nil, ErrTableNotFound
		}
		return nil, s.fail("get table", err)
	}
	return &t, nil
}

func applyTableInput(t *models.Table, in TableInput) error {
	if in.Zone != nil {
		t.Zone = strings.TrimSpace(*in.Zone)
	}
	if in.TableType != nil {
		t.TableType = strings.TrimSpace(*in.TableType)
	}
	if in.Capacity != nil {
		t.Capacity = *in.Capacity
	}
	if in.MinimumSpend != nil {
		t.MinimumSpend = *in.MinimumSpend
	}
	if in.BasePrice != nil {
		t.BasePrice = *in.BasePrice
	}
	if in.FloorPosition != nil {
		t.FloorPosition = strings.TrimSpace(*in.FloorPosition)
	}
	if in.Notes != nil {
		t.Notes = strings.TrimSpace(*in.Notes)
	}
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}

	switch {
	case t.Zone == "":
		return invalidInput("zone", "zone is required")
	case t.TableType == "":
		return invalidInput("table_type", "table type is required")
	case t.Capacity < 1:
		return invalidInput("capacity", "capacity must be at least 1")
	case t.MinimumSpend.IsNegative():
		return invalidInput("minimum_spend", "minimum spend must not be negative")
	case t.BasePrice.IsNegative():
		return invalidInput("base_price", "base price must not be negative")
	}
	return nil
}

func (s *CatalogService) CreateTable(ctx context.Context, in TableInput) (*models.Table, error) {
	number := strings.TrimSpace(in.TableNumber)
	if number == "" {
		return nil, invalidInput("table_number", "table number is required")
	}
	t := &models.Table{BranchID: in.BranchID, TableNumber: number, IsActive: true}
	if err := applyTableInput(t, in); err != nil {
		return nil, err
	}
	err := s.transaction(ctx, "create table", func(tx *gorm.DB) error {
		var branch models.Branch
		if err := tx.First(&branch, in.BranchID).Error; err != nil {
			return notFound(err, ErrBranchNotFound)
		}
		var n int64
		if err := tx.Model(&models.Table{}).Where("branch_id = ? AND table_number = ?", in.BranchID, number).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicate.withMessage("table %s already exists in this branch", number).withField("table_number")
		}
		return tx.Create(t).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"table_id": t.ID, "branch_id": t.BranchID}).Info("table created")
	return t, nil
}

// UpdateTable changes pricing, capacity, placement and the active flag. The
// branch and table number identify the table and cannot change.
func (s *CatalogService) UpdateTable(ctx context.Context, id uint, in TableInput) (*models.Table, error) {
	var t models.Table
	err := s.transaction(ctx, "update table", func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&t, id).Error; err != nil {
			return notFound(err, ErrTableNotFound)
		}
		if err := applyTableInput(&t, in); err != nil {
			return err
		}
		return tx.Save(&t).Error
	})
	if err != nil {
		return nil, err
	}
	s.log.WithField("table_id", t.ID).Info("table updated")
	return &t, nil
}

// RecentBookings lists the latest bookings of a table, newest first.
func (s *CatalogService) RecentBookings(ctx context.Context, tableID uint, limit int) ([]models.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	db, cancel := s.read(ctx)
	defer cancel()
	var bookings []models.Booking
	err := db.Where("table_id = ?", tableID).
		Order("booking_date DESC").Order("start_time DESC").
		Limit(limit).Find(&bookings).Error
	if err != nil {
		return nil, s.fail("recent bookings", err)
	}
	return bookings, nil
}
