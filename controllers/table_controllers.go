package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/yeremiapane/bar-booking/services"
	"github.com/yeremiapane/bar-booking/utils"
)

type TableController struct {
	Catalog         *services.CatalogService
	AvailabilitySvc *services.AvailabilityService
}

func NewTableController(catalog *services.CatalogService, availability *services.AvailabilityService) *TableController {
	return &TableController{Catalog: catalog, AvailabilitySvc: availability}
}

type tableRequest struct {
	BranchID      uint             `json:"branch_id"`
	TableNumber   string           `json:"table_number"`
	Zone          *string          `json:"zone"`
	TableType     *string          `json:"table_type"`
	Capacity      *int             `json:"capacity"`
	MinimumSpend  *decimal.Decimal `json:"minimum_spend"`
	BasePrice     *decimal.Decimal `json:"base_price"`
	FloorPosition *string          `json:"floor_position"`
	Notes         *string          `json:"notes"`
	IsActive      *bool            `json:"is_active"`
}

func (r tableRequest) input() services.TableInput {
	return services.TableInput{
		BranchID:      r.BranchID,
		TableNumber:   r.TableNumber,
		Zone:          r.Zone,
		TableType:     r.TableType,
		Capacity:      r.Capacity,
		MinimumSpend:  r.MinimumSpend,
		BasePrice:     r.BasePrice,
		FloorPosition: r.FloorPosition,
		Notes:         r.Notes,
		IsActive:      r.IsActive,
	}
}

// ListBranches returns the active branches.
func (tc *TableController) ListBranches(c *gin.Context) {
	branches, err := tc.Catalog.ListBranches(c.Request.Context(), true)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Branches retrieved", branches)
}

// ListBranchTables returns the active tables of one branch.
func (tc *TableController) ListBranchTables(c *gin.Context) {
	branchID, ok := paramID(c, "branch_id")
	if !ok {
		return
	}
	if _, err := tc.Catalog.GetBranch(c.Request.Context(), branchID); err != nil {
		respondServiceError(c, err)
		return
	}
	tables, err := tc.Catalog.ListTables(c.Request.Context(), branchID, true)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Tables retrieved", tables)
}

type availabilityQuery struct {
	BranchID uint   `form:"branch_id" binding:"required"`
	Date     string `form:"date" binding:"required"`
	Start    string `form:"start_time" binding:"required"`
	Duration int    `form:"duration" binding:"required"`
	Guests   int    `form:"guests" binding:"required"`
	Zone     string `form:"zone"`
}

func (tc *TableController) Availability(c *gin.Context) {
	var q availabilityQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	slot, err := services.ParseSlot(q.BranchID, q.Date, q.Start, q.Duration, q.Guests, q.Zone)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	tables, err := tc.AvailabilitySvc.FindAvailableTables(c.Request.Context(), slot)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Available tables retrieved", gin.H{
		"date":       q.Date,
		"start_time": slot.Start,
		"end_time":   slot.End(),
		"tables":     tables,
	})
}

// ListTables is the admin listing; inactive tables are included.
func (tc *TableController) ListTables(c *gin.Context) {
	var q struct {
		BranchID uint `form:"branch_id"`
	}
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	tables, err := tc.Catalog.ListTables(c.Request.Context(), q.BranchID, false)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Tables retrieved", tables)
}

// GetTable returns a table with its latest bookings.
func (tc *TableController) GetTable(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	table, err := tc.Catalog.GetTable(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	recent, err := tc.Catalog.RecentBookings(c.Request.Context(), id, 10)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table retrieved", gin.H{
		"table":           table,
		"recent_bookings": recent,
	})
}

func (tc *TableController) CreateTable(c *gin.Context) {
	var req tableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	table, err := tc.Catalog.CreateTable(c.Request.Context(), req.input())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Table created", table)
}

func (tc *TableController) UpdateTable(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req tableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	table, err := tc.Catalog.UpdateTable(c.Request.Context(), id, req.input())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table updated", table)
}

// DeleteTable deactivates the table. Its booking history is kept.
func (tc *TableController) DeleteTable(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	inactive := false
	table, err := tc.Catalog.UpdateTable(c.Request.Context(), id, services.TableInput{IsActive: &inactive})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table deactivated", table)
}

func (tc *TableController) CreateBranch(c *gin.Context) {
	var req struct {
		Name         string `json:"name" binding:"required"`
		Address      string `json:"address"`
		Phone        string `json:"phone"`
		OpeningHours string `json:"opening_hours"`
		Description  string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	branch, err := tc.Catalog.CreateBranch(c.Request.Context(), services.BranchInput{
		Name:         req.Name,
		Address:      req.Address,
		Phone:        req.Phone,
		OpeningHours: req.OpeningHours,
		Description:  req.Description,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Branch created", branch)
}
