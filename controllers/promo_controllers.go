package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/yeremiapane/bar-booking/models"
	"github.com/yeremiapane/bar-booking/services"
	"github.com/yeremiapane/bar-booking/utils"
)

type PromoController struct {
	Promos  *services.PromoService
	Catalog *services.CatalogService
}

func NewPromoController(promos *services.PromoService, catalog *services.CatalogService) *PromoController {
	return &PromoController{Promos: promos, Catalog: catalog}
}

// ValidatePromo checks a code against the table and date the customer is
// about to book and reports the discount it would grant.
func (pc *PromoController) ValidatePromo(c *gin.Context) {
	var req struct {
		Code        string `json:"code" binding:"required"`
		TableID     uint   `json:"table_id" binding:"required"`
		BookingDate string `json:"booking_date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	date, err := models.ParseDate(req.BookingDate)
	if err != nil {
		utils.RespondErrorDetail(c, http.StatusBadRequest, services.ErrInvalidTimeRange.Code, "booking_date", err.Error())
		return
	}
	table, err := pc.Catalog.GetTable(c.Request.Context(), req.TableID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	base := table.BaseTotal()
	promo, discount, err := pc.Promos.Validate(c.Request.Context(), req.Code, services.PromoContext{
		BaseSpend: base,
		Date:      date,
		Zone:      table.Zone,
		TableType: table.TableType,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Promo code is valid", gin.H{
		"code":        promo.Code,
		"description": promo.Description,
		"base_total":  base,
		"discount":    discount,
		"total":       base.Sub(discount),
	})
}

type promoRequest struct {
	Code                 string          `json:"code"`
	Description          string          `json:"description"`
	DiscountPercent      decimal.Decimal `json:"discount_percent"`
	DiscountAmount       decimal.Decimal `json:"discount_amount"`
	MinimumSpend         decimal.Decimal `json:"minimum_spend"`
	ValidFrom            string          `json:"valid_from"`
	ValidTo              string          `json:"valid_to"`
	MaxUses              int             `json:"max_uses"`
	ApplicableDays       []string        `json:"applicable_days"`
	ApplicableZones      []string        `json:"applicable_zones"`
	ApplicableTableTypes []string        `json:"applicable_table_types"`
	IsActive             *bool           `json:"is_active"`
}

func (r promoRequest) input() services.PromoInput {
	return services.PromoInput{
		Code:                 r.Code,
		Description:          r.Description,
		DiscountPercent:      r.DiscountPercent,
		DiscountAmount:       r.DiscountAmount,
		MinimumSpend:         r.MinimumSpend,
		ValidFrom:            r.ValidFrom,
		ValidTo:              r.ValidTo,
		MaxUses:              r.MaxUses,
		ApplicableDays:       r.ApplicableDays,
		ApplicableZones:      r.ApplicableZones,
		ApplicableTableTypes: r.ApplicableTableTypes,
		IsActive:             r.IsActive,
	}
}

func (pc *PromoController) ListPromos(c *gin.Context) {
	promos, err := pc.Promos.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Promo codes retrieved", promos)
}

func (pc *PromoController) GetPromo(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	promo, err := pc.Promos.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Promo code retrieved", promo)
}

func (pc *PromoController) CreatePromo(c *gin.Context) {
	var req promoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	promo, err := pc.Promos.Create(c.Request.Context(), req.input())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Promo code created", promo)
}

func (pc *PromoController) UpdatePromo(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req promoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	promo, err := pc.Promos.Update(c.Request.Context(), id, req.input())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Promo code updated", promo)
}

func (pc *PromoController) TogglePromo(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	promo, err := pc.Promos.Toggle(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Promo code toggled", promo)
}

func (pc *PromoController) DeletePromo(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := pc.Promos.Delete(c.Request.Context(), id); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Promo code deleted", nil)
}
