// README: Pricing handlers: platform fee setting, per-km rate and fare estimates.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ridebook/internal/modules/pricing"
	"ridebook/internal/types"
)

type PricingHandler struct {
	pricing *pricing.Service
	log     logrus.FieldLogger
}

func NewPricingHandler(svc *pricing.Service, log logrus.FieldLogger) *PricingHandler {
	return &PricingHandler{pricing: svc, log: log}
}

type feePercentageBody struct {
	Percentage *float64 `json:"percentage"`
}

func (h *PricingHandler) GetFeePercentage(c *gin.Context) {
	p := h.pricing.FeePercent(c.Request.Context())
	writeJSON(c, http.StatusOK, gin.H{"percentage": p.Float64()})
}

func (h *PricingHandler) SetFeePercentage(c *gin.Context) {
	var req feePercentageBody
	if err := c.ShouldBindJSON(&req); err != nil || req.Percentage == nil {
		writeError(c, http.StatusBadRequest, CodeInvalidPercentage)
		return
	}
	p, err := types.PercentFromFloat(*req.Percentage)
	if err != nil {
		writeError(c, http.StatusBadRequest, CodeInvalidPercentage)
		return
	}
	if err := h.pricing.SetFeePercent(c.Request.Context(), p); err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"percentage": p.Float64()})
}

func (h *PricingHandler) GetPricePerKm(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{"price_per_km": h.pricing.PricePerKm(c.Request.Context())})
}

type pricePerKmReq struct {
	PricePerKm string `json:"price_per_km"`
}

func (h *PricingHandler) SetPricePerKm(c *gin.Context) {
	var req pricePerKmReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, CodeBadRequest)
		return
	}
	current := h.pricing.PricePerKm(c.Request.Context())
	m, err := types.ParseMoney(req.PricePerKm, current.Currency)
	if err != nil {
		writeError(c, http.StatusBadRequest, CodeInvalidAmount)
		return
	}
	if err := h.pricing.SetPricePerKm(c.Request.Context(), m); err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"price_per_km": m})
}

type estimateReq struct {
	DistanceKm *float64 `json:"distance_km"`
	FromLat    *float64 `json:"from_lat"`
	FromLng    *float64 `json:"from_lng"`
	ToLat      *float64 `json:"to_lat"`
	ToLng      *float64 `json:"to_lng"`
}

type estimateResp struct {
	Distance       float64     `json:"distance"`
	PricePerKm     types.Money `json:"price_per_km"`
	SuggestedPrice types.Money `json:"suggested_price"`
}

func (h *PricingHandler) Estimate(c *gin.Context) {
	var req estimateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, CodeBadRequest)
		return
	}
	er := pricing.EstimateRequest{DistanceKm: req.DistanceKm}
	if req.FromLat != nil && req.FromLng != nil && req.ToLat != nil && req.ToLng != nil {
		er.From = &types.Point{Lat: *req.FromLat, Lng: *req.FromLng}
		er.To = &types.Point{Lat: *req.ToLat, Lng: *req.ToLng}
	}
	est, err := h.pricing.Estimate(c.Request.Context(), er)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, estimateResp{
		Distance:       est.DistanceKm,
		PricePerKm:     est.PricePerKm,
		SuggestedPrice: est.SuggestedPrice,
	})
}
