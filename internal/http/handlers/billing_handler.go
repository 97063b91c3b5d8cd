// README: Billing handlers: mark a fee claim paid, list a provider's pending claims.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ridebook/internal/http/middleware"
	"ridebook/internal/modules/billing"
	"ridebook/internal/types"
)

type BillingHandler struct {
	billing *billing.Service
	log     logrus.FieldLogger
}

func NewBillingHandler(svc *billing.Service, log logrus.FieldLogger) *BillingHandler {
	return &BillingHandler{billing: svc, log: log}
}

type payReq struct {
	PaymentMethod string `json:"payment_method"`
}

func (h *BillingHandler) Pay(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req payReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, CodeBadRequest)
		return
	}
	r, err := h.billing.MarkPaid(c.Request.Context(), id, req.PaymentMethod)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	writeJSON(c, http.StatusOK, newBillingView(r))
}

func (h *BillingHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.billing.Get(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	if !ownsProvider(c, r.ProviderID) {
		writeError(c, http.StatusForbidden, CodeForbidden)
		return
	}
	writeJSON(c, http.StatusOK, newBillingView(r))
}

// Pending defaults provider_id to the caller; only admins may ask for someone else.
func (h *BillingHandler) Pending(c *gin.Context) {
	provider := types.ID(c.Query("provider_id"))
	if provider == "" {
		provider = types.ID(middleware.CallerUID(c))
	}
	if !ownsProvider(c, provider) {
		writeError(c, http.StatusForbidden, CodeForbidden)
		return
	}
	list, err := h.billing.PendingForProvider(c.Request.Context(), provider)
	if err != nil {
		writeDomainError(c, h.log, err)
		return
	}
	out := make([]billingView, 0, len(list))
	for _, r := range list {
		out = append(out, newBillingView(r))
	}
	writeJSON(c, http.StatusOK, gin.H{"records": out})
}

func ownsProvider(c *gin.Context, provider types.ID) bool {
	return middleware.CallerRole(c) == middleware.RoleAdmin || provider == types.ID(middleware.CallerUID(c))
}
