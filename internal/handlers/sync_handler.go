package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "wealthsync/internal/errors"
	"wealthsync/internal/middleware"
	"wealthsync/internal/services"
	"wealthsync/internal/syncer"
)

// SyncTrigger starts an out-of-schedule run of every sync job.
type SyncTrigger interface {
	TriggerNow()
}

// SyncHandler handles sync requests.
type SyncHandler struct {
	syncService services.SyncServicer
	trigger     SyncTrigger
}

// NewSyncHandler creates a new SyncHandler. trigger may be nil when no
// scheduler is running.
func NewSyncHandler(syncService services.SyncServicer, trigger SyncTrigger) *SyncHandler {
	return &SyncHandler{syncService: syncService, trigger: trigger}
}

// syncResultResponse is a sync result with its failure, if any, rendered
// the same way as a request error.
type syncResultResponse struct {
	*syncer.Result
	Error *middleware.ErrorBody `json:"error,omitempty"`
}

func renderResult(c *gin.Context, r *syncer.Result) syncResultResponse {
	resp := syncResultResponse{Result: r}
	if r.Err != nil {
		_, body := middleware.Describe(c, r.Err)
		resp.Error = &body
	}
	return resp
}

// SyncAccount handles POST /accounts/:id/sync.
func (h *SyncHandler) SyncAccount(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	accountID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.syncService.SyncAccount(c.Request.Context(), userID, accountID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": renderResult(c, result)})
}

// SyncUserAccounts handles POST /sync. Per-account failures are reported in
// the results; the request itself succeeds.
func (h *SyncHandler) SyncUserAccounts(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	results, err := h.syncService.SyncUserAccounts(c.Request.Context(), userID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rendered := make([]syncResultResponse, 0, len(results))
	for _, r := range results {
		rendered = append(rendered, renderResult(c, r))
	}
	c.JSON(http.StatusOK, gin.H{"results": rendered})
}

// TriggerSyncAll handles POST /internal/sync. The run happens in the
// background on the scheduler's worker pool.
func (h *SyncHandler) TriggerSyncAll(c *gin.Context) {
	if h.trigger == nil {
		respondWithError(c, apperrors.ErrSchedulerDisabled)
		return
	}
	h.trigger.TriggerNow()
	c.JSON(http.StatusAccepted, gin.H{"status": "triggered"})
}
