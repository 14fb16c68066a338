package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"transitportal/internal/http/middleware"
	"transitportal/internal/services"
)

type triggerRequest struct {
	SchedulerKey string `json:"schedulerKey"`
	TargetDate   string `json:"targetDate"`
	TimeSlot     string `json:"timeSlot"`
	DryRun       bool   `json:"dryRun"`
	Force        bool   `json:"force"`
}

type statusRequest struct {
	Date     string `json:"date"`
	Detailed bool   `json:"detailed"`
}

// POST /api/scheduler/daily-reminders
func (h *Handler) TriggerDailyReminders(c *gin.Context) {
	var req triggerRequest
	if !BindJSONOrError(c, &req) {
		return
	}

	res, err := h.Deps.Scheduler(middleware.GetRequestID(c)).Trigger(c.Request.Context(), services.TriggerRequest{
		SchedulerKey: req.SchedulerKey,
		TargetDate:   req.TargetDate,
		TimeSlot:     req.TimeSlot,
		DryRun:       req.DryRun,
		Force:        req.Force,
	})
	if err != nil {
		var extra gin.H
		if res.RunID != 0 {
			extra = gin.H{"result": gin.H{"summary": res.Summary, "details": res, "error": res.Error}}
		}
		RespondDomainError(c, err, extra)
		return
	}

	body := gin.H{
		"success": true,
		"skipped": res.Skipped,
		"result": gin.H{
			"summary": res.Summary,
			"details": res,
			"error":   nil,
		},
	}
	if res.Skipped {
		body["reason"] = res.Reason
		body["message"] = "scheduler already ran for this slot"
	}
	c.JSON(http.StatusOK, body)
}

// GET|POST /api/scheduler/status
func (h *Handler) SchedulerStatus(c *gin.Context) {
	var req statusRequest
	if c.Request.Method == http.MethodPost && c.Request.ContentLength != 0 {
		if !BindJSONOrError(c, &req) {
			return
		}
	} else {
		req.Date = c.Query("date")
		req.Detailed, _ = strconv.ParseBool(strings.TrimSpace(c.Query("detailed")))
	}

	st, err := h.Deps.Scheduler(middleware.GetRequestID(c)).Status(c.Request.Context(), req.Date, req.Detailed)
	if err != nil {
		RespondDomainError(c, err, nil)
		return
	}

	body := gin.H{
		"success":      true,
		"date":         st.Date,
		"current_time": st.CurrentTime,
		"slots":        st.Slots,
		"recommendations": gin.H{
			"shouldRun5PM":     st.ShouldRun5PM,
			"shouldRun6PM":     st.ShouldRun6PM,
			"nextScheduledRun": st.NextScheduledRun,
		},
	}
	if st.Statistics != nil {
		body["statistics"] = st.Statistics
	}
	c.JSON(http.StatusOK, body)
}
