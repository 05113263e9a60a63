package handler

import (
	"log/slog"
	"net/http"

	"github.com/liorcore/star-journey-sub000/internal/model"
	"github.com/liorcore/star-journey-sub000/internal/reporting"
)

type ReportHandler struct {
	scanner *reporting.Scanner
	logger  *slog.Logger
}

func NewReportHandler(scanner *reporting.Scanner, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{scanner: scanner, logger: logger}
}

// Usage returns usage buckets at the requested granularity (default day).
func (h *ReportHandler) Usage(w http.ResponseWriter, r *http.Request) {
	period := reporting.Period(r.URL.Query().Get("period"))
	switch period {
	case "":
		period = reporting.PeriodDay
	case reporting.PeriodDay, reporting.PeriodHour, reporting.PeriodMonth:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "period must be day, hour, or month"})
		return
	}

	buckets, err := h.scanner.ComputeUsageStats(r.Context(), period)
	if err != nil {
		h.logger.Error("compute usage stats", "error", err)
		writeError(w, err)
		return
	}
	if buckets == nil {
		buckets = []model.UsageBucket{}
	}
	writeJSON(w, http.StatusOK, buckets)
}
