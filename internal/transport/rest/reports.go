package rest

import (
	"net/http"

	"gremio-backoffice/internal/domain"
	"gremio-backoffice/internal/service"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) reportSchedule(w http.ResponseWriter, r *http.Request) {
	tenant, userID, ok := callerOf(w, r)
	if !ok {
		return
	}
	orderID, err := uuidParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	st, err := h.reports.StartScheduleReport(r.Context(), tenant, userID, orderID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	SuccessAccepted(w, "Reporte en cola", map[string]any{"report_id": st.Key})
}

func (h *Handler) reportClose(w http.ResponseWriter, r *http.Request) {
	tenant, userID, ok := callerOf(w, r)
	if !ok {
		return
	}
	sessionID, err := uuidParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	st, err := h.reports.StartCloseReport(r.Context(), tenant, userID, sessionID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	SuccessAccepted(w, "Reporte en cola", map[string]any{"report_id": st.Key})
}

func (h *Handler) reportNovelties(w http.ResponseWriter, r *http.Request) {
	tenant, userID, ok := callerOf(w, r)
	if !ok {
		return
	}

	var req NoveltyReportRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}
	period, err := domain.ParsePeriod(req.Period)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	st, err := h.reports.StartNoveltyReport(r.Context(), tenant, userID, period)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	SuccessAccepted(w, "Reporte en cola", map[string]any{"report_id": st.Key})
}

func (h *Handler) listReports(w http.ResponseWriter, r *http.Request) {
	tenant, userID, ok := callerOf(w, r)
	if !ok {
		return
	}

	reports, err := h.reports.GetReports(r.Context(), tenant, userID)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if reports == nil {
		reports = []service.ReportView{}
	}

	Success(w, "", reports)
}

func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	tenant, userID, ok := callerOf(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "report_id")
	if id == "" {
		ErrorBadRequest(w, "report_id is required")
		return
	}

	report, err := h.reports.GetReport(r.Context(), tenant, userID, id)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	Success(w, "", report)
}
