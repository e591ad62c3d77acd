package rest

import (
	"net/http"
	"time"

	"gremio-backoffice/internal/domain"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) resolvePeriod(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantOf(w, r)
	if !ok {
		return
	}

	date, err := time.Parse(dateLayout, r.URL.Query().Get("date"))
	if err != nil {
		WriteError(w, r, &ValidationError{Field: "date", Message: "date must be YYYY-MM-DD"})
		return
	}

	res, err := h.novelties.ResolvePeriod(r.Context(), tenant, date)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	Success(w, "", res)
}

func (h *Handler) setCutoff(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantOf(w, r)
	if !ok {
		return
	}
	period, err := domain.ParsePeriod(chi.URLParam(r, "period"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req CutoffRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	if err := h.novelties.SetCutoff(r.Context(), tenant, period, req.Day); err != nil {
		WriteError(w, r, err)
		return
	}

	Success(w, "Día de corte actualizado", map[string]any{"period": period, "cutoff_day": req.Day})
}

func (h *Handler) registerNovelty(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantOf(w, r)
	if !ok {
		return
	}

	var req NoveltyRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	novelty, err := h.novelties.RegisterNovelty(r.Context(), tenant, req.ToInput())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	SuccessCreated(w, "Novedad registrada", novelty)
}

func (h *Handler) listNovelties(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantOf(w, r)
	if !ok {
		return
	}
	period, err := domain.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		WriteError(w, r, err)
		return
	}

	novelties, err := h.novelties.ListByPeriod(r.Context(), tenant, period)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if novelties == nil {
		novelties = []domain.Novelty{}
	}

	Success(w, "", novelties)
}
