package rest

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) previewSchedule(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantOf(w, r)
	if !ok {
		return
	}

	var req ScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	schedule, err := h.credit.PreviewSchedule(r.Context(), tenant, req.ToInput())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	Success(w, "", schedule)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantOf(w, r)
	if !ok {
		return
	}

	var req CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	order, err := h.credit.CreateOrder(r.Context(), tenant, req.ToInput())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	SuccessCreated(w, "Orden de crédito creada", order)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantOf(w, r)
	if !ok {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	order, err := h.credit.GetOrder(r.Context(), tenant, id)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	Success(w, "", order)
}

func (h *Handler) materializeNext(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantOf(w, r)
	if !ok {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	res, err := h.credit.MaterializeNext(r.Context(), tenant, id)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	SuccessCreated(w, "Cuota generada", res)
}

func (h *Handler) materializeInstallment(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantOf(w, r)
	if !ok {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number < 1 {
		WriteError(w, r, &ValidationError{Field: "number", Message: "number must be a positive integer"})
		return
	}

	res, err := h.credit.Materialize(r.Context(), tenant, id, number)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	SuccessCreated(w, "Cuota generada", res)
}

func (h *Handler) voidOrder(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantOf(w, r)
	if !ok {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	order, err := h.credit.VoidOrder(r.Context(), tenant, id)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	Success(w, "Orden anulada", order)
}
