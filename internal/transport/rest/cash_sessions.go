package rest

import (
	"net/http"
)

func (h *Handler) openSession(w http.ResponseWriter, r *http.Request) {
	tenant, userID, ok := callerOf(w, r)
	if !ok {
		return
	}

	var req OpenSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	session, err := h.cash.OpenSession(r.Context(), tenant, req.Site, userID)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	SuccessCreated(w, "Caja abierta", session)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantOf(w, r)
	if !ok {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	session, err := h.cash.GetSession(r.Context(), tenant, id)
	if err != nil {
		WriteError(w, r, err)
		return
	}

	Success(w, "", session)
}

func (h *Handler) registerCollection(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantOf(w, r)
	if !ok {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req CollectionRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	collection, err := h.cash.RegisterCollection(r.Context(), tenant, id, req.ToInput())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	SuccessCreated(w, "Cobranza registrada", collection)
}

func (h *Handler) previewClose(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantOf(w, r)
	if !ok {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req CloseRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	res, err := h.cash.PreviewClose(r.Context(), tenant, id, req.ToDeclared())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	Success(w, "", res)
}

func (h *Handler) closeSession(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantOf(w, r)
	if !ok {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		WriteError(w, r, err)
		return
	}

	var req CloseRequest
	if err := decodeJSON(r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	res, err := h.cash.CloseSession(r.Context(), tenant, id, req.ToDeclared())
	if err != nil {
		WriteError(w, r, err)
		return
	}

	Success(w, "Caja cerrada", res)
}
