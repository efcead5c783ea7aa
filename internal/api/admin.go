package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// RepairResponse reports how many notification records the pass fixed
type RepairResponse struct {
	RecordsFixed int `json:"records_fixed"`
}

// RunRepair handles POST /v1/admin/notifications/repair. The pass is
// idempotent, so triggering it repeatedly is harmless.
func (h *Handler) RunRepair(w http.ResponseWriter, r *http.Request) {
	fixed, err := h.repair.Run(r.Context())
	if err != nil {
		h.logger.Error("notification repair pass failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "repair_error", "Repair pass failed", err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, RepairResponse{RecordsFixed: fixed})
}

// ChatRequest is the body for POST /v1/chatbot
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse carries the model's reply
type ChatResponse struct {
	Reply string `json:"reply"`
}

// Chat handles POST /v1/chatbot, proxying the message to the upstream
// model.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	if h.chatbot == nil {
		h.writeError(w, http.StatusServiceUnavailable, "chatbot_disabled", "Chatbot is not configured", "")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if req.Message == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Message required", "")
		return
	}

	reply, err := h.chatbot.Reply(r.Context(), req.Message)
	if err != nil {
		h.logger.Error("chatbot upstream failed", zap.Error(err))
		h.writeError(w, http.StatusBadGateway, "chatbot_error", "Chatbot upstream failed", "")
		return
	}

	h.writeJSON(w, http.StatusOK, ChatResponse{Reply: reply})
}
