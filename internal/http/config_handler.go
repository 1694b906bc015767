package http

import "net/http"

type ConfigHandler struct {
	payPalClientID string
}

func NewConfigHandler(payPalClientID string) *ConfigHandler {
	return &ConfigHandler{payPalClientID: payPalClientID}
}

// GET /api/config/paypal responds 204 when no client id is configured, which
// hides the payment widget.
func (h *ConfigHandler) PayPal(w http.ResponseWriter, _ *http.Request) {
	if h.payPalClientID == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondJSON(w, http.StatusOK, h.payPalClientID)
}
