package www

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"checkweigh/edge/coreapi"
)

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// handleWeight reports the current stabilized weight. Display values are
// magnitude only, rounded to one decimal place.
func (h *Handlers) handleWeight(w http.ResponseWriter, r *http.Request) {
	grams := math.Abs(h.scale.CurrentWeight())
	grams = math.Round(grams*10) / 10
	writeJSON(w, map[string]float64{"weight": grams})
}

func (h *Handlers) handleSendProduct(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	productID, err := strconv.ParseInt(r.Form.Get("product_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product_id")
		return
	}

	result := h.orch.HandleVerification(r.Context(), productID)
	writeJSON(w, result)
}

func (h *Handlers) handleTare(w http.ResponseWriter, r *http.Request) {
	if err := h.scale.Tare(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleGetProducts proxies the central product catalog so operator UIs
// only ever talk to the local device.
func (h *Handlers) handleGetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.core.Products(r.Context())
	if err != nil {
		if errors.Is(err, coreapi.ErrUnauthorized) {
			writeError(w, http.StatusForbidden, "device not authorized")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, products)
}

func (h *Handlers) handleAttempts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("count"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid count")
			return
		}
		limit = n
	}
	attempts, err := h.db.ListRecentAttempts(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, attempts)
}

func (h *Handlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status": "ok",
		"device": h.identity.DeviceName(),
	})
}
