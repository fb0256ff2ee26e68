package www

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"checkweigh/core/modelhub"
	"checkweigh/core/registry"
	"checkweigh/core/store"
	"checkweigh/core/validation"
)

func (h *Handlers) handleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.jsonError(w, "invalid form data", http.StatusBadRequest)
		return
	}
	name := r.FormValue("device_name")
	secret := r.FormValue("shared_secret")

	id, apiKey, err := h.registry.Register(name, secret, r.RemoteAddr)
	if err != nil {
		if errors.Is(err, registry.ErrInvalidName) {
			h.jsonError(w, "missing device_name", http.StatusBadRequest)
			return
		}
		if errors.Is(err, registry.ErrUnauthorized) {
			h.jsonError(w, "invalid shared secret", http.StatusForbidden)
			return
		}
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]any{
		"device_id": id,
		"api_key":   apiKey,
	})
}

func (h *Handlers) handleUnregisterDevice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.jsonError(w, "invalid form data", http.StatusBadRequest)
		return
	}
	name := r.FormValue("device_name")
	apiKey := r.FormValue("api_key")

	if err := h.registry.Unregister(name, apiKey); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			h.jsonError(w, "device not found", http.StatusNotFound)
			return
		}
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if h.devices != nil {
		h.devices.Forget(name)
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

// handleValidate is the claim endpoint. Authentication runs before any
// claim processing; an unauthenticated claim never reaches the incident
// log.
func (h *Handlers) handleValidate(w http.ResponseWriter, r *http.Request) {
	device, err := h.registry.Authenticate(r.Header.Get("Api-Key"))
	if err != nil {
		h.jsonError(w, "invalid api key", http.StatusForbidden)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.jsonError(w, "invalid form data", http.StatusBadRequest)
		return
	}
	productID, err := strconv.ParseInt(r.FormValue("product_id"), 10, 64)
	if err != nil {
		h.jsonError(w, "invalid product_id", http.StatusBadRequest)
		return
	}
	label, err := strconv.Atoi(r.FormValue("predicted_label"))
	if err != nil {
		h.jsonError(w, "invalid predicted_label", http.StatusBadRequest)
		return
	}
	weight, err := strconv.ParseFloat(r.FormValue("weight"), 64)
	if err != nil {
		h.jsonError(w, "invalid weight", http.StatusBadRequest)
		return
	}

	verdict, err := h.validator.Validate(validation.Claim{
		ProductID:      productID,
		DeviceID:       device.ID,
		WeightGrams:    weight,
		PredictedLabel: label,
	})
	if err != nil {
		if errors.Is(err, validation.ErrProductNotFound) {
			h.jsonError(w, "product not found", http.StatusNotFound)
			return
		}
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]string{"result": verdict})
}

func (h *Handlers) handleGetProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.db.ListProducts()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	type entry struct {
		ID          int64   `json:"id"`
		Name        string  `json:"name"`
		WeightGrams float64 `json:"weight_grams"`
	}
	out := make([]entry, 0, len(products))
	for _, p := range products {
		out = append(out, entry{ID: p.ID, Name: p.Name, WeightGrams: p.WeightGrams})
	}
	h.jsonOK(w, out)
}

func (h *Handlers) handleGetModelVersion(w http.ResponseWriter, r *http.Request) {
	version, err := h.hub.Version()
	if err != nil {
		if errors.Is(err, modelhub.ErrNoModel) {
			h.jsonError(w, "no model published", http.StatusNotFound)
			return
		}
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]string{"version": version})
}

func (h *Handlers) handleGetModel(w http.ResponseWriter, r *http.Request) {
	path, err := h.hub.ArtifactPath()
	if err != nil {
		if errors.Is(err, modelhub.ErrNoModel) {
			h.jsonError(w, "no model published", http.StatusNotFound)
			return
		}
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeFile(w, r, path)
}

func (h *Handlers) handleAddProduct(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.jsonError(w, "invalid form data", http.StatusBadRequest)
		return
	}
	if !h.checkSharedSecret(w, r.FormValue("shared_secret")) {
		return
	}
	name := r.FormValue("name")
	if name == "" {
		h.jsonError(w, "missing name", http.StatusBadRequest)
		return
	}
	weight, err := strconv.ParseFloat(r.FormValue("weight_grams"), 64)
	if err != nil || weight <= 0 {
		h.jsonError(w, "invalid weight_grams", http.StatusBadRequest)
		return
	}
	label, err := strconv.Atoi(r.FormValue("model_label"))
	if err != nil {
		h.jsonError(w, "invalid model_label", http.StatusBadRequest)
		return
	}

	id, err := h.db.UpsertProduct(name, weight, label)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.db.AppendAudit("product", id, "upsert", "", name, "provisioning"); err != nil {
		log.Printf("www: audit add_product: %v", err)
	}
	h.jsonOK(w, map[string]any{"id": id})
}

func (h *Handlers) handleResetDevices(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.jsonError(w, "invalid form data", http.StatusBadRequest)
		return
	}
	n, err := h.registry.Reset(r.FormValue("shared_secret"))
	if err != nil {
		if errors.Is(err, registry.ErrUnauthorized) {
			h.jsonError(w, "invalid shared secret", http.StatusForbidden)
			return
		}
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if h.devices != nil {
		h.devices.Reset()
	}
	h.jsonOK(w, map[string]int64{"removed": n})
}

func (h *Handlers) handleRecentIncidents(w http.ResponseWriter, r *http.Request) {
	count := 10
	if s := r.URL.Query().Get("count"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.jsonError(w, "invalid count", http.StatusBadRequest)
			return
		}
		count = n
	}
	incidents, err := h.db.ListRecentIncidents(count)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if incidents == nil {
		incidents = []store.Incident{}
	}
	h.jsonOK(w, incidents)
}

func (h *Handlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, map[string]string{"status": "ok"})
}

// checkSharedSecret validates the provisioning secret via the registry's
// Reset-style gate. Writes the error response itself on failure.
func (h *Handlers) checkSharedSecret(w http.ResponseWriter, secret string) bool {
	if !h.registry.CheckSecret(secret) {
		h.jsonError(w, "invalid shared secret", http.StatusForbidden)
		return false
	}
	return true
}
