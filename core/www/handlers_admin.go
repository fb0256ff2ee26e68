package www

import (
	"log"
	"net/http"
	"strconv"
	"strings"
)

func (h *Handlers) adminIncidents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if s := r.URL.Query().Get("count"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	incidents, err := h.db.ListRecentIncidents(limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, incidents)
}

func (h *Handlers) adminDevices(w http.ResponseWriter, r *http.Request) {
	if h.devices != nil {
		live, err := h.devices.GetAll()
		if err != nil {
			h.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.jsonOK(w, live)
		return
	}
	devices, err := h.db.ListDevices()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, devices)
}

func (h *Handlers) adminAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.db.ListAuditLog(200)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, entries)
}

// adminPublishModel takes a multipart upload (fields: version, file) and
// swaps in the new classifier artifact, then announces it to the fleet.
func (h *Handlers) adminPublishModel(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		h.jsonError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	version := strings.TrimSpace(r.FormValue("version"))
	if version == "" {
		h.jsonError(w, "missing version", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		h.jsonError(w, "missing model file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if err := h.hub.Publish(version, file); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.db.AppendAudit("model", 0, "publish", "", version, h.getUsername(r)); err != nil {
		log.Printf("www: audit model publish: %v", err)
	}
	if h.notifier != nil {
		if err := h.notifier.PublishModelNotice(version); err != nil {
			log.Printf("www: model notice: %v", err)
		}
	}
	h.jsonOK(w, map[string]string{"status": "ok", "version": version})
}

func (h *Handlers) adminChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.jsonError(w, "invalid form data", http.StatusBadRequest)
		return
	}
	current := r.FormValue("current_password")
	next := r.FormValue("new_password")
	if len(next) < 8 {
		h.jsonError(w, "new password too short", http.StatusBadRequest)
		return
	}

	username := h.getUsername(r)
	user, err := h.db.GetAdminUser(username)
	if err != nil || !checkPassword(user.PasswordHash, current) {
		h.jsonError(w, "current password is wrong", http.StatusForbidden)
		return
	}
	hash, err := hashPassword(next)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.db.UpdateAdminPassword(username, hash); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}
