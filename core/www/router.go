package www

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"checkweigh/core/devstate"
	"checkweigh/core/modelhub"
	"checkweigh/core/registry"
	"checkweigh/core/store"
	"checkweigh/core/validation"
)

// ModelNotifier announces a newly published model to the fleet. May be
// nil when no broker is configured.
type ModelNotifier interface {
	PublishModelNotice(version string) error
}

type Handlers struct {
	db        *store.DB
	registry  *registry.Registry
	validator *validation.Engine
	hub       *modelhub.Hub
	devices   *devstate.Manager
	notifier  ModelNotifier
	sessions  *sessions.CookieStore
}

func NewRouter(db *store.DB, reg *registry.Registry, val *validation.Engine, hub *modelhub.Hub, devices *devstate.Manager, notifier ModelNotifier, sessionSecret string) http.Handler {
	h := &Handlers{
		db:        db,
		registry:  reg,
		validator: val,
		hub:       hub,
		devices:   devices,
		notifier:  notifier,
		sessions:  newSessionStore(sessionSecret),
	}

	h.ensureDefaultAdmin(db)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// Device-facing API
	r.Post("/register_device", h.handleRegisterDevice)
	r.Delete("/unregister_device", h.handleUnregisterDevice)
	r.Post("/validate", h.handleValidate)
	r.Get("/get_products", h.handleGetProducts)
	r.Get("/get_model_version", h.handleGetModelVersion)
	r.Get("/get_model", h.handleGetModel)

	// Provisioning endpoints, gated by the shared secret
	r.Post("/add_product", h.handleAddProduct)
	r.Post("/reset_devices", h.handleResetDevices)

	// Reporting
	r.Get("/incidents/last", h.handleRecentIncidents)
	r.Get("/healthz", h.handleHealthz)

	// Admin session
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/incidents", h.adminIncidents)
		r.Get("/devices", h.adminDevices)
		r.Get("/audit", h.adminAudit)
		r.Post("/model", h.adminPublishModel)
		r.Post("/password", h.adminChangePassword)
	})

	return r
}

func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.jsonError(w, "invalid form data", http.StatusBadRequest)
		return
	}
	username := r.FormValue("username")
	password := r.FormValue("password")

	user, err := h.db.GetAdminUser(username)
	if err != nil || !checkPassword(user.PasswordHash, password) {
		h.jsonError(w, "invalid username or password", http.StatusUnauthorized)
		return
	}

	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = true
	session.Values["username"] = username
	if err := session.Save(r, w); err != nil {
		log.Printf("auth: session save error: %v", err)
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := h.sessions.Get(r, sessionName)
	session.Values["authenticated"] = false
	delete(session.Values, "username")
	if err := session.Save(r, w); err != nil {
		log.Printf("auth: session save error: %v", err)
	}
	h.jsonOK(w, map[string]string{"status": "ok"})
}

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
