package www

import (
	"net/http"

	"checkweigh/edge/capture"
	"checkweigh/edge/coreapi"
	"checkweigh/edge/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// WeightReader exposes the sampler methods the HTTP layer needs.
type WeightReader interface {
	CurrentWeight() float64
	Tare() error
}

// Identity exposes the credential state the HTTP layer needs.
type Identity interface {
	APIKey() string
	DeviceName() string
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	scale    WeightReader
	orch     *capture.Orchestrator
	core     *coreapi.Client
	identity Identity
	db       *store.DB
}

// NewRouter creates the chi router for the edge device API.
func NewRouter(scale WeightReader, orch *capture.Orchestrator, core *coreapi.Client, id Identity, db *store.DB) http.Handler {
	h := &Handlers{
		scale:    scale,
		orch:     orch,
		core:     core,
		identity: id,
		db:       db,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/weight", h.handleWeight)
	r.Post("/send_product", h.handleSendProduct)
	r.Post("/tare", h.handleTare)
	r.Get("/get_products", h.handleGetProducts)
	r.Get("/attempts", h.handleAttempts)
	r.Get("/healthz", h.handleHealthz)

	return r
}
