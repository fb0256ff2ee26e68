// Package capture runs the verification flow: weight snapshot, image
// capture, classification, claim submission.
package capture

import (
	"context"
	"log"
	"math"

	"checkweigh/edge/camera"
	"checkweigh/edge/classify"
	"checkweigh/edge/store"
)

// WeightSource provides the latest sampled weight.
type WeightSource interface {
	CurrentWeight() float64
}

// Submitter submits a claim to the core and returns its verdict.
type Submitter interface {
	Validate(ctx context.Context, apiKey string, productID int64, predictedLabel int, weightGrams float64) (string, error)
}

// Keyer provides the device's current API key.
type Keyer interface {
	APIKey() string
}

// Result is the status object returned to the requester. Failures carry
// a short diagnostic instead of propagating a transport error.
type Result struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Orchestrator wires the capture pipeline. Each verification request is
// a single best-effort attempt; retrying is the caller's policy.
type Orchestrator struct {
	weights    WeightSource
	camera     camera.Camera
	classifier classify.Classifier
	submitter  Submitter
	keyer      Keyer
	db         *store.DB
}

// New creates an orchestrator. db may be nil when no local attempt log
// is wanted.
func New(weights WeightSource, cam camera.Camera, cls classify.Classifier, sub Submitter, keyer Keyer, db *store.DB) *Orchestrator {
	return &Orchestrator{
		weights:    weights,
		camera:     cam,
		classifier: cls,
		submitter:  sub,
		keyer:      keyer,
		db:         db,
	}
}

// HandleVerification runs one verification attempt for the product.
// The weight snapshot is taken before the slow capture/classify/submit
// steps; the shared lock is never held across them.
func (o *Orchestrator) HandleVerification(ctx context.Context, productID int64) Result {
	// Absolute value and one-decimal rounding happen here, at the
	// presentation boundary; the sampled weight itself may be negative.
	weight := round1(math.Abs(o.weights.CurrentWeight()))

	img, err := o.camera.Capture(ctx)
	if err != nil {
		return o.fail(productID, weight, -1, "capture image: "+err.Error())
	}

	label, err := o.classifier.Classify(img)
	if err != nil {
		return o.fail(productID, weight, -1, "classify image: "+err.Error())
	}

	verdict, err := o.submitter.Validate(ctx, o.keyer.APIKey(), productID, label, weight)
	if err != nil {
		return o.fail(productID, weight, label, "submit claim: "+err.Error())
	}

	o.record(productID, weight, label, verdict, "")
	return Result{Status: verdict}
}

func (o *Orchestrator) fail(productID int64, weight float64, label int, detail string) Result {
	log.Printf("capture: verification failed (product=%d): %s", productID, detail)
	o.record(productID, weight, label, "error", detail)
	return Result{Status: "error", Detail: detail}
}

func (o *Orchestrator) record(productID int64, weight float64, label int, status, detail string) {
	if o.db == nil {
		return
	}
	if err := o.db.InsertAttempt(productID, weight, label, status, detail); err != nil {
		log.Printf("capture: record attempt: %v", err)
	}
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
