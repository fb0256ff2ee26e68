// Package validation fuses a claim's weight and predicted label into a
// verdict against the product catalog.
package validation

import (
	"errors"
	"fmt"
	"log"
	"math"

	"checkweigh/core/store"
)

// ErrProductNotFound means the claimed product is not in the catalog.
var ErrProductNotFound = errors.New("product not found")

// Verdict values recorded on incidents and returned to devices.
const (
	VerdictCorrect   = "correct"
	VerdictIncorrect = "incorrect"
)

// Claim is one verification request from a device.
type Claim struct {
	ProductID      int64
	DeviceID       int64
	WeightGrams    float64
	PredictedLabel int
}

// Engine applies the fusion rule: a claim is correct only when the
// predicted label matches the catalog label and the weight sits within
// the tolerance window, inclusive at both ends.
type Engine struct {
	db        *store.DB
	tolerance float64
}

func New(db *store.DB, toleranceGrams float64) *Engine {
	if toleranceGrams <= 0 {
		toleranceGrams = 15
	}
	return &Engine{db: db, tolerance: toleranceGrams}
}

// Tolerance returns the configured window half-width in grams.
func (e *Engine) Tolerance() float64 { return e.tolerance }

// Validate checks one claim and records it. Every claim lands in the
// incident log whatever the verdict; the log is the audit trail of the
// line, not just its failures.
func (e *Engine) Validate(c Claim) (string, error) {
	product, err := e.db.GetProduct(c.ProductID)
	if err != nil {
		if store.IsNotFound(err) {
			return "", fmt.Errorf("%w: id %d", ErrProductNotFound, c.ProductID)
		}
		return "", fmt.Errorf("load product %d: %w", c.ProductID, err)
	}

	verdict := VerdictIncorrect
	if e.isValid(product, c) {
		verdict = VerdictCorrect
	}

	pid, did := c.ProductID, c.DeviceID
	var didPtr *int64
	if did != 0 {
		didPtr = &did
	}
	if _, err := e.db.InsertIncident(&pid, didPtr, c.WeightGrams, c.PredictedLabel, verdict); err != nil {
		return "", fmt.Errorf("record incident: %w", err)
	}
	if verdict == VerdictIncorrect {
		log.Printf("validation: product %d failed (weight=%.1fg expected=%.1fg label=%d expected=%d)",
			product.ID, c.WeightGrams, product.WeightGrams, c.PredictedLabel, product.ModelLabel)
	}
	return verdict, nil
}

func (e *Engine) isValid(p *store.Product, c Claim) bool {
	if c.PredictedLabel != p.ModelLabel {
		return false
	}
	return math.Abs(c.WeightGrams-p.WeightGrams) <= e.tolerance
}
