package store

// Attempt is one local verification attempt, kept so an unattended node
// has an inspectable history even when the core is unreachable.
type Attempt struct {
	ID             int64   `json:"id"`
	ProductID      int64   `json:"product_id"`
	WeightGrams    float64 `json:"weight_grams"`
	PredictedLabel int     `json:"predicted_label"`
	Status         string  `json:"status"`
	Detail         string  `json:"detail,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

// InsertAttempt records a verification attempt. PredictedLabel is -1
// when the attempt failed before classification.
func (db *DB) InsertAttempt(productID int64, weightGrams float64, predictedLabel int, status, detail string) error {
	_, err := db.Exec(`INSERT INTO attempts (product_id, weight_grams, predicted_label, status, detail) VALUES (?, ?, ?, ?, ?)`,
		productID, weightGrams, predictedLabel, status, detail)
	return err
}

// ListRecentAttempts returns the most recent attempts, newest first.
func (db *DB) ListRecentAttempts(limit int) ([]Attempt, error) {
	rows, err := db.Query(`SELECT id, product_id, weight_grams, predicted_label, status, detail, created_at FROM attempts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.ProductID, &a.WeightGrams, &a.PredictedLabel, &a.Status, &a.Detail, &a.CreatedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
