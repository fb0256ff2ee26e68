package store

import "time"

// Incident is one recorded verification claim. Every claim is recorded,
// correct or not; the table is append-only.
type Incident struct {
	ID             int64     `json:"id"`
	ProductID      *int64    `json:"product_id"`
	DeviceID       *int64    `json:"device_id"`
	ProductName    *string   `json:"product_name"`
	DeviceName     *string   `json:"device_name"`
	WeightGrams    float64   `json:"weight_grams"`
	PredictedLabel int       `json:"predicted_label"`
	Verdict        string    `json:"verdict"`
	CreatedAt      time.Time `json:"created_at"`
}

// InsertIncident appends one verification record.
func (db *DB) InsertIncident(productID, deviceID *int64, weightGrams float64, predictedLabel int, verdict string) (int64, error) {
	if db.driver == "postgres" {
		var id int64
		err := db.QueryRow(db.Q(`
			INSERT INTO incidents (product_id, device_id, weight_grams, predicted_label, verdict)
			VALUES (?, ?, ?, ?, ?) RETURNING id
		`), productID, deviceID, weightGrams, predictedLabel, verdict).Scan(&id)
		return id, err
	}
	res, err := db.Exec(db.Q(`
		INSERT INTO incidents (product_id, device_id, weight_grams, predicted_label, verdict)
		VALUES (?, ?, ?, ?, ?)
	`), productID, deviceID, weightGrams, predictedLabel, verdict)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListRecentIncidents returns the newest incidents first. Product and
// device names are joined in; either can be nil when the referenced row
// has since been deleted.
func (db *DB) ListRecentIncidents(limit int) ([]Incident, error) {
	rows, err := db.Query(db.Q(`
		SELECT i.id, i.product_id, i.device_id, p.name, d.name,
		       i.weight_grams, i.predicted_label, i.verdict, i.created_at
		FROM incidents i
		LEFT JOIN products p ON p.id = i.product_id
		LEFT JOIN devices d ON d.id = i.device_id
		ORDER BY i.id DESC LIMIT ?
	`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var incidents []Incident
	for rows.Next() {
		var inc Incident
		var createdAt any
		if err := rows.Scan(&inc.ID, &inc.ProductID, &inc.DeviceID, &inc.ProductName, &inc.DeviceName,
			&inc.WeightGrams, &inc.PredictedLabel, &inc.Verdict, &createdAt); err != nil {
			return nil, err
		}
		inc.CreatedAt = parseTime(createdAt)
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}

// CountIncidents returns the total number of recorded claims.
func (db *DB) CountIncidents() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM incidents`).Scan(&n)
	return n, err
}
