package store

import "time"

// Product is a catalog entry: the expected weight and the label the
// classifier assigns to its appearance.
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	WeightGrams float64   `json:"weight_grams"`
	ModelLabel  int       `json:"model_label"`
	CreatedAt   time.Time `json:"created_at"`
}

// UpsertProduct inserts a product or updates an existing one by name.
func (db *DB) UpsertProduct(name string, weightGrams float64, modelLabel int) (int64, error) {
	_, err := db.Exec(db.Q(`
		INSERT INTO products (name, weight_grams, model_label)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			weight_grams = excluded.weight_grams,
			model_label = excluded.model_label
	`), name, weightGrams, modelLabel)
	if err != nil {
		return 0, err
	}
	var id int64
	err = db.QueryRow(db.Q(`SELECT id FROM products WHERE name=?`), name).Scan(&id)
	return id, err
}

// GetProduct returns the product with the given ID.
func (db *DB) GetProduct(id int64) (*Product, error) {
	var p Product
	var createdAt any
	err := db.QueryRow(db.Q(`
		SELECT id, name, weight_grams, model_label, created_at
		FROM products WHERE id=?
	`), id).Scan(&p.ID, &p.Name, &p.WeightGrams, &p.ModelLabel, &createdAt)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// ListProducts returns the full catalog ordered by ID.
func (db *DB) ListProducts() ([]Product, error) {
	rows, err := db.Query(db.Q(`
		SELECT id, name, weight_grams, model_label, created_at
		FROM products ORDER BY id
	`))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		var createdAt any
		if err := rows.Scan(&p.ID, &p.Name, &p.WeightGrams, &p.ModelLabel, &createdAt); err != nil {
			return nil, err
		}
		p.CreatedAt = parseTime(createdAt)
		products = append(products, p)
	}
	return products, rows.Err()
}
