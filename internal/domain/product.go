package domain

import "time"

type Product struct {
	ID          int64     `json:"id"`
	Article     string    `json:"article"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	OldPrice    *int64    `json:"old_price"`
	Discount    int       `json:"discount"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory"`
	Brand       string    `json:"brand"`
	Size        string    `json:"size"`
	Color       string    `json:"color"`
	Material    string    `json:"material"`
	Country     string    `json:"country"`
	Season      string    `json:"season"`
	ImageURL    string    `json:"image_url"`
	Images      []string  `json:"images"`
	Stock       int       `json:"stock"`
	Reserved    int       `json:"reserved"`
	IsNew       bool      `json:"is_new"`
	IsHit       bool      `json:"is_hit"`
	IsExclusive bool      `json:"is_exclusive"`
	IsLimited   bool      `json:"is_limited"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Sellable reports whether qty units can be ordered right now.
func (p *Product) Sellable(qty int) bool {
	return p != nil && p.IsActive && p.Stock >= qty
}
