package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MenuCategory groups menu items
type MenuCategory struct {
	TenantModel
	Name      string `json:"name" db:"name"`
	SortOrder int    `json:"sortOrder" db:"sort_order"`
}

// MenuItem is a dish or drink offered by a restaurant
type MenuItem struct {
	TenantModel
	CategoryID  *uuid.UUID      `json:"categoryId,omitempty" db:"category_id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	ImageURL    string          `json:"imageUrl,omitempty" db:"image_url"`
	Available   bool            `json:"available" db:"available"`
	Featured    bool            `json:"featured" db:"featured"`
}
