package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Book struct {
	bun.BaseModel `bun:"table:books"`

	BookID    string    `bun:"book_id,pk" json:"book_id"`
	Title     string    `bun:"title,notnull" json:"title"`
	Author    string    `bun:"author" json:"author"`
	Price     float64   `bun:"price,notnull" json:"price"`
	Stock     int       `bun:"stock,notnull" json:"stock"`
	CreatedAt time.Time `bun:"created_at" json:"created_at"`
}

// LowStockBook is the row shape returned by the low-stock report.
type LowStockBook struct {
	BookID string  `bun:"book_id" json:"book_id"`
	Title  string  `bun:"title" json:"title"`
	Price  float64 `bun:"price" json:"price"`
	Stock  int     `bun:"stock" json:"stock"`
}
