package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Ad struct {
	ID          int32           `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Status      string          `json:"status"`
	UserEmail   string          `json:"user_email"`
	UserPhone   string          `json:"user_phone"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	TopAd       bool            `json:"top_ad"`
	Images      []string        `json:"images"`
}

// AdContent carries the caller-supplied fields of a new ad; id, status
// and timestamps are assigned by the repository.
type AdContent struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	UserEmail   string          `json:"user_email"`
	UserPhone   string          `json:"user_phone"`
	TopAd       bool            `json:"top_ad"`
}

// AdFilter is a sparse set of predicates combined with AND. Absent
// fields impose no constraint. Price and timestamp bounds arrive as
// strings and are parsed by the predicate builder, so a malformed
// literal fails before any query is issued.
type AdFilter struct {
	TitleContains       *string `json:"title_contains,omitempty"`
	DescriptionContains *string `json:"description_contains,omitempty"`
	PriceLT             *string `json:"price_lt,omitempty"`
	PriceGT             *string `json:"price_gt,omitempty"`
	UpdatedAtLT         *string `json:"updated_at_lt,omitempty"`
	UpdatedAtGT         *string `json:"updated_at_gt,omitempty"`
}

type Image struct {
	ID       string `json:"id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Bytes    []byte `json:"-"`
}
