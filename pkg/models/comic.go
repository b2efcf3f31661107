package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	CoverTypePortrait       = "portrait"
	CoverTypeLandscapeLeft  = "landscape_left"
	CoverTypeLandscapeRight = "landscape_right"
)

// Comic is a comic record. EbookPath is relative to the library directory once
// the comic has been imported, and absolute while it is being processed.
type Comic struct {
	bun.BaseModel `bun:"table:comics,alias:c"`

	ID            int       `bun:",pk,nullzero" json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	LibraryID     int       `bun:",nullzero" json:"library_id"`
	Library       *Library  `bun:"rel:belongs-to" json:"library,omitempty"`
	EbookPath     string    `bun:",nullzero" json:"ebook_path"`
	EbookName     string    `bun:",nullzero" json:"ebook_name"`
	CoverPath     *string   `json:"cover_path"`
	CoverType     string    `bun:",nullzero,default:'portrait'" json:"cover_type"`
	PageCount     int       `json:"page_count"`
	WebPFormatted bool      `bun:"webp_formatted" json:"webp_formatted"`

	Title       string     `json:"title"`
	Series      string     `json:"series"`
	Volume      int        `json:"volume"`
	Writer      string     `json:"writer"`
	Penciller   string     `json:"penciller"`
	Colorist    string     `json:"colorist"`
	Editor      string     `json:"editor"`
	LanguageISO string     `bun:"language_iso" json:"language_iso"`
	ISBN        string     `bun:"isbn" json:"isbn"`
	URL         string     `bun:"url" json:"url"`
	Price       float64    `json:"price"`
	Published   *time.Time `json:"published"`
	Category    string     `json:"category"`
	Review      float64    `json:"review"`
}
