package models

import (
	"time"
)

// CodeAlphabet is the character set used for generated promo codes.
// Ambiguous glyphs (0/O and 1/I) are excluded so codes survive being
// read aloud or copied by hand.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// DefaultCodeLength is the number of random characters appended after
// the optional prefix.
const DefaultCodeLength = 8

// MaxGenerateQuantity bounds a single generation run.
const MaxGenerateQuantity = 1000

// PromoCode is a single- or multi-use enrollment token for one class.
// Eligibility is always recomputed from UsedCount/UsageLimit/ExpiryDate;
// there is no stored status column. StudentID records the enrollment
// produced by the redemption that consumed the last remaining use.
type PromoCode struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	Code   string `json:"code" gorm:"uniqueIndex;not null;size:50" validate:"required,max=50"`
	Prefix string `json:"prefix" gorm:"size:20"`

	// References (not foreign keys: dangling values are tolerated)
	ClassID   uint   `json:"class_id" gorm:"not null;index"`
	TeacherID string `json:"teacher_id" gorm:"index;size:255"`

	// Consumption bookkeeping
	UsageLimit int        `json:"usage_limit" gorm:"not null;default:1"`
	UsedCount  int        `json:"used_count" gorm:"not null;default:0"`
	StudentID  *uint      `json:"student_id"`
	UsedAt     *time.Time `json:"used_at"`

	ExpiryDate *time.Time `json:"expiry_date"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PromoCode) TableName() string {
	return "school_promo_codes"
}

// IsExhausted reports whether all uses have been consumed.
func (p *PromoCode) IsExhausted() bool {
	return p.UsedCount >= p.UsageLimit
}

// IsExpired reports whether the expiry date is set and strictly in the
// past relative to now, at day granularity.
func (p *PromoCode) IsExpired(now time.Time) bool {
	if p.ExpiryDate == nil {
		return false
	}
	expiry := time.Date(p.ExpiryDate.Year(), p.ExpiryDate.Month(), p.ExpiryDate.Day(), 23, 59, 59, 0, p.ExpiryDate.Location())
	return now.After(expiry)
}
