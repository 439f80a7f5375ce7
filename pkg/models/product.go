package models

import "time"

// VariantKind distinguishes a base product from its tuned or filtered
// siblings within a family.
type VariantKind string

const (
	VariantKindBase   VariantKind = "base"
	VariantKindTuning VariantKind = "tuning"
	VariantKindSwitch VariantKind = "switch"
	VariantKindFilter VariantKind = "filter"
)

// Product is a canonical catalog entry. Listings from external marketplaces
// are reconciled against these rows.
type Product struct {
	ID            string      `json:"id" db:"id"`
	Name          string      `json:"name" db:"name"`
	Brand         string      `json:"brand" db:"brand"`
	CategoryID    string      `json:"category_id" db:"category_id"`
	FamilyID      *string     `json:"family_id,omitempty" db:"family_id"`
	VariantKind   VariantKind `json:"variant_kind" db:"variant_kind"`
	QualityScore  *float64    `json:"quality_score,omitempty" db:"quality_score"`
	IsBestVariant bool        `json:"is_best_variant" db:"is_best_variant"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
	DeletedAt     *time.Time  `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Candidate is the slice of a product the matching engine needs: an
// identifier and the display title it will be compared against.
type Candidate struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// FamilyMember is a product viewed through its variant family, carrying only
// the fields the best-variant resolver reads and writes.
type FamilyMember struct {
	ID            string      `json:"id" db:"id"`
	FamilyID      string      `json:"family_id" db:"family_id"`
	VariantKind   VariantKind `json:"variant_kind" db:"variant_kind"`
	QualityScore  *float64    `json:"quality_score,omitempty" db:"quality_score"`
	IsBestVariant bool        `json:"is_best_variant" db:"is_best_variant"`
}

// CreateProductRequest is the request to create a product
type CreateProductRequest struct {
	Name         string      `json:"name" validate:"required"`
	Brand        string      `json:"brand" validate:"required"`
	CategoryID   string      `json:"category_id" validate:"required"`
	FamilyID     *string     `json:"family_id,omitempty"`
	VariantKind  VariantKind `json:"variant_kind" validate:"omitempty,oneof=base tuning switch filter"`
	QualityScore *float64    `json:"quality_score,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// UpdateProductRequest is the request to update a product
type UpdateProductRequest struct {
	Name         *string      `json:"name,omitempty"`
	Brand        *string      `json:"brand,omitempty"`
	CategoryID   *string      `json:"category_id,omitempty"`
	FamilyID     *string      `json:"family_id,omitempty"`
	VariantKind  *VariantKind `json:"variant_kind,omitempty" validate:"omitempty,oneof=base tuning switch filter"`
	QualityScore *float64     `json:"quality_score,omitempty" validate:"omitempty,gte=0,lte=100"`
}
