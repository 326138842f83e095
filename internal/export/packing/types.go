// Package packing holds the packing-list computation engine: unit conversion and
// weight calculation, container/manifest aggregation, reconciliation against the
// proforma invoice, and the immutable editor state those engines operate on.
//
// Everything in this package is synchronous and free of I/O.
package packing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrLastContainer    = errors.New("packing: a packing list must keep at least one container")
	ErrIndexOutOfRange  = errors.New("packing: index out of range")
	ErrUnknownField     = errors.New("packing: unknown product line field")
	ErrUnknownProduct   = errors.New("packing: product is not on the invoice")
	ErrNegativeQuantity = errors.New("packing: value must not be negative")
	ErrInvalidValue     = errors.New("packing: invalid value")
)

// Unit is the unit of measure a product line is invoiced and packed in.
type Unit string

const (
	UnitBox    Unit = "Box"
	UnitPieces Unit = "Pieces"
)

// ParseUnit accepts the spellings used on invoices ("box", "Boxes", "pcs", ...).
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "box", "boxes", "ctn", "carton", "cartons":
		return UnitBox, nil
	case "pieces", "piece", "pcs", "pc", "nos":
		return UnitPieces, nil
	}
	return "", fmt.Errorf("%w: unit %q", ErrInvalidValue, s)
}

// SealType identifies who sealed a container.
type SealType string

const (
	SealSelf SealType = "self-seal"
	SealLine SealType = "line-seal"
)

// ParseSealType accepts both the canonical values and the labels the old editor stored.
func ParseSealType(s string) (SealType, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "-", "_", "-").Replace(norm)
	switch norm {
	case "", "self-seal", "self":
		return SealSelf, nil
	case "line-seal", "line":
		return SealLine, nil
	}
	return "", fmt.Errorf("%w: seal type %q", ErrInvalidValue, s)
}

// CatalogMeta is the packaging data of a catalog product. A nil field means the
// catalog does not define it and the packaging profile default applies.
type CatalogMeta struct {
	UnitWeightGrams      *float64 `json:"unit_weight_g,omitempty"`
	PiecesPerPack        *float64 `json:"pieces_per_pack,omitempty"`
	PacksPerBox          *float64 `json:"packs_per_box,omitempty"`
	PackagingWeightGrams *float64 `json:"packaging_weight_g,omitempty"`
	PackagingVolumeM3    *float64 `json:"packaging_volume_m3,omitempty"`
}

// InvoiceLineData is the economic data of the invoice line a product line packs.
type InvoiceLineData struct {
	InvoicedQty   float64 `json:"invoiced_qty"`
	TotalWeightKg float64 `json:"total_weight_kg"`
}

// InvoiceLine is one line of the proforma invoice as seen by the packing editor.
type InvoiceLine struct {
	ProductID     string      `json:"product_id"`
	ProductName   string      `json:"product_name"`
	HSNCode       string      `json:"hsn_code"`
	Unit          Unit        `json:"unit"`
	InvoicedQty   float64     `json:"invoiced_qty"`
	TotalWeightKg float64     `json:"total_weight_kg"`
	Meta          CatalogMeta `json:"catalog"`
}

// InvoiceSnapshot is the part of a proforma invoice the packing engine needs.
type InvoiceSnapshot struct {
	ID             string        `json:"id"`
	Code           string        `json:"code"`
	Buyer          string        `json:"buyer"`
	Seller         string        `json:"seller"`
	ContainerCount *int          `json:"container_count,omitempty"`
	Lines          []InvoiceLine `json:"lines"`
}

// Line returns the first invoice line for a product name, matched
// case-insensitively. Reconcile sums quantities over all lines of that name.
func (s InvoiceSnapshot) Line(productName string) (InvoiceLine, bool) {
	want := strings.TrimSpace(productName)
	for _, l := range s.Lines {
		if strings.EqualFold(strings.TrimSpace(l.ProductName), want) {
			return l, true
		}
	}
	return InvoiceLine{}, false
}
