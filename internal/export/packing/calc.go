package packing

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// PackagingProfile holds the packaging figures used when the catalog does not
// define them for a product.
type PackagingProfile struct {
	BoxWeightKg   float64 `json:"box_weight_kg" mapstructure:"box_weight_kg"`
	BoxVolumeM3   float64 `json:"box_volume_m3" mapstructure:"box_volume_m3"`
	PiecesPerPack float64 `json:"pieces_per_pack" mapstructure:"pieces_per_pack"`
	PacksPerBox   float64 `json:"packs_per_box" mapstructure:"packs_per_box"`
}

// DefaultPackagingProfile is the standard export carton.
var DefaultPackagingProfile = PackagingProfile{
	BoxWeightKg:   0.7,
	BoxVolumeM3:   0.0055,
	PiecesPerPack: 50,
	PacksPerBox:   40,
}

// Validate reports the first unusable figure of the profile. Every figure must
// be positive; zero means unset to OrDefault.
func (p PackagingProfile) Validate() error {
	switch {
	case p.BoxWeightKg <= 0:
		return fmt.Errorf("%w: box weight %v", ErrInvalidValue, p.BoxWeightKg)
	case p.BoxVolumeM3 <= 0:
		return fmt.Errorf("%w: box volume %v", ErrInvalidValue, p.BoxVolumeM3)
	case p.PiecesPerPack <= 0:
		return fmt.Errorf("%w: pieces per pack %v", ErrInvalidValue, p.PiecesPerPack)
	case p.PacksPerBox <= 0:
		return fmt.Errorf("%w: packs per box %v", ErrInvalidValue, p.PacksPerBox)
	}
	return nil
}

// OrDefault fills the zero fields of p from DefaultPackagingProfile.
func (p PackagingProfile) OrDefault() PackagingProfile {
	d := DefaultPackagingProfile
	if p.BoxWeightKg == 0 {
		p.BoxWeightKg = d.BoxWeightKg
	}
	if p.BoxVolumeM3 == 0 {
		p.BoxVolumeM3 = d.BoxVolumeM3
	}
	if p.PiecesPerPack == 0 {
		p.PiecesPerPack = d.PiecesPerPack
	}
	if p.PacksPerBox == 0 {
		p.PacksPerBox = d.PacksPerBox
	}
	return p
}

// LineResult is the derived physical data of one product line.
type LineResult struct {
	Boxes        float64 `json:"boxes"`
	NetWeight    float64 `json:"net_weight"`
	GrossWeight  float64 `json:"gross_weight"`
	Volume       float64 `json:"volume"`
	PerBoxWeight float64 `json:"per_box_weight"`
}

// ComputeLine converts a packed quantity into boxes, weights and volume.
//
// Box lines take their net weight per box from the invoice (total weight over
// invoiced quantity). Pieces lines are boxed by the catalog packaging hierarchy
// and weighed by the catalog unit weight. Weights are rounded to 2 decimals and
// volume to 4.
func ComputeLine(packedQty float64, unit Unit, inv InvoiceLineData, meta CatalogMeta, profile PackagingProfile) LineResult {
	perBox := perBoxNetWeight(packedQty, unit, inv, meta, profile)
	if !isPacked(packedQty) {
		return LineResult{PerBoxWeight: round2(perBox)}
	}

	var boxes, net float64
	switch unit {
	case UnitPieces:
		boxes = math.Ceil(packedQty / meta.PiecesPerBox(profile))
		net = packedQty * value(meta.UnitWeightGrams) / 1000
	default:
		boxes = packedQty
		net = packedQty * perBox
	}

	return LineResult{
		Boxes:        round4(boxes),
		NetWeight:    round2(net),
		GrossWeight:  round2(net + boxes*meta.BoxWeightKg(profile)),
		Volume:       round4(boxes * meta.BoxVolumeM3(profile)),
		PerBoxWeight: round2(perBox),
	}
}

// Rederive recomputes net and gross weight from a box count and a per-box net
// weight. It is the forward dependency used when a user edits either of them.
func Rederive(boxes, perBoxWeight float64, meta CatalogMeta, profile PackagingProfile) (net, gross float64) {
	n := boxes * perBoxWeight
	return round2(n), round2(n + boxes*meta.BoxWeightKg(profile))
}

// BoxWeightKg is the packaging material weight of one box.
func (m CatalogMeta) BoxWeightKg(profile PackagingProfile) float64 {
	if g, ok := positive(m.PackagingWeightGrams); ok {
		return g / 1000
	}
	return profile.BoxWeightKg
}

// BoxVolumeM3 is the outer volume of one box.
func (m CatalogMeta) BoxVolumeM3(profile PackagingProfile) float64 {
	if v, ok := positive(m.PackagingVolumeM3); ok {
		return v
	}
	return profile.BoxVolumeM3
}

// PiecesPerBox is pieces-per-pack times packs-per-box, each defaulted separately.
func (m CatalogMeta) PiecesPerBox(profile PackagingProfile) float64 {
	perPack, ok := positive(m.PiecesPerPack)
	if !ok {
		perPack = profile.PiecesPerPack
	}
	packs, ok := positive(m.PacksPerBox)
	if !ok {
		packs = profile.PacksPerBox
	}
	return perPack * packs
}

// perBoxNetWeight is the unrounded net weight of one box, the value ComputeLine
// rounds into PerBoxWeight. Packed Pieces lines divide by the boxes actually used.
func perBoxNetWeight(packedQty float64, unit Unit, inv InvoiceLineData, meta CatalogMeta, profile PackagingProfile) float64 {
	if unit == UnitPieces && isPacked(packedQty) {
		boxes := math.Ceil(packedQty / meta.PiecesPerBox(profile))
		return packedQty * value(meta.UnitWeightGrams) / 1000 / boxes
	}
	return netWeightPerBox(unit, inv, meta, profile)
}

func isPacked(qty float64) bool {
	return qty > 0 && !math.IsNaN(qty) && !math.IsInf(qty, 0)
}

func netWeightPerBox(unit Unit, inv InvoiceLineData, meta CatalogMeta, profile PackagingProfile) float64 {
	if unit == UnitPieces {
		return meta.PiecesPerBox(profile) * value(meta.UnitWeightGrams) / 1000
	}
	if inv.InvoicedQty > 0 {
		return inv.TotalWeightKg / inv.InvoicedQty
	}
	// invoice carries no quantity: weigh a full box from the catalog instead
	return meta.PiecesPerBox(profile) * value(meta.UnitWeightGrams) / 1000
}

func positive(p *float64) (float64, bool) {
	if p == nil || *p <= 0 || math.IsNaN(*p) {
		return 0, false
	}
	return *p, true
}

func value(p *float64) float64 {
	v, _ := positive(p)
	return v
}

func round2(v float64) float64 { return roundTo(v, 2) }

func round4(v float64) float64 { return roundTo(v, 4) }

func roundTo(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
