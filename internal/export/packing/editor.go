package packing

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// LineField names an editable field of a product line.
type LineField string

const (
	FieldPackedQty    LineField = "packed_qty"
	FieldUnit         LineField = "unit"
	FieldHSNCode      LineField = "hsn_code"
	FieldBoxes        LineField = "boxes"
	FieldNetWeight    LineField = "net_weight"
	FieldGrossWeight  LineField = "gross_weight"
	FieldMeasurement  LineField = "measurement"
	FieldPerBoxWeight LineField = "per_box_weight"
)

// Known reports whether f is one of the editable fields.
func (f LineField) Known() bool {
	switch f {
	case FieldPackedQty, FieldUnit, FieldHSNCode, FieldBoxes,
		FieldNetWeight, FieldGrossWeight, FieldMeasurement, FieldPerBoxWeight:
		return true
	}
	return false
}

// ContainerPatch changes the identification of a container. Nil fields are kept.
type ContainerPatch struct {
	Number     *string `json:"container_number"`
	SealType   *string `json:"seal_type"`
	SealNumber *string `json:"seal_number"`
}

// HeaderPatch changes header fields. Nil fields are kept.
type HeaderPatch struct {
	ExportRefNo   *string `json:"export_ref_no"`
	ExportRefDate *string `json:"export_ref_date"`
	Buyer         *string `json:"buyer"`
	Seller        *string `json:"seller"`
	Notes         *string `json:"notes"`
	IssueDate     *string `json:"issue_date"`
}

// WithHeader applies a header patch. Dates are YYYY-MM-DD; an empty string clears them.
func (m Manifest) WithHeader(p HeaderPatch) (Manifest, error) {
	out := m.clone()
	h := &out.Header
	if p.ExportRefNo != nil {
		h.ExportRefNo = strings.TrimSpace(*p.ExportRefNo)
	}
	if p.Buyer != nil {
		h.Buyer = *p.Buyer
	}
	if p.Seller != nil {
		h.Seller = *p.Seller
	}
	if p.Notes != nil {
		h.Notes = *p.Notes
	}
	if p.ExportRefDate != nil {
		d, err := parseDate(*p.ExportRefDate)
		if err != nil {
			return m, err
		}
		h.ExportRefDate = d
	}
	if p.IssueDate != nil {
		d, err := parseDate(*p.IssueDate)
		if err != nil {
			return m, err
		}
		h.IssueDate = d
	}
	return out, nil
}

// AddContainer appends an empty self-sealed container.
func (m Manifest) AddContainer() Manifest {
	out := m.clone()
	out.Containers = append(out.Containers, newContainer())
	return RecomputeTotals(out)
}

// RemoveContainer drops container ci. The last remaining container cannot be removed.
func (m Manifest) RemoveContainer(ci int) (Manifest, error) {
	if err := m.checkContainer(ci); err != nil {
		return m, err
	}
	if len(m.Containers) == 1 {
		return m, ErrLastContainer
	}
	out := m.clone()
	out.Containers = append(out.Containers[:ci], out.Containers[ci+1:]...)
	return RecomputeTotals(out), nil
}

// UpdateContainer changes the number and seal of container ci.
func (m Manifest) UpdateContainer(ci int, p ContainerPatch) (Manifest, error) {
	if err := m.checkContainer(ci); err != nil {
		return m, err
	}
	out := m.clone()
	c := &out.Containers[ci]
	if p.Number != nil {
		c.Number = strings.ToUpper(strings.TrimSpace(*p.Number))
	}
	if p.SealType != nil {
		st, err := ParseSealType(*p.SealType)
		if err != nil {
			return m, err
		}
		c.SealType = st
	}
	if p.SealNumber != nil {
		c.SealNumber = strings.TrimSpace(*p.SealNumber)
	}
	return out, nil
}

// AddProductLine appends a line for productName to container ci. The product is
// resolved by name against the invoice; its invoiced quantity, HSN code, unit
// and catalog data are copied onto the line.
func (m Manifest) AddProductLine(ci int, inv InvoiceSnapshot, productName string, profile PackagingProfile) (Manifest, error) {
	if err := m.checkContainer(ci); err != nil {
		return m, err
	}
	il, ok := inv.Line(productName)
	if !ok {
		return m, fmt.Errorf("%w: %q", ErrUnknownProduct, productName)
	}
	line := LineFromInvoice(il)
	line = recompute(line, profile)

	out := m.clone()
	out.Containers[ci].Lines = append(out.Containers[ci].Lines, line)
	return RecomputeTotals(out), nil
}

// LineFromInvoice builds an unpacked product line from an invoice line.
func LineFromInvoice(il InvoiceLine) ProductLine {
	unit := il.Unit
	if unit == "" {
		unit = UnitBox
	}
	return ProductLine{
		ProductID:   il.ProductID,
		ProductName: il.ProductName,
		HSNCode:     il.HSNCode,
		Unit:        unit,
		InvoicedQty: il.InvoicedQty,
		Source:      InvoiceLineData{InvoicedQty: il.InvoicedQty, TotalWeightKg: il.TotalWeightKg},
		Meta:        il.Meta,
	}
}

// RemoveProductLine drops line li of container ci.
func (m Manifest) RemoveProductLine(ci, li int) (Manifest, error) {
	if err := m.checkLine(ci, li); err != nil {
		return m, err
	}
	out := m.clone()
	lines := out.Containers[ci].Lines
	out.Containers[ci].Lines = append(lines[:li], lines[li+1:]...)
	return RecomputeTotals(out), nil
}

// EditProductLine sets one field of line li in container ci and returns the
// manifest with the line and all totals recomputed.
//
// packed_qty and unit rerun ComputeLine and discard overrides. boxes and
// per_box_weight re-derive net and gross weight. net_weight, gross_weight and
// measurement are stored as typed and flagged as overridden; they never flow
// back into boxes or per_box_weight.
func (m Manifest) EditProductLine(ci, li int, field LineField, v any, profile PackagingProfile) (Manifest, error) {
	if err := m.checkLine(ci, li); err != nil {
		return m, err
	}
	line := m.Containers[ci].Lines[li]

	switch field {
	case FieldHSNCode:
		s, err := text(v)
		if err != nil {
			return m, err
		}
		line.HSNCode = strings.TrimSpace(s)
	case FieldUnit:
		s, err := text(v)
		if err != nil {
			return m, err
		}
		u, err := ParseUnit(s)
		if err != nil {
			return m, err
		}
		line.Unit = u
		line = recompute(line, profile)
	case FieldPackedQty, FieldBoxes, FieldPerBoxWeight, FieldNetWeight, FieldGrossWeight, FieldMeasurement:
		n, err := number(v)
		if err != nil {
			return m, err
		}
		line = editNumeric(line, field, n, profile)
	default:
		return m, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	out := m.clone()
	out.Containers[ci].Lines[li] = line
	return RecomputeTotals(out), nil
}

func editNumeric(line ProductLine, field LineField, n float64, profile PackagingProfile) ProductLine {
	switch field {
	case FieldPackedQty:
		line.PackedQty = n
		return recompute(line, profile)
	case FieldBoxes:
		line.Boxes = round4(n)
		line = forward(line, profile)
		if !line.Overrides.Volume {
			line.Volume = round4(line.Boxes * line.Meta.BoxVolumeM3(profile))
		}
	case FieldPerBoxWeight:
		line.PerBoxWeight = round2(n)
		line.Overrides.PerBoxWeight = true
		line = forward(line, profile)
	case FieldNetWeight:
		line.NetWeight = round2(n)
		line.Overrides.NetWeight = true
	case FieldGrossWeight:
		line.GrossWeight = round2(n)
		line.Overrides.GrossWeight = true
	case FieldMeasurement:
		line.Volume = round4(n)
		line.Overrides.Volume = true
	}
	return line
}

// recompute reruns the calculator for the line's current inputs.
func recompute(line ProductLine, profile PackagingProfile) ProductLine {
	r := ComputeLine(line.PackedQty, line.Unit, line.Source, line.Meta, profile)
	line.Boxes = r.Boxes
	line.NetWeight = r.NetWeight
	line.GrossWeight = r.GrossWeight
	line.Volume = r.Volume
	line.PerBoxWeight = r.PerBoxWeight
	line.Overrides = Overrides{}
	return line
}

// forward re-derives net and gross weight from boxes and per-box weight.
// A computed per-box weight is used unrounded so that the same box count gives
// the same weights as the last computation.
func forward(line ProductLine, profile PackagingProfile) ProductLine {
	perBox := line.PerBoxWeight
	if !line.Overrides.PerBoxWeight {
		if exact := perBoxNetWeight(line.PackedQty, line.Unit, line.Source, line.Meta, profile); round2(exact) == perBox {
			perBox = exact
		}
	}
	line.NetWeight, line.GrossWeight = Rederive(line.Boxes, perBox, line.Meta, profile)
	line.Overrides.NetWeight = false
	line.Overrides.GrossWeight = false
	return line
}

func (m Manifest) checkContainer(ci int) error {
	if ci < 0 || ci >= len(m.Containers) {
		return fmt.Errorf("%w: container %d", ErrIndexOutOfRange, ci)
	}
	return nil
}

func (m Manifest) checkLine(ci, li int) error {
	if err := m.checkContainer(ci); err != nil {
		return err
	}
	if li < 0 || li >= len(m.Containers[ci].Lines) {
		return fmt.Errorf("%w: line %d of container %d", ErrIndexOutOfRange, li, ci)
	}
	return nil
}

func number(v any) (float64, error) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidValue, x)
		}
		n = f
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidValue, x)
		}
		n = f
	default:
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, v)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidValue, n)
	}
	if n < 0 {
		return 0, ErrNegativeQuantity
	}
	return n, nil
}

func text(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case json.Number:
		return x.String(), nil
	case nil:
		return "", nil
	}
	return "", fmt.Errorf("%w: %v", ErrInvalidValue, v)
}

func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("%w: date %q", ErrInvalidValue, s)
	}
	return &t, nil
}
