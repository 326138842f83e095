package packing

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultTolerance is the quantity difference still treated as an exact match.
const DefaultTolerance = 1e-6

// Status is the result of comparing a packed quantity with the invoiced one.
type Status string

const (
	StatusComplete Status = "COMPLETE"
	StatusOver     Status = "OVER"
	StatusUnder    Status = "UNDER"
)

// Check is a packed-versus-invoiced comparison. Excess is set for OVER,
// Remaining for UNDER.
type Check struct {
	ProductName string  `json:"product_name"`
	Unit        Unit    `json:"unit"`
	Invoiced    float64 `json:"invoiced"`
	Packed      float64 `json:"packed"`
	Status      Status  `json:"status"`
	Excess      float64 `json:"excess,omitempty"`
	Remaining   float64 `json:"remaining,omitempty"`
}

// LineCheck is a Check located in the manifest.
type LineCheck struct {
	Container int `json:"container"`
	Line      int `json:"line"`
	Check
}

// Warning is a non-blocking remark about the manifest as a whole.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const WarnContainerCount = "CONTAINER_COUNT_MISMATCH"

// Report is the advisory reconciliation of a manifest against its invoice.
type Report struct {
	Lines    []LineCheck `json:"lines"`
	Products []Check     `json:"products"`
	Warnings []Warning   `json:"warnings"`
	Complete bool        `json:"complete"`
}

// Classify compares packed with invoiced. Differences within tol count as COMPLETE.
func Classify(packed, invoiced, tol float64) Check {
	c := Check{Invoiced: invoiced, Packed: packed, Status: StatusComplete}
	diff := decimal.NewFromFloat(packed).Sub(decimal.NewFromFloat(invoiced)).Round(6).InexactFloat64()
	switch {
	case math.Abs(diff) <= tol:
	case diff > 0:
		c.Status = StatusOver
		c.Excess = diff
	default:
		c.Status = StatusUnder
		c.Remaining = -diff
	}
	return c
}

// Reconcile classifies every line, every invoiced product (summed across
// containers) and the container count. It never fails.
func Reconcile(m Manifest, inv InvoiceSnapshot, tol float64) Report {
	if tol <= 0 {
		tol = DefaultTolerance
	}
	r := Report{Lines: []LineCheck{}, Products: []Check{}, Warnings: []Warning{}, Complete: true}

	type agg struct {
		name     string
		unit     Unit
		invoiced float64
		packed   decimal.Decimal
	}
	var order []string
	byName := map[string]*agg{}
	track := func(name string, unit Unit, invoiced float64) (*agg, bool) {
		key := strings.ToLower(strings.TrimSpace(name))
		a, ok := byName[key]
		if !ok {
			a = &agg{name: name, unit: unit, invoiced: invoiced}
			byName[key] = a
			order = append(order, key)
		}
		return a, !ok
	}

	// a product listed on several invoice lines is checked against their sum
	for _, il := range inv.Lines {
		if a, created := track(il.ProductName, il.Unit, il.InvoicedQty); !created {
			a.invoiced = decimal.NewFromFloat(a.invoiced).Add(decimal.NewFromFloat(il.InvoicedQty)).InexactFloat64()
		}
	}

	for ci, c := range m.Containers {
		for li, l := range c.Lines {
			chk := Classify(l.PackedQty, l.InvoicedQty, tol)
			chk.ProductName = l.ProductName
			chk.Unit = l.Unit
			r.Lines = append(r.Lines, LineCheck{Container: ci, Line: li, Check: chk})

			a, _ := track(l.ProductName, l.Unit, l.InvoicedQty)
			a.packed = a.packed.Add(decimal.NewFromFloat(l.PackedQty))
		}
	}

	for _, key := range order {
		a := byName[key]
		chk := Classify(a.packed.InexactFloat64(), a.invoiced, tol)
		chk.ProductName = a.name
		chk.Unit = a.unit
		if chk.Status != StatusComplete {
			r.Complete = false
		}
		r.Products = append(r.Products, chk)
	}

	if inv.ContainerCount != nil && *inv.ContainerCount != len(m.Containers) {
		r.Warnings = append(r.Warnings, Warning{
			Code:    WarnContainerCount,
			Message: fmt.Sprintf("invoice declares %d container(s), packing list has %d", *inv.ContainerCount, len(m.Containers)),
		})
	}
	return r
}
