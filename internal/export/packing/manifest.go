package packing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Header is the free-text part of a packing list.
type Header struct {
	ExportRefNo   string     `json:"export_ref_no"`
	ExportRefDate *time.Time `json:"export_ref_date,omitempty"`
	Buyer         string     `json:"buyer"`
	Seller        string     `json:"seller"`
	Notes         string     `json:"notes"`
	IssueDate     *time.Time `json:"issue_date,omitempty"`
}

// Overrides records which derived fields of a line were typed in by a user
// rather than produced by the last computation.
type Overrides struct {
	NetWeight    bool `json:"net_weight,omitempty"`
	GrossWeight  bool `json:"gross_weight,omitempty"`
	Volume       bool `json:"volume,omitempty"`
	PerBoxWeight bool `json:"per_box_weight,omitempty"`
}

// Any reports whether any field is overridden.
func (o Overrides) Any() bool {
	return o.NetWeight || o.GrossWeight || o.Volume || o.PerBoxWeight
}

// ProductLine is one product packed into a container.
type ProductLine struct {
	ProductID    string          `json:"product_id,omitempty"`
	ProductName  string          `json:"product_name"`
	HSNCode      string          `json:"hsn_code"`
	Unit         Unit            `json:"unit"`
	InvoicedQty  float64         `json:"invoiced_qty"`
	PackedQty    float64         `json:"packed_qty"`
	Boxes        float64         `json:"boxes"`
	NetWeight    float64         `json:"net_weight"`
	GrossWeight  float64         `json:"gross_weight"`
	Volume       float64         `json:"volume"`
	PerBoxWeight float64         `json:"per_box_weight"`
	Source       InvoiceLineData `json:"source"`
	Meta         CatalogMeta     `json:"catalog"`
	Overrides    Overrides       `json:"overrides"`
}

// Totals are the summed physical figures of a container or a whole manifest.
type Totals struct {
	Boxes          float64 `json:"boxes"`
	NetWeight      float64 `json:"net_weight"`
	GrossWeight    float64 `json:"gross_weight"`
	Volume         float64 `json:"volume"`
	ContainerCount int     `json:"container_count"`
}

// IsZero reports whether no quantity has been recorded.
func (t Totals) IsZero() bool {
	return t.Boxes == 0 && t.NetWeight == 0 && t.GrossWeight == 0 && t.Volume == 0
}

// Container is one physical shipping container.
type Container struct {
	Number     string        `json:"container_number"`
	SealType   SealType      `json:"seal_type"`
	SealNumber string        `json:"seal_number"`
	Lines      []ProductLine `json:"lines"`
	Totals     Totals        `json:"totals"`
}

// Manifest is a packing list. ID is empty until the first successful create.
type Manifest struct {
	ID         string      `json:"id,omitempty"`
	InvoiceID  string      `json:"invoice_id"`
	OrderID    string      `json:"order_id,omitempty"`
	IsExisting bool        `json:"is_existing"`
	Header     Header      `json:"header"`
	Containers []Container `json:"containers"`
	Totals     Totals      `json:"totals"`
}

// NewManifest starts an empty packing list for an invoice: one container, no lines.
func NewManifest(inv InvoiceSnapshot, orderID string) Manifest {
	m := Manifest{
		InvoiceID:  inv.ID,
		OrderID:    orderID,
		Header:     Header{Buyer: inv.Buyer, Seller: inv.Seller},
		Containers: []Container{newContainer()},
	}
	return RecomputeTotals(m)
}

func newContainer() Container {
	return Container{SealType: SealSelf, Lines: []ProductLine{}}
}

// RecomputeTotals rebuilds every container total and the manifest total from
// the product lines. Nothing is carried over from the previous totals.
func RecomputeTotals(m Manifest) Manifest {
	out := m.clone()
	var boxes, net, gross, vol decimal.Decimal
	for i := range out.Containers {
		t := sumLines(out.Containers[i].Lines)
		out.Containers[i].Totals = t
		boxes = boxes.Add(decimal.NewFromFloat(t.Boxes))
		net = net.Add(decimal.NewFromFloat(t.NetWeight))
		gross = gross.Add(decimal.NewFromFloat(t.GrossWeight))
		vol = vol.Add(decimal.NewFromFloat(t.Volume))
	}
	out.Totals = Totals{
		Boxes:          boxes.Round(4).InexactFloat64(),
		NetWeight:      net.Round(2).InexactFloat64(),
		GrossWeight:    gross.Round(2).InexactFloat64(),
		Volume:         vol.Round(4).InexactFloat64(),
		ContainerCount: len(out.Containers),
	}
	return out
}

func sumLines(lines []ProductLine) Totals {
	var boxes, net, gross, vol decimal.Decimal
	for _, l := range lines {
		boxes = boxes.Add(decimal.NewFromFloat(l.Boxes))
		net = net.Add(decimal.NewFromFloat(l.NetWeight))
		gross = gross.Add(decimal.NewFromFloat(l.GrossWeight))
		vol = vol.Add(decimal.NewFromFloat(l.Volume))
	}
	return Totals{
		Boxes:       boxes.Round(4).InexactFloat64(),
		NetWeight:   net.Round(2).InexactFloat64(),
		GrossWeight: gross.Round(2).InexactFloat64(),
		Volume:      vol.Round(4).InexactFloat64(),
	}
}

// HasRecordedData reports whether any container carries data: a number, seal
// data, product lines or non-zero totals. Packing lists written by the old
// editor are recognised this way when they have neither an id nor a flag.
func HasRecordedData(containers []Container) bool {
	for _, c := range containers {
		if c.Number != "" || c.SealNumber != "" || c.SealType == SealLine {
			return true
		}
		if len(c.Lines) > 0 || !c.Totals.IsZero() {
			return true
		}
	}
	return false
}

func (m Manifest) clone() Manifest {
	out := m
	out.Containers = make([]Container, len(m.Containers))
	for i, c := range m.Containers {
		out.Containers[i] = c.clone()
	}
	return out
}

func (c Container) clone() Container {
	out := c
	out.Lines = make([]ProductLine, len(c.Lines))
	copy(out.Lines, c.Lines)
	return out
}
