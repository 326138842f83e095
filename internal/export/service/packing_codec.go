package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/bitfantasy/nimo-trade/internal/export/packing"
	"gorm.io/datatypes"
)

// PayloadSource 装箱单集装箱数据的来源格式
type PayloadSource string

const (
	PayloadEmpty       PayloadSource = "empty"
	PayloadStructured  PayloadSource = "structured"
	PayloadLegacyNotes PayloadSource = "legacy_notes"
)

// ContainerPayload 解码后的集装箱数据，计算引擎只接触这一种形态
type ContainerPayload struct {
	Source     PayloadSource
	Containers []packing.Container
}

// DecodeContainers 解码装箱单的集装箱数据
// 优先读取结构化的 containers 列，为空时回退到旧系统 invoice_history.notes 中的字符串 JSON。
// 返回的 payload 总是可用；err 非空表示有数据因格式错误被丢弃，调用方记录日志即可。
func DecodeContainers(structured, history []byte) (ContainerPayload, error) {
	if !isBlankJSON(structured) {
		var cs []packing.Container
		if err := json.Unmarshal(structured, &cs); err != nil {
			return ContainerPayload{Source: PayloadEmpty}, fmt.Errorf("decode containers: %w", err)
		}
		if len(cs) > 0 {
			for i := range cs {
				normalizeContainer(&cs[i])
			}
			return ContainerPayload{Source: PayloadStructured, Containers: cs}, nil
		}
	}

	if isBlankJSON(history) {
		return ContainerPayload{Source: PayloadEmpty}, nil
	}
	cs, err := decodeLegacyHistory(history)
	if err != nil {
		return ContainerPayload{Source: PayloadEmpty}, fmt.Errorf("decode legacy notes: %w", err)
	}
	if len(cs) == 0 {
		return ContainerPayload{Source: PayloadEmpty}, nil
	}
	return ContainerPayload{Source: PayloadLegacyNotes, Containers: cs}, nil
}

// EncodeContainers 编码为结构化的 containers 列
func EncodeContainers(cs []packing.Container) (datatypes.JSON, error) {
	if cs == nil {
		cs = []packing.Container{}
	}
	b, err := json.Marshal(cs)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

func normalizeContainer(c *packing.Container) {
	if st, err := packing.ParseSealType(string(c.SealType)); err == nil {
		c.SealType = st
	} else {
		c.SealType = packing.SealSelf
	}
	if c.Lines == nil {
		c.Lines = []packing.ProductLine{}
	}
	for i := range c.Lines {
		if u, err := packing.ParseUnit(string(c.Lines[i].Unit)); err == nil {
			c.Lines[i].Unit = u
		} else {
			c.Lines[i].Unit = packing.UnitBox
		}
	}
}

// --- 旧系统格式 ---

type legacyHistory struct {
	Notes json.RawMessage `json:"notes"`
}

type legacyEnvelope struct {
	Containers []legacyContainer `json:"containers"`
}

type legacyContainer struct {
	ContainerNumber  string       `json:"containerNumber"`
	SealType         string       `json:"sealType"`
	SealNumber       string       `json:"sealNumber"`
	Products         []legacyLine `json:"products"`
	TotalBoxes       flexFloat    `json:"totalBoxes"`
	TotalNetWeight   flexFloat    `json:"totalNetWeight"`
	TotalGrossWeight flexFloat    `json:"totalGrossWeight"`
	TotalVolume      flexFloat    `json:"totalMeasurement"`
}

type legacyLine struct {
	ProductName  string    `json:"productName"`
	HSNCode      string    `json:"hsnCode"`
	Unit         string    `json:"unit"`
	InvoicedQty  flexFloat `json:"quantity"`
	PackedQty    flexFloat `json:"packedQuantity"`
	Boxes        flexFloat `json:"noOfBoxes"`
	NetWeight    flexFloat `json:"netWeight"`
	GrossWeight  flexFloat `json:"grossWeight"`
	Measurement  flexFloat `json:"measurement"`
	PerBoxWeight flexFloat `json:"perBoxWeight"`
}

// flexFloat 旧系统的数值字段可能是数字、数字字符串或空串
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("not a number: %q", s)
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

func decodeLegacyHistory(history []byte) ([]packing.Container, error) {
	var h legacyHistory
	if err := json.Unmarshal(history, &h); err != nil {
		return nil, err
	}
	notes := bytes.TrimSpace(h.Notes)
	if isBlankJSON(notes) {
		return nil, nil
	}
	// notes 通常是字符串化的 JSON，也兼容直接存对象的记录
	if notes[0] == '"' {
		var s string
		if err := json.Unmarshal(notes, &s); err != nil {
			return nil, err
		}
		notes = bytes.TrimSpace([]byte(s))
		if isBlankJSON(notes) {
			return nil, nil
		}
	}
	return DecodeLegacyNotes(notes)
}

// DecodeLegacyNotes 解析旧系统的集装箱 JSON：数组，或 {"containers":[...]}
func DecodeLegacyNotes(notes []byte) ([]packing.Container, error) {
	notes = bytes.TrimSpace(notes)
	if isBlankJSON(notes) {
		return nil, nil
	}
	var legacy []legacyContainer
	switch notes[0] {
	case '[':
		if err := json.Unmarshal(notes, &legacy); err != nil {
			return nil, err
		}
	case '{':
		var env legacyEnvelope
		if err := json.Unmarshal(notes, &env); err != nil {
			return nil, err
		}
		legacy = env.Containers
	default:
		return nil, fmt.Errorf("unexpected notes payload starting with %q", notes[0])
	}

	out := make([]packing.Container, 0, len(legacy))
	for _, lc := range legacy {
		out = append(out, lc.toContainer())
	}
	return out, nil
}

func (lc legacyContainer) toContainer() packing.Container {
	seal, err := packing.ParseSealType(lc.SealType)
	if err != nil {
		seal = packing.SealSelf
	}
	c := packing.Container{
		Number:     strings.ToUpper(strings.TrimSpace(lc.ContainerNumber)),
		SealType:   seal,
		SealNumber: strings.TrimSpace(lc.SealNumber),
		Lines:      make([]packing.ProductLine, 0, len(lc.Products)),
		Totals: packing.Totals{
			Boxes:       float64(lc.TotalBoxes),
			NetWeight:   float64(lc.TotalNetWeight),
			GrossWeight: float64(lc.TotalGrossWeight),
			Volume:      float64(lc.TotalVolume),
		},
	}
	for _, ll := range lc.Products {
		unit, err := packing.ParseUnit(ll.Unit)
		if err != nil {
			unit = packing.UnitBox
		}
		c.Lines = append(c.Lines, packing.ProductLine{
			ProductName:  strings.TrimSpace(ll.ProductName),
			HSNCode:      strings.TrimSpace(ll.HSNCode),
			Unit:         unit,
			InvoicedQty:  float64(ll.InvoicedQty),
			PackedQty:    float64(ll.PackedQty),
			Boxes:        float64(ll.Boxes),
			NetWeight:    float64(ll.NetWeight),
			GrossWeight:  float64(ll.GrossWeight),
			Volume:       float64(ll.Measurement),
			PerBoxWeight: float64(ll.PerBoxWeight),
		})
	}
	return c
}

func isBlankJSON(b []byte) bool {
	s := string(bytes.TrimSpace(b))
	return s == "" || s == "null" || s == "[]" || s == "{}" || s == `""`
}
