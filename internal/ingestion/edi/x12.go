// Package edi parses and generates EDI X12 documents exchanged with
// enterprise retail trading partners (846 inventory advice, 856 ASN,
// 810 invoice, 850 purchase order).
package edi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SegmentTerminator and ElementSeparator are the standard X12 field
// delimiters.
const (
	SegmentTerminator = "~"
	ElementSeparator  = "*"
)

var lineBreaks = regexp.MustCompile(`[\r\n]+`)

// Item846 is a single inventory line from an 846 document.
type Item846 struct {
	GTIN            string
	UPC             string
	QuantityOnHand  int
	QuantityOnOrder int
	WarehouseID     string
	UnitOfMeasure   string
	AsOfDate        time.Time
}

// ShipmentItem856 is one line within an 856 Advance Ship Notice.
type ShipmentItem856 struct {
	GTIN      string
	Quantity  int
	PONumber  string
	LotNumber string
}

// Shipment856 is a parsed Advance Ship Notice.
type Shipment856 struct {
	ShipmentID        string
	ShipDate          time.Time
	ExpectedDelivery  time.Time
	Carrier           string
	TrackingNumber    string
	Items             []ShipmentItem856
}

// InvoiceLine810 is one line item within an 810 invoice.
type InvoiceLine810 struct {
	GTIN       string
	Quantity   int
	UnitPrice  float64
	LineTotal  float64
}

// Invoice810 is a parsed invoice.
type Invoice810 struct {
	InvoiceNumber string
	InvoiceDate   time.Time
	PONumber      string
	TotalAmount   float64
	LineItems     []InvoiceLine810
}

// POItem850 is one line item to generate into an outbound 850.
type POItem850 struct {
	GTIN      string
	Quantity  int
	UnitPrice float64
	UOM       string
}

// ShipTo850 is the optional ship-to party carried in a generated 850.
type ShipTo850 struct {
	Name, ID, Address, City, State, Zip string
}

// DetectTransactionType extracts the ST segment's document type (846,
// 850, 856, 810) from raw X12 content. Classification is content-based:
// callers must never infer type from a filename.
func DetectTransactionType(raw string) (string, bool) {
	for _, seg := range splitSegments(raw) {
		elements := strings.Split(seg, ElementSeparator)
		if strings.TrimSpace(elements[0]) == "ST" && len(elements) >= 2 {
			return strings.TrimSpace(elements[1]), true
		}
	}
	return "", false
}

// extractIDValuePairs scans adjacent element tokens for
// qualifier/value pairs. Real documents often carry a leading sequence
// number before the qualifier (LIN*1*UP*...*IN*...), so every adjacent
// pair is considered rather than a fixed position.
func extractIDValuePairs(elements []string) [][2]string {
	var pairs [][2]string
	for i := 1; i < len(elements)-1; i++ {
		qualifier := strings.TrimSpace(elements[i])
		value := strings.TrimSpace(elements[i+1])
		if qualifier != "" && value != "" {
			pairs = append(pairs, [2]string{qualifier, value})
		}
	}
	return pairs
}

// Parse846 parses an Inventory Inquiry/Advice document.
func Parse846(raw string) ([]Item846, error) {
	var items []Item846
	current := Item846{UnitOfMeasure: "EA"}
	hasCurrent := false

	for _, seg := range splitSegments(raw) {
		elements := strings.Split(seg, ElementSeparator)
		segID := strings.TrimSpace(elements[0])

		switch {
		case segID == "LIN" && len(elements) >= 4:
			if hasCurrent && current.GTIN != "" {
				items = append(items, current)
			}
			current = Item846{UnitOfMeasure: "EA"}
			hasCurrent = true
			for _, pair := range extractIDValuePairs(elements) {
				switch pair[0] {
				case "UP":
					current.UPC = pair[1]
					if current.GTIN == "" {
						current.GTIN = pair[1]
					}
				case "IN":
					current.GTIN = pair[1]
				}
			}

		case segID == "QTY" && len(elements) >= 3:
			qualifier := strings.TrimSpace(elements[1])
			qty, err := parseIntFloat(elements[2])
			if err != nil {
				return nil, fmt.Errorf("846 QTY segment: %w", err)
			}
			switch qualifier {
			case "33":
				current.QuantityOnHand = qty
			case "02":
				current.QuantityOnOrder = qty
			}
			if len(elements) >= 4 {
				current.UnitOfMeasure = strings.TrimSpace(elements[3])
			}

		case segID == "DTM" && len(elements) >= 3:
			dateStr := strings.TrimSpace(elements[2])
			if len(dateStr) == 8 {
				if t, err := time.Parse("20060102", dateStr); err == nil {
					current.AsOfDate = t.UTC()
				}
			}

		case segID == "N1" && len(elements) >= 3:
			if strings.TrimSpace(elements[1]) == "WH" && len(elements) >= 5 {
				current.WarehouseID = strings.TrimSpace(elements[4])
			}
		}
	}

	if hasCurrent && current.GTIN != "" {
		items = append(items, current)
	}
	return items, nil
}

// Parse856 parses an Advance Ship Notice.
func Parse856(raw string) (Shipment856, error) {
	var shipment Shipment856
	var current ShipmentItem856
	hasCurrent := false

	for _, seg := range splitSegments(raw) {
		elements := strings.Split(seg, ElementSeparator)
		segID := strings.TrimSpace(elements[0])

		switch {
		case segID == "BSN" && len(elements) >= 4:
			shipment.ShipmentID = strings.TrimSpace(elements[2])
			dateStr := strings.TrimSpace(elements[3])
			if len(dateStr) == 8 {
				if t, err := time.Parse("20060102", dateStr); err == nil {
					shipment.ShipDate = t.UTC()
				}
			}

		case segID == "TD5" && len(elements) >= 5:
			shipment.Carrier = strings.TrimSpace(elements[3])

		case segID == "REF" && len(elements) >= 3:
			qualifier := strings.TrimSpace(elements[1])
			switch qualifier {
			case "CN":
				shipment.TrackingNumber = strings.TrimSpace(elements[2])
			case "PO":
				current.PONumber = strings.TrimSpace(elements[2])
			}

		case segID == "LIN" && len(elements) >= 4:
			if hasCurrent && current.GTIN != "" {
				shipment.Items = append(shipment.Items, current)
			}
			current = ShipmentItem856{PONumber: current.PONumber}
			hasCurrent = true
			for _, pair := range extractIDValuePairs(elements) {
				if pair[0] == "UP" || pair[0] == "IN" {
					current.GTIN = pair[1]
				}
			}

		case segID == "SN1" && len(elements) >= 4:
			qty, err := parseIntFloat(elements[2])
			if err != nil {
				return Shipment856{}, fmt.Errorf("856 SN1 segment: %w", err)
			}
			current.Quantity = qty

		case segID == "DTM" && len(elements) >= 3:
			qualifier := strings.TrimSpace(elements[1])
			dateStr := strings.TrimSpace(elements[2])
			if qualifier == "017" && len(dateStr) == 8 {
				if t, err := time.Parse("20060102", dateStr); err == nil {
					shipment.ExpectedDelivery = t.UTC()
				}
			}
		}
	}

	if hasCurrent && current.GTIN != "" {
		shipment.Items = append(shipment.Items, current)
	}
	return shipment, nil
}

// Parse810 parses an invoice document.
func Parse810(raw string) (Invoice810, error) {
	var invoice Invoice810
	var current InvoiceLine810
	hasCurrent := false

	for _, seg := range splitSegments(raw) {
		elements := strings.Split(seg, ElementSeparator)
		segID := strings.TrimSpace(elements[0])

		switch {
		case segID == "BIG" && len(elements) >= 4:
			dateStr := strings.TrimSpace(elements[1])
			invoice.InvoiceNumber = strings.TrimSpace(elements[2])
			if len(dateStr) == 8 {
				if t, err := time.Parse("20060102", dateStr); err == nil {
					invoice.InvoiceDate = t.UTC()
				}
			}
			if len(elements) >= 5 {
				invoice.PONumber = strings.TrimSpace(elements[4])
			}

		case segID == "IT1" && len(elements) >= 7:
			if hasCurrent && current.GTIN != "" {
				invoice.LineItems = append(invoice.LineItems, current)
			}
			qty, err := parseIntFloat(elements[2])
			if err != nil {
				return Invoice810{}, fmt.Errorf("810 IT1 segment: %w", err)
			}
			unitPrice, err := strconv.ParseFloat(strings.TrimSpace(elements[4]), 64)
			if err != nil {
				return Invoice810{}, fmt.Errorf("810 IT1 unit price: %w", err)
			}
			current = InvoiceLine810{
				Quantity:  qty,
				UnitPrice: unitPrice,
				LineTotal: float64(qty) * unitPrice,
			}
			hasCurrent = true
			for _, pair := range extractIDValuePairs(elements) {
				if pair[0] == "UP" || pair[0] == "IN" {
					current.GTIN = pair[1]
				}
			}

		case segID == "TDS" && len(elements) >= 2:
			cents, err := strconv.ParseFloat(strings.TrimSpace(elements[1]), 64)
			if err != nil {
				return Invoice810{}, fmt.Errorf("810 TDS segment: %w", err)
			}
			invoice.TotalAmount = cents / 100
		}
	}

	if hasCurrent && current.GTIN != "" {
		invoice.LineItems = append(invoice.LineItems, current)
	}
	return invoice, nil
}

// Generate850 produces an outbound Purchase Order EDI document:
// ISA→GS→ST→BEG→N1/N3/N4→PO1→SE→GE→IEA with a trailing segment count
// in SE.
func Generate850(poNumber, vendorID string, items []POItem850, shipTo *ShipTo850, now time.Time) string {
	dateStr := now.Format("20060102")
	timeStr := now.Format("1504")

	segments := []string{
		fmt.Sprintf("ISA*00*          *00*          *ZZ*SHELFOPS       *ZZ*%-15s*%s*%s*U*00401*000000001*0*P*>",
			vendorID, now.Format("060102"), timeStr),
		fmt.Sprintf("GS*PO*SHELFOPS*%s*%s*%s*1*X*004010", vendorID, dateStr, timeStr),
		"ST*850*0001",
		fmt.Sprintf("BEG*00*NE*%s**%s", poNumber, dateStr),
	}

	if shipTo != nil {
		segments = append(segments,
			fmt.Sprintf("N1*ST*%s*92*%s", shipTo.Name, shipTo.ID),
			fmt.Sprintf("N3*%s", shipTo.Address),
			fmt.Sprintf("N4*%s*%s*%s", shipTo.City, shipTo.State, shipTo.Zip),
		)
	}

	segCount := len(segments) - 2 // ST onward; ISA and GS sit outside the transaction set
	for i, item := range items {
		uom := item.UOM
		if uom == "" {
			uom = "EA"
		}
		segments = append(segments, fmt.Sprintf("PO1*%d*%d*%s*%.2f*PE*IN*%s", i+1, item.Quantity, uom, item.UnitPrice, item.GTIN))
		segCount++
	}

	segCount++ // SE itself
	segments = append(segments,
		fmt.Sprintf("SE*%d*0001", segCount),
		"GE*1*1",
		"IEA*1*000000001",
	)

	return strings.Join(segments, SegmentTerminator) + SegmentTerminator
}

// splitSegments splits raw X12 content into trimmed, non-empty
// segments, tolerating line breaks some trading partners insert for
// readability.
func splitSegments(raw string) []string {
	cleaned := lineBreaks.ReplaceAllString(strings.TrimSpace(raw), "")
	parts := strings.Split(cleaned, SegmentTerminator)
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	return segments
}

func parseIntFloat(s string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}
