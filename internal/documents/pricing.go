package documents

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Amounts are in minor units (paise) using int64.

var ErrInvalidPricingReq = errors.New("documents: invalid pricing request")

const DefaultGSTRatePct = 18.0

type Totals struct {
	GSTRatePct    float64 `json:"gst_rate_pct"`
	SubtotalMinor int64   `json:"subtotal_minor"`
	GSTMinor      int64   `json:"gst_minor"`
	TotalMinor    int64   `json:"total_minor"`
}

// ComputeGST applies ratePct to baseMinor. The tax is rounded half-up to the
// nearest minor unit.
func ComputeGST(baseMinor int64, ratePct float64) (Totals, error) {
	if baseMinor < 0 || ratePct < 0 || math.IsNaN(ratePct) {
		return Totals{}, ErrInvalidPricingReq
	}
	// Work in basis points so 18% and 12.5% stay exact.
	bp := int64(math.Round(ratePct * 100))
	gst := (baseMinor*bp + 5000) / 10000
	return Totals{
		GSTRatePct:    ratePct,
		SubtotalMinor: baseMinor,
		GSTMinor:      gst,
		TotalMinor:    baseMinor + gst,
	}, nil
}

// InvoiceNumber is INV-<yyyymmdd>-<customer id>.
func InvoiceNumber(at time.Time, customerID int64) string {
	return fmt.Sprintf("INV-%s-%d", at.Format("20060102"), customerID)
}

// IssueDate formats at like 05-Mar-2024.
func IssueDate(at time.Time) string { return at.Format("02-Jan-2006") }

// FormatMinor renders minor units as "1,234,567.89".
func FormatMinor(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	whole := strconv.FormatInt(minor/100, 10)
	frac := minor % 100

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s%s.%02d", sign, b.String(), frac)
}
