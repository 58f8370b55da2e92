package voucher

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/pandutama/tripbooking/internal/domain"
	"github.com/phpdave11/gofpdf"
)

// BuildPDF renders the voucher as a printable A4 document and returns the
// bytes with a suggested filename.
func BuildPDF(v *domain.Voucher) ([]byte, string, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Travel Voucher "+v.Code, false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "TRAVEL VOUCHER", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, v.Code, "", 1, "C", false, 0, "")
	pdf.Ln(6)

	row := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(50, 7, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.CellFormat(0, 7, value, "", 1, "L", false, 0, "")
	}

	row("Booking", v.BookingCode)
	row("Name", v.CustomerName)
	row("Email", v.CustomerEmail)
	row("Package", v.PackageName)
	row("Destination", v.Destination)
	row("Participants", strconv.Itoa(v.Participants))
	row("Total paid", formatRupiah(v.TotalPrice))
	row("Payment method", v.PaymentMethod)
	row("Valid from", v.ValidFrom.Format("02 Jan 2006"))
	row("Valid until", v.ValidUntil.Format("02 Jan 2006"))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, "Present this voucher together with a valid ID at departure. Verify authenticity at "+v.QRRef, "", "L", false)
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 5, "Issued "+v.IssuedAt.Format("02 Jan 2006 15:04"), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", fmt.Errorf("render voucher pdf: %w", err)
	}
	return buf.Bytes(), fmt.Sprintf("voucher-%s.pdf", v.Code), nil
}

func formatRupiah(v int64) string {
	s := strconv.FormatInt(v, 10)
	neg := false
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, '.')
		}
		out = append(out, c)
	}
	prefix := "Rp "
	if neg {
		prefix = "-Rp "
	}
	return prefix + string(out)
}
