package report

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"example.com/l2munger/internal/common"
)

// SavePDF renders rep into a one page PDF. When the output digest is
// known it is printed and encoded as a QR code.
func SavePDF(rep Conversion, out string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Conversion Report", false)
	pdf.SetAuthor("l2munger", false)
	pdf.SetCreator("l2munger", false)
	pdf.SetMargins(15, 20, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	addPDFTitle(pdf, "Conversion Report")
	addSummarySection(pdf, rep)
	addTypeSection(pdf, rep.ByType)
	if err := addDigestSection(pdf, rep.Sha256); err != nil {
		return err
	}

	if pdf.Err() {
		return pdf.Error()
	}
	return pdf.OutputFileAndClose(out)
}

func addPDFTitle(pdf *gofpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)
}

func addSummarySection(pdf *gofpdf.Fpdf, rep Conversion) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Summary")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	items := []struct {
		label string
		value string
	}{
		{label: "Run", value: emptyFallback(rep.RunID, "-")},
		{label: "Source", value: filepath.Base(rep.Source)},
		{label: "Encoding", value: emptyFallback(strings.Join(rep.SourceEncoding, ", "), "plain")},
		{label: "Output", value: filepath.Base(rep.Output)},
		{label: "Site", value: fmt.Sprintf("%s -> %s", emptyFallback(rep.SourceSite, "?"), rep.Site)},
		{label: "Volume start", value: formatTime(rep.Reference)},
		{label: "New start", value: formatTime(rep.Target)},
		{label: "Speed", value: fmt.Sprintf("%dx", rep.Speed)},
		{label: "Packets", value: strconv.FormatInt(rep.Packets, 10)},
		{label: "Fields rewritten", value: strconv.FormatInt(rep.Remapped, 10)},
		{label: "Skipped payloads", value: strconv.FormatInt(rep.Skipped, 10)},
		{label: "Bytes", value: common.FormatBytes(rep.BytesWritten)},
		{label: "Elapsed", value: (time.Duration(rep.ElapsedMs) * time.Millisecond).String()},
		{label: "Status", value: statusLabel(rep)},
	}
	for _, item := range items {
		pdf.CellFormat(50, 6, item.label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, item.value, "", 1, "L", false, 0, "")
	}
	if rep.Error != "" {
		pdf.SetFont("Helvetica", "", 9)
		pdf.MultiCell(0, 5, rep.Error, "", "L", false)
	}
	pdf.Ln(4)
}

func addTypeSection(pdf *gofpdf.Fpdf, byType map[uint8]int64) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Message Types")
	pdf.Ln(9)

	if len(byType) == 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.MultiCell(0, 6, "No packets recorded.", "", "L", false)
		pdf.Ln(4)
		return
	}

	widths := []float64{30, 70, 30}
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range []string{"Type", "Description", "Packets"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	types := make([]int, 0, len(byType))
	for k := range byType {
		types = append(types, int(k))
	}
	sort.Ints(types)
	pdf.SetFont("Helvetica", "", 9)
	for _, k := range types {
		values := []string{strconv.Itoa(k), typeLabel(uint8(k)), strconv.FormatInt(byType[uint8(k)], 10)}
		for i, v := range values {
			pdf.CellFormat(widths[i], 6, v, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(4)
}

func addDigestSection(pdf *gofpdf.Fpdf, hash string) error {
	if strings.TrimSpace(hash) == "" {
		return nil
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Output SHA-256")
	pdf.Ln(8)
	pdf.SetFont("Courier", "", 9)
	pdf.MultiCell(0, 5, hash, "", "L", false)

	png, err := HashToQR(hash, 256)
	if err != nil {
		return err
	}
	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("digest-qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("digest-qr", pdf.GetX(), pdf.GetY()+2, 40, 40, true, opts, 0, "")
	return nil
}

func typeLabel(t uint8) string {
	switch t {
	case 1:
		return "Digital radar data (legacy)"
	case 2:
		return "RDA status"
	case 3:
		return "Performance/maintenance"
	case 5:
		return "Volume coverage pattern"
	case 13, 15:
		return "Clutter filter"
	case 18:
		return "RDA adaptation"
	case 31:
		return "Digital radar data (generic)"
	default:
		return "-"
	}
}

func statusLabel(rep Conversion) string {
	if rep.Status == StatusFailed {
		return "FAILED"
	}
	return "OK"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}

func emptyFallback(val, fallback string) string {
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	return val
}
