package report

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

var mdLinkRe = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

// WritePDF renders the Markdown report into a simple A4 PDF. Headings get a
// bold face and Markdown links become clickable.
func WritePDF(r *Run, path string) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Helvetica", "", 10)
	pdf.AddPage()

	sc := bufio.NewScanner(strings.NewReader(Markdown(r)))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			pdf.Ln(4)
		case strings.HasPrefix(line, "#"):
			level := len(line) - len(strings.TrimLeft(line, "#"))
			size := 14.0
			if level >= 2 {
				size = 12.0
			}
			pdf.SetFont("Helvetica", "B", size)
			pdf.CellFormat(0, 8, tr(strings.TrimSpace(line[level:])), "", 1, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
		case strings.HasPrefix(line, "| ---"):
		case strings.HasPrefix(line, "|"):
			writeRow(pdf, tr, line)
		default:
			pdf.MultiCell(0, 5, tr(line), "", "L", false)
		}
	}
	return pdf.OutputFileAndClose(path)
}

// writeRow prints one table row as "a · b · c", keeping links clickable.
func writeRow(pdf *gofpdf.Fpdf, tr func(string) string, line string) {
	cells := strings.Split(strings.Trim(line, "|"), " | ")
	for i, c := range cells {
		c = strings.TrimSpace(c)
		if i > 0 {
			pdf.Write(5, "  -  ")
		}
		if m := mdLinkRe.FindStringSubmatch(c); m != nil {
			pdf.WriteLinkString(5, tr(m[1]), m[2])
			continue
		}
		pdf.Write(5, tr(c))
	}
	pdf.Ln(6)
}
