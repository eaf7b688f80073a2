// Package pdftest builds small real PDFs for tests that exercise the PDF library.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Build writes a minimal, unencrypted PDF with one text row per line using the
// standard Helvetica font. It is enough for the library's xref reader and text walker.
func Build(title string, pages ...[]string) []byte {
	const (
		catalogID = 1
		pagesID   = 2
		fontID    = 3
		infoID    = 4
		firstPage = 5
	)

	objects := map[int]string{}
	kids := make([]string, 0, len(pages))
	for i, lines := range pages {
		pageID := firstPage + 2*i
		contentID := pageID + 1
		kids = append(kids, fmt.Sprintf("%d 0 R", pageID))

		var stream strings.Builder
		y := 720
		for _, line := range lines {
			fmt.Fprintf(&stream, "BT /F1 12 Tf 1 0 0 1 72 %d Tm (%s) Tj ET\n", y, escape(line))
			y -= 20
		}
		objects[pageID] = fmt.Sprintf(
			"<< /Type /Page /Parent %d 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>",
			pagesID, fontID, contentID)
		objects[contentID] = fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", stream.Len(), stream.String())
	}

	objects[catalogID] = fmt.Sprintf("<< /Type /Catalog /Pages %d 0 R >>", pagesID)
	objects[pagesID] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))
	objects[fontID] = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>"
	objects[infoID] = fmt.Sprintf("<< /Title (%s) /Producer (statement-pipeline tests) >>", escape(title))

	total := firstPage + 2*len(pages)
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, total)
	for id := 1; id < total; id++ {
		offsets[id] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", id, objects[id])
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", total)
	buf.WriteString("0000000000 65535 f \n")
	for id := 1; id < total; id++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[id])
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root %d 0 R /Info %d 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		total, catalogID, infoID, xref)
	return buf.Bytes()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
