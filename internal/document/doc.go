// Package document converts between document formats and rasterizes PDF
// pages.
//
// Supported operations:
//   - pdf → txt: plain text extraction (ledongthuc/pdf)
//   - txt → pdf: monospaced layout on A4 pages (go-pdf/fpdf)
//   - pdf → page images: MuPDF rendering (go-fitz), used by the document to
//     image fan-out
//
// Any other pair is an unsupported conversion.
package document
