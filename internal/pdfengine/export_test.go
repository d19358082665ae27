package pdfengine

// MinimalPDF builds a small valid PDF with one empty page per (width, height).
var MinimalPDF = minimalPDF
