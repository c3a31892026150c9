package pdfprocessor

var Version = "v0.1.0"
