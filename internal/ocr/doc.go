// Package ocr defines the machine code extraction capability consumed by the
// record builder, plus the plain-text implementation used when scanner
// drivers already emit the decoded code line as the disposition file.
//
// Extraction never fails loudly: an unreadable file or unrecognised content
// yields an empty string, which the builder treats as "no code scanned".
package ocr
