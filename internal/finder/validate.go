// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package finder

import (
	"bytes"
	"strings"
)

var pdfMagic = []byte("%PDF-")

// IsValidPDF reports whether the payload starts with the PDF magic bytes.
func IsValidPDF(b []byte) bool {
	return bytes.HasPrefix(b, pdfMagic)
}

// IsLikelyLoginPage detects publisher paywall and login redirects: an HTML
// content type, or a body that opens with an HTML document even when the
// server lied about the type.
func IsLikelyLoginPage(contentType string, b []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}

	head := b
	if len(head) > 512 {
		head = head[:512]
	}
	lowered := strings.ToLower(strings.TrimSpace(string(head)))
	return strings.HasPrefix(lowered, "<!doctype") || strings.HasPrefix(lowered, "<html")
}
