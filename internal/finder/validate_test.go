// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package finder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidPDF(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  bool
	}{
		{"pdf header", []byte("%PDF-1.7\n...body..."), true},
		{"pdf header alone", []byte("%PDF-"), true},
		{"html", []byte("<html><body>login</body></html>"), false},
		{"truncated magic", []byte("%PDF"), false},
		{"leading whitespace", []byte(" %PDF-1.4"), false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidPDF(tt.input))
		})
	}
}

func TestIsLikelyLoginPage(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        []byte
		want        bool
	}{
		{"html content type", "text/html; charset=utf-8", []byte("%PDF-1.7"), true},
		{"uppercase content type", "Text/HTML", []byte("anything"), true},
		{"doctype body", "application/pdf", []byte("<!DOCTYPE html><html>"), true},
		{"html tag body", "application/octet-stream", []byte("  <html lang=\"en\">"), true},
		{"real pdf", "application/pdf", []byte("%PDF-1.7\n..."), false},
		{"binary junk", "application/octet-stream", []byte{0x25, 0x50, 0x44, 0x46, 0x2d}, false},
		{"empty body pdf type", "application/pdf", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLikelyLoginPage(tt.contentType, tt.body))
		})
	}
}
