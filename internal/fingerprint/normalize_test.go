package fingerprint

import "testing"

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ABC Manufacturing Inc.", "abc manufacturing"},
		{"ABC Manufacturing Incorporated", "abc manufacturing"},
		{"Smith & Sons Ltd", "smith sons"},
		{"Smith and Sons Limited", "smith sons"},
		{"Acme Holdings", "acme"},
		{"Acme Holding Corp.", "acme"},
		{"Café Montréal Enterprises", "cafe montreal"},
		{"  Tri-City   Welding  ", "tri city welding"},
		{"Northern Co.", "northern"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeStreet(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123 Main St", "main"},
		{"123 Main Street", "main"},
		{"456 Oak Ave East", "oak"},
		{"456 E Oak Avenue", "oak"},
		{"789 King Rd Unit 4", "king"},
		{"789 King Road, Suite 200", "king"},
		{"10 Queen St W", "queen"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeStreet(tt.in); got != tt.want {
			t.Errorf("NormalizeStreet(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStreetNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"123 Main St", "123"},
		{" 45a King Rd", "45"},
		{"Main St", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StreetNumber(tt.in); got != tt.want {
			t.Errorf("StreetNumber(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizePostal(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"L8H 3R2", "L8H"},
		{"l8h3r2", "L8H"},
		{"90210", "902"},
		{" m5v 2t6 ", "M5V"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePostal(tt.in); got != tt.want {
			t.Errorf("NormalizePostal(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"905-555-1234", "9055551234"},
		{"(905) 555-1234", "9055551234"},
		{"1-905-555-1234", "9055551234"},
		{"+1 905 555 1234", "9055551234"},
		{"555-1234", "5551234"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.in); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.abcmfg.com", "abcmfg.com"},
		{"www.abcmfg.com", "abcmfg.com"},
		{"http://abcmfg.com/about?ref=x", "abcmfg.com"},
		{"ABCMfg.COM/contact", "abcmfg.com"},
		{"example.com:8080/path", "example.com"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeDomain(tt.in); got != tt.want {
			t.Errorf("NormalizeDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
