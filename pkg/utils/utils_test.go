package utils

import "testing"

func TestNormalizeURL(t *testing.T) {
	tests := map[string]string{
		"":                             "",
		"Example.com":                  "https://example.com",
		"http://www.Example.com/":      "http://example.com",
		"  https://joespizza.com/menu": "https://joespizza.com/menu",
	}
	for in, want := range tests {
		if got := NormalizeURL(in); got != want {
			t.Errorf("NormalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExtractDomain(t *testing.T) {
	tests := map[string]string{
		"https://www.joespizza.com/menu?x=1": "joespizza.com",
		"joespizza.com":                      "joespizza.com",
		"http://localhost:8080/a":            "localhost",
		"":                                   "",
	}
	for in, want := range tests {
		if got := ExtractDomain(in); got != want {
			t.Errorf("ExtractDomain(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSameDomain(t *testing.T) {
	if !SameDomain("https://www.joespizza.com/", "joespizza.com/contact") {
		t.Error("expected same domain")
	}
	if SameDomain("", "") {
		t.Error("empty inputs are not the same domain")
	}
}

func TestFoldDiacritics(t *testing.T) {
	tests := map[string]string{
		"Café Olé":          "Cafe Ole",
		"  Crème   Brûlée ": "Creme Brulee",
		"Smørrebrød":        "Smørrebrød", // ø is not a combining sequence
		"plain":             "plain",
	}
	for in, want := range tests {
		if got := FoldDiacritics(in); got != want {
			t.Errorf("FoldDiacritics(%q) = %q, want %q", in, got, want)
		}
	}
	if got := CacheKeyPart("Café  OLÉ"); got != "cafe ole" {
		t.Errorf("CacheKeyPart = %q", got)
	}
}
