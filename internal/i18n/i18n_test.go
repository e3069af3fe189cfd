package i18n

import "testing"

func TestNegotiate(t *testing.T) {
	tr := NewTranslator(English, []string{English, Spanish})

	cases := map[string]string{
		"":                        English,
		"es-ES,es;q=0.9":          Spanish,
		"fr-FR, es;q=0.5":         Spanish,
		"de-DE":                   English,
		"en-US,en;q=0.9,es;q=0.8": English,
		"not a header;;;":         English,
	}
	for header, want := range cases {
		if got := tr.Negotiate(header); got != want {
			t.Errorf("Negotiate(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestTranslateFallsBack(t *testing.T) {
	tr := NewTranslator(English, []string{English, Spanish})

	if got := tr.T(Spanish, "forbidden"); got != "Acceso prohibido." {
		t.Fatalf("unexpected spanish text: %q", got)
	}
	if got := tr.T("fr", "forbidden"); got != "This action is unauthorized." {
		t.Fatalf("expected english fallback, got %q", got)
	}
	if got := tr.T(English, "no.such.key"); got != "no.such.key" {
		t.Fatalf("expected key passthrough, got %q", got)
	}
}

func TestFieldsAreFormatted(t *testing.T) {
	tr := NewTranslator(English, nil)
	out := tr.Fields(English, map[string][]string{"latitude": {"validation.required"}})

	if out["latitude"][0] != "The latitude field is required." {
		t.Fatalf("unexpected field message: %v", out)
	}
}
