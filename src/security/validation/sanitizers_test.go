package validation

import "testing"

func TestValidateEmail(t *testing.T) {
	valid := []string{"a@x.com", "user.name+tag@sub.example.co"}
	for _, email := range valid {
		if err := ValidateEmail(email); err != nil {
			t.Errorf("expected %q to be valid: %v", email, err)
		}
	}
	invalid := []string{"", "no-at-sign", "a@b", "a b@x.com"}
	for _, email := range invalid {
		if err := ValidateEmail(email); err == nil {
			t.Errorf("expected %q to be rejected", email)
		}
	}
}

func TestStripUnprintable(t *testing.T) {
	got := StripUnprintable("hello\x00world\n")
	if got != "helloworld\n" {
		t.Errorf("expected control character stripped, got %q", got)
	}
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Cross-Border Freight: 2024 Outlook": "cross-border-freight-2024-outlook",
		"  Trimmed   Title  ":                "trimmed-title",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
