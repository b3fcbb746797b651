package compliance

import "testing"

func TestParse(t *testing.T) {
	for in, want := range map[string]ComplianceMode{"": Permissive, "permissive": Permissive, "strict": Strict} {
		got, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("Parse(%q) = %v, want %v", in, got, want)
		}
		if in != "" && got.String() != in {
			t.Fatalf("String() = %q, want %q", got.String(), in)
		}
	}
	if _, err := Parse("lenient"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}
