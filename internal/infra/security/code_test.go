package security

import "testing"

func TestGenerateNumericCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateNumericCode(6)
		if err != nil {
			t.Fatalf("GenerateNumericCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q has length %d, want 6", code, len(code))
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q contains non-digit %q", code, r)
			}
		}
	}
}

func TestGenerateNumericCodeRange(t *testing.T) {
	for _, digits := range []int{0, 3, 11} {
		if _, err := GenerateNumericCode(digits); err == nil {
			t.Fatalf("digits %d: expected range error", digits)
		}
	}
	for _, digits := range []int{4, 10} {
		code, err := GenerateNumericCode(digits)
		if err != nil {
			t.Fatalf("digits %d: %v", digits, err)
		}
		if len(code) != digits {
			t.Fatalf("digits %d: code %q has length %d", digits, code, len(code))
		}
	}
}
