package domain

import "testing"

func TestFormatAmount(t *testing.T) {
	tests := map[int64]string{
		5:    "0.05",
		1234: "12.34",
		-100: "-1.00",
		0:    "0.00",
	}
	for in, want := range tests {
		if got := FormatAmount(in); got != want {
			t.Fatalf("FormatAmount(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestValidSessionID(t *testing.T) {
	valid := []string{"cs_test_a1", "cs_live_b2"}
	invalid := []string{"", "cs_test_", "cs_a1", "pi_123", "CS_TEST_a"}
	for _, id := range valid {
		if !ValidSessionID(id) {
			t.Fatalf("expected %q to be valid", id)
		}
	}
	for _, id := range invalid {
		if ValidSessionID(id) {
			t.Fatalf("expected %q to be invalid", id)
		}
	}
}
