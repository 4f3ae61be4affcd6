package format

import "testing"

func TestVND(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		expected string
	}{
		{"Zero", 0, "0 ₫"},
		{"Below a thousand", 999, "999 ₫"},
		{"Thousand", 1000, "1.000 ₫"},
		{"Drive-away total", 776280700, "776.280.700 ₫"},
		{"Billions", 1231020000, "1.231.020.000 ₫"},
		{"Negative", -1234567, "-1.234.567 ₫"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VND(tt.amount); got != tt.expected {
				t.Errorf("VND(%d) = %q, expected %q", tt.amount, got, tt.expected)
			}
		})
	}
}

func TestMillions(t *testing.T) {
	tests := []struct {
		amount   int64
		expected string
	}{
		{699000000, "699 triệu"},
		{776280700, "776,28 triệu"},
		{1050000000, "1.050 triệu"},
		{20005000, "20,005 triệu"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := Millions(tt.amount); got != tt.expected {
				t.Errorf("Millions(%d) = %q, expected %q", tt.amount, got, tt.expected)
			}
		})
	}
}
