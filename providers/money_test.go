package providers

import "testing"

func TestMajorToMinor(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   int64
	}{
		{
			name:   "Whole amount",
			amount: 100,
			want:   10000,
		},
		{
			name:   "Two decimal places",
			amount: 99.99,
			want:   9999,
		},
		{
			name:   "Half rounds up",
			amount: 100.005,
			want:   10001,
		},
		{
			name:   "Below half rounds down",
			amount: 100.004,
			want:   10000,
		},
		{
			name:   "Above half rounds up",
			amount: 100.006,
			want:   10001,
		},
		{
			name:   "Small amount",
			amount: 0.01,
			want:   1,
		},
		{
			name:   "Zero",
			amount: 0,
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MajorToMinor(tt.amount); got != tt.want {
				t.Errorf("MajorToMinor(%v) = %d, want %d", tt.amount, got, tt.want)
			}
		})
	}
}

// Initialize and process both convert through MajorToMinor; for any given
// logical amount the two steps must land on identical minor units.
func TestMajorToMinor_ConsistentAcrossSteps(t *testing.T) {
	amounts := []float64{100.005, 0.005, 12.345, 999999.995, 1.004, 73.115}
	for _, amount := range amounts {
		initialize := MajorToMinor(amount)
		process := MajorToMinor(NormalizeMajor(amount))
		if initialize != process {
			t.Errorf("amount %v: initialize minor = %d, process minor = %d", amount, initialize, process)
		}
	}
}

func TestNormalizeMajor(t *testing.T) {
	tests := []struct {
		amount float64
		want   float64
	}{
		{100.005, 100.01},
		{99.994, 99.99},
		{10, 10},
		{0.005, 0.01},
	}

	for _, tt := range tests {
		if got := NormalizeMajor(tt.amount); got != tt.want {
			t.Errorf("NormalizeMajor(%v) = %v, want %v", tt.amount, got, tt.want)
		}
	}
}

func TestMinorToMajor(t *testing.T) {
	if got := MinorToMajor(10001); got != 100.01 {
		t.Errorf("MinorToMajor(10001) = %v, want 100.01", got)
	}
}

func TestSettledMatcher(t *testing.T) {
	matcher := SettledMatcher{"already been captured", "fully refunded"}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "Nil error",
			err:  nil,
			want: false,
		},
		{
			name: "Capture replay",
			err:  errTest("BAD_REQUEST_ERROR: This payment has already been captured"),
			want: true,
		},
		{
			name: "Refund replay",
			err:  errTest("payment is Fully Refunded"),
			want: true,
		},
		{
			name: "Unrelated error",
			err:  errTest("network timeout"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matcher.Matches(tt.err); got != tt.want {
				t.Errorf("Matches(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }

func TestTruncateReceipt(t *testing.T) {
	long := "order-aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	got := truncateReceipt(long, razorpayMaxReceiptLen)
	if len(got) != razorpayMaxReceiptLen {
		t.Errorf("truncateReceipt() length = %d, want %d", len(got), razorpayMaxReceiptLen)
	}
	if short := truncateReceipt("order-1", razorpayMaxReceiptLen); short != "order-1" {
		t.Errorf("truncateReceipt() = %q, want %q", short, "order-1")
	}
}
