package normalize

import "testing"

func TestNormalize(t *testing.T) {
	n := New(DefaultStopTokens)

	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"ACH Payment Acme", "ach acme"},
		{"Vendor-X_Invoice#99", "vendor x invoice 99"},
		{"  REF: 12345 / txn  ", "12345"},
		{"a,b.c|d/e\\f-g_h:i;j", "a b c d e f g h i j"},
		{"Payment payment PAYMENT", ""},
	}
	for _, tc := range cases {
		if got := n.Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeNoStopTokens(t *testing.T) {
	n := New(nil)
	if got := n.Normalize("Ref Payment 10"); got != "ref payment 10" {
		t.Fatalf("got %q, want %q", got, "ref payment 10")
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	n := New(DefaultStopTokens)
	in := "ACME | Invoice (99) -- payment REF"
	first := n.Normalize(in)
	for i := 0; i < 10; i++ {
		if got := n.Normalize(in); got != first {
			t.Fatalf("normalization not deterministic: %q vs %q", got, first)
		}
	}
}
