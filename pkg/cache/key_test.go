package cache

import (
	"net/url"
	"testing"
)

func TestKey_Canonical(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "endpoint no params",
			key: Key{
				Endpoint: "person",
			},
			want: "dip:person",
		},
		{
			name: "endpoint with leading slash normalized",
			key: Key{
				Endpoint: "/person/",
			},
			want: "dip:person",
		},
		{
			name: "endpoint with query params (sorted)",
			key: Key{
				Endpoint: "drucksache",
				Params: url.Values{
					"f.wahlperiode": []string{"20"},
					"f.datum.start": []string{"2024-01-01"},
				},
			},
			want: "dip:drucksache:f.datum.start=2024-01-01:f.wahlperiode=20",
		},
		{
			name: "repeated key values sorted",
			key: Key{
				Endpoint: "person",
				Params: url.Values{
					"f.id": []string{"7", "3", "11"},
				},
			},
			want: "dip:person:f.id=11:f.id=3:f.id=7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.key.canonical()
			if got != tt.want {
				t.Errorf("Key.canonical() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestKey_FingerprintInsertionOrder ensures the fingerprint does not depend
// on the order parameters were added.
func TestKey_FingerprintInsertionOrder(t *testing.T) {
	a := url.Values{}
	a.Set("anzahl", "10")
	a.Set("wahlperiode", "20")

	b := url.Values{}
	b.Set("wahlperiode", "20")
	b.Set("anzahl", "10")

	fpA := Key{Endpoint: "person", Params: a}.Fingerprint()
	fpB := Key{Endpoint: "person", Params: b}.Fingerprint()

	if fpA != fpB {
		t.Errorf("fingerprints differ for same logical request: %s vs %s", fpA, fpB)
	}

	if len(fpA) != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", len(fpA))
	}
}

func TestKey_FingerprintDistinct(t *testing.T) {
	base := Key{Endpoint: "person", Params: url.Values{"anzahl": []string{"10"}}}

	tests := []struct {
		name  string
		other Key
	}{
		{
			name:  "different endpoint",
			other: Key{Endpoint: "aktivitaet", Params: url.Values{"anzahl": []string{"10"}}},
		},
		{
			name:  "different value",
			other: Key{Endpoint: "person", Params: url.Values{"anzahl": []string{"20"}}},
		},
		{
			name:  "extra parameter",
			other: Key{Endpoint: "person", Params: url.Values{"anzahl": []string{"10"}, "f.wahlperiode": []string{"20"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if base.Fingerprint() == tt.other.Fingerprint() {
				t.Error("distinct logical requests share a fingerprint")
			}
		})
	}
}

// TestKey_Determinism ensures same input always produces same fingerprint.
func TestKey_Determinism(t *testing.T) {
	key := Key{
		Endpoint: "vorgang",
		Params: url.Values{
			"f.wahlperiode": []string{"20"},
			"f.datum.start": []string{"2024-01-01"},
			"f.id":          []string{"84393", "84394"},
		},
	}

	first := key.Fingerprint()
	for i := 0; i < 10; i++ {
		if got := key.Fingerprint(); got != first {
			t.Errorf("Fingerprint() = %v, want %v (not deterministic)", got, first)
		}
	}
}
