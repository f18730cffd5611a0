package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprint(t *testing.T) {
	base := Fingerprint([]string{"t-1", "t-2"}, "Go loops", "article", 5)

	tests := []struct {
		name string
		fp   string
		same bool
	}{
		{"topic order ignored", Fingerprint([]string{"t-2", "t-1"}, "Go loops", "article", 5), true},
		{"query whitespace and case ignored", Fingerprint([]string{"t-1", "t-2"}, "  go   LOOPS ", "Article", 5), true},
		{"blank topic ids ignored", Fingerprint([]string{"t-1", " ", "t-2"}, "Go loops", "article", 5), true},
		{"different size", Fingerprint([]string{"t-1", "t-2"}, "Go loops", "article", 6), false},
		{"different type", Fingerprint([]string{"t-1", "t-2"}, "Go loops", "video", 5), false},
		{"different topics", Fingerprint([]string{"t-1"}, "Go loops", "article", 5), false},
		{"different query", Fingerprint([]string{"t-1", "t-2"}, "Go maps", "article", 5), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.same {
				assert.Equal(t, base, tt.fp)
			} else {
				assert.NotEqual(t, base, tt.fp)
			}
		})
	}
}

func TestFingerprintSeparatorsInValuesDoNotCollide(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{
			"comma inside a topic id",
			Fingerprint([]string{"a,b"}, "q", "article", 1),
			Fingerprint([]string{"a", "b"}, "q", "article", 1),
		},
		{
			"field separators inside the query",
			Fingerprint(nil, "x|type=video|n=5", "", 0),
			Fingerprint(nil, "x", "video|n=5|type=", 0),
		},
		{
			"query text shaped like a type",
			Fingerprint(nil, "go|type=video", "article", 3),
			Fingerprint(nil, "go", "video|type=article", 3),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, tt.a, tt.b)
		})
	}
}

func TestFingerprintDoesNotMutateInput(t *testing.T) {
	ids := []string{"b", "a"}
	Fingerprint(ids, "q", "t", 1)
	assert.Equal(t, []string{"b", "a"}, ids)
}

func TestHashFingerprintIsStable(t *testing.T) {
	a := hashFingerprint("topics=a|q=x|type=|n=1")
	assert.Len(t, a, 64)
	assert.Equal(t, a, hashFingerprint("topics=a|q=x|type=|n=1"))
	assert.NotEqual(t, a, hashFingerprint("topics=b|q=x|type=|n=1"))
}
