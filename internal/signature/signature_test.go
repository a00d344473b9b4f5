package signature

import (
	"encoding/json"
	"hash/fnv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum_emptyIsOffsetBasis(t *testing.T) {
	assert.Equal(t, Fingerprint(0x811C9DC5), Sum(nil))
	assert.Equal(t, Fingerprint(0x811C9DC5), SumString(""))
}

func TestSum_knownVectors(t *testing.T) {
	// Reference values for FNV-1a 32.
	tests := []struct {
		in   string
		want Fingerprint
	}{
		{"a", 0xE40C292C},
		{"foobar", 0xBF9CF968},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SumString(tt.in), "SumString(%q)", tt.in)
	}
}

func TestSum_matchesHashFNV(t *testing.T) {
	inputs := []string{"", "TEST_PATTERN", "EXPECTED_RESULT", "Hello Holographic World", "CPU", "\x00\xff"}
	for _, in := range inputs {
		h := fnv.New32a()
		_, _ = h.Write([]byte(in))
		want := Fingerprint(h.Sum32())
		assert.Equal(t, want, Sum([]byte(in)), "Sum(%q)", in)
		assert.Equal(t, want, SumString(in), "SumString(%q)", in)
	}
}

func TestSum_singleByteMutationChangesFingerprint(t *testing.T) {
	samples := []string{"TEST_PATTERN", "EXPECTED_RESULT", "Hello Holographic World", "compute"}
	for _, s := range samples {
		base := SumString(s)
		for i := 0; i < len(s); i++ {
			b := []byte(s)
			b[i] ^= 0x01
			assert.NotEqual(t, base, Sum(b), "mutating byte %d of %q left fingerprint unchanged", i, s)
		}
	}
}

func TestFingerprint_String(t *testing.T) {
	assert.Equal(t, "0x000000AB", Fingerprint(0xAB).String())
}

func TestParse(t *testing.T) {
	for _, in := range []string{"0x811C9DC5", "811c9dc5", " 0X811C9DC5 "} {
		got, err := Parse(in)
		require.NoError(t, err, "Parse(%q)", in)
		assert.Equal(t, Fingerprint(0x811C9DC5), got, "Parse(%q)", in)
	}
	for _, in := range []string{"", "0x", "zz", "0x1FFFFFFFF"} {
		_, err := Parse(in)
		assert.Error(t, err, "Parse(%q) should fail", in)
	}
}

func TestFingerprint_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		FP Fingerprint `json:"fp"`
	}{FP: 0x1234})
	require.NoError(t, err)
	assert.JSONEq(t, `{"fp":"0x00001234"}`, string(data))

	var out struct {
		FP Fingerprint `json:"fp"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, Fingerprint(0x1234), out.FP)
}
