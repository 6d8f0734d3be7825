package cvss

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionInfo(t *testing.T) {
	tests := []struct {
		tag   string
		key   VersionKey
		label string
		ok    bool
	}{
		{"CVSS 2.0", V2, "CVSS 2.0", true},
		{"CVSS 3.0", V3, "CVSS 3.0", true},
		{"CVSS 3.1", V3, "CVSS 3.1", true},
		{"CVSS 4.0", V4, "CVSS 4.0", true},
		{"CVSS 1.0", "", "", false},
		{"", "", "", false},
		{"cvss 3.1", "", "", false},
	}

	for _, tt := range tests {
		key, label, ok := VersionInfo(tt.tag)
		assert.Equal(t, tt.ok, ok, "tag %q", tt.tag)
		assert.Equal(t, tt.key, key, "tag %q", tt.tag)
		assert.Equal(t, tt.label, label, "tag %q", tt.tag)
	}
}

func TestParseVectorV2(t *testing.T) {
	got := ParseVector("AV:N/AC:L/Au:N/C:P/I:N/A:N", V2)

	want := map[string]string{
		"AV": "Network",
		"AC": "Low",
		"Au": "None",
		"C":  "Partial",
		"I":  "None",
		"A":  "None",
	}
	assert.Equal(t, want, got)
}

func TestParseVectorV3(t *testing.T) {
	got := ParseVector("CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H", V3)

	want := map[string]string{
		"AV": "Network",
		"AC": "Low",
		"PR": "None",
		"UI": "None",
		"S":  "Unchanged",
		"C":  "High",
		"I":  "High",
		"A":  "High",
	}
	assert.Equal(t, want, got)
}

func TestParseVectorV4(t *testing.T) {
	got := ParseVector("CVSS:4.0/AV:N/AC:L/AT:N/PR:N/UI:N/VC:H/VI:H/VA:H/SC:N/SI:N/SA:N", V4)

	want := map[string]string{
		"AV": "Network",
		"AC": "Low",
		"AT": "None",
		"PR": "None",
		"UI": "None",
		"VC": "High",
		"VI": "High",
		"VA": "High",
		"SC": "None",
		"SI": "None",
		"SA": "None",
	}
	assert.Equal(t, want, got)
}

func TestParseVectorUnknownMetricIgnored(t *testing.T) {
	// E, RL, RC are temporal metrics outside the v2 table.
	got := ParseVector("AV:N/E:POC/RL:OF/RC:C", V2)

	require.Len(t, got, 1)
	assert.Equal(t, "Network", got["AV"])
}

func TestParseVectorUnknownValuePassesThrough(t *testing.T) {
	got := ParseVector("AV:X/AC:L", V3)

	assert.Equal(t, "X", got["AV"])
	assert.Equal(t, "Low", got["AC"])
}

func TestParseVectorMalformed(t *testing.T) {
	tests := []struct {
		name   string
		vector string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"no pairs", "not-a-vector"},
		{"slashes only", "///"},
		{"bare prefix", "CVSS:3.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseVector(tt.vector, V3)
			assert.Empty(t, got)
		})
	}
}

func TestParseVectorUnknownVersionKey(t *testing.T) {
	got := ParseVector("AV:N/AC:L", VersionKey("v9"))
	assert.Empty(t, got)
}

func TestParseVectorValueWithColon(t *testing.T) {
	// Split on the first colon only; the remainder is the value code.
	got := ParseVector("AV:N:extra", V3)
	assert.Equal(t, "N:extra", got["AV"])
}
