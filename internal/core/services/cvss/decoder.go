// Package cvss decodes CVSS metric vectors (v2.0, v3.0/3.1, v4.0) into
// human-readable metric labels. Parsing is pure and safe for concurrent use.
package cvss

import "strings"

// VersionKey selects the metric grammar of a CVSS major version.
type VersionKey string

const (
	V2 VersionKey = "v2"
	V3 VersionKey = "v3"
	V4 VersionKey = "v4"
)

// Version tags as they appear on scraped score entries.
const (
	TagV20 = "CVSS 2.0"
	TagV30 = "CVSS 3.0"
	TagV31 = "CVSS 3.1"
	TagV40 = "CVSS 4.0"
)

// VersionInfo maps a scraped version tag to its grammar key and canonical
// label. ok is false for tags outside the supported set.
func VersionInfo(tag string) (key VersionKey, label string, ok bool) {
	switch tag {
	case TagV20:
		return V2, TagV20, true
	case TagV30:
		return V3, TagV30, true
	case TagV31:
		return V3, TagV31, true
	case TagV40:
		return V4, TagV40, true
	}
	return "", "", false
}

// Per-version value decode tables. Keys are metric codes, inner keys the
// single-letter value codes from the vector.
var metricTables = map[VersionKey]map[string]map[string]string{
	V2: {
		"AV": {"N": "Network", "A": "Adjacent", "L": "Local"},
		"AC": {"L": "Low", "M": "Medium", "H": "High"},
		"Au": {"N": "None", "S": "Single", "M": "Multiple"},
		"C":  {"N": "None", "P": "Partial", "C": "Complete"},
		"I":  {"N": "None", "P": "Partial", "C": "Complete"},
		"A":  {"N": "None", "P": "Partial", "C": "Complete"},
	},
	V3: {
		"AV": {"N": "Network", "A": "Adjacent", "L": "Local", "P": "Physical"},
		"AC": {"L": "Low", "H": "High"},
		"PR": {"N": "None", "L": "Low", "H": "High"},
		"UI": {"N": "None", "R": "Required"},
		"S":  {"U": "Unchanged", "C": "Changed"},
		"C":  {"N": "None", "L": "Low", "H": "High"},
		"I":  {"N": "None", "L": "Low", "H": "High"},
		"A":  {"N": "None", "L": "Low", "H": "High"},
	},
	V4: {
		"AV": {"N": "Network", "A": "Adjacent", "L": "Local", "P": "Physical"},
		"AC": {"L": "Low", "H": "High"},
		"AT": {"N": "None", "P": "Present"},
		"PR": {"N": "None", "L": "Low", "H": "High"},
		"UI": {"N": "None", "P": "Passive", "A": "Active"},
		"VC": {"N": "None", "L": "Low", "H": "High"},
		"VI": {"N": "None", "L": "Low", "H": "High"},
		"VA": {"N": "None", "L": "Low", "H": "High"},
		"SC": {"N": "None", "L": "Low", "H": "High"},
		"SI": {"N": "None", "L": "Low", "H": "High"},
		"SA": {"N": "None", "L": "Low", "H": "High"},
	},
}

// ParseVector decodes a vector string into metric code to label. The optional
// "CVSS:<major>.<minor>/" prefix is stripped. Metric codes unknown to the
// version are ignored; known codes with an unrecognized value keep the raw
// value code. Empty input or input without a single KEY:VALUE pair yields an
// empty map, never an error.
func ParseVector(vector string, version VersionKey) map[string]string {
	metrics := map[string]string{}

	table, ok := metricTables[version]
	if !ok {
		return metrics
	}

	vector = strings.TrimSpace(vector)
	if rest, found := strings.CutPrefix(vector, "CVSS:"); found {
		if _, tail, found := strings.Cut(rest, "/"); found {
			vector = tail
		} else {
			return metrics
		}
	}

	for _, pair := range strings.Split(vector, "/") {
		code, value, found := strings.Cut(pair, ":")
		if !found {
			continue
		}
		code = strings.TrimSpace(code)
		value = strings.TrimSpace(value)

		labels, known := table[code]
		if !known {
			continue
		}
		if label, mapped := labels[value]; mapped {
			metrics[code] = label
		} else {
			metrics[code] = value
		}
	}

	return metrics
}
