package domain

// OtherBucket collects factors that no configured bucket claims.
const OtherBucket = "Other"

// Bucket is a presentational grouping of factor codes.
type Bucket struct {
	Name  string   `json:"name"`
	Codes []string `json:"codes"`
}

// defaultBuckets groups the labelled factors for the factor selector.
var defaultBuckets = []Bucket{
	{Name: "Economic", Codes: []string{
		"E_UNEMP", "EP_UNEMP", "EPL_UNEMP", "EP_POV200", "EPL_POV200",
		"EP_UNINSUR", "EPL_UNINSUR",
	}},
	{Name: "Education & Access", Codes: []string{
		"EP_NOHSDP", "EPL_NOHSDP", "E_NOINT", "EP_NOINT", "EPL_NOINT",
		"EP_LIMENG", "EPL_LIMENG",
	}},
	{Name: "Housing", Codes: []string{
		"E_MOBILE", "EP_MOBILE", "EPL_MOBILE", "EP_RENTER", "EPL_RENTER",
		"EP_HOUBDN", "EPL_HOUBDN", "EP_GROUPQ", "EPL_GROUPQ",
	}},
	{Name: "Health", Codes: []string{
		"EP_ASTHMA", "EPL_ASTHMA", "EP_CANCER", "EPL_CANCER", "EP_MHLTH",
		"EPL_MHLTH", "EP_DIABETES", "EPL_DIABETES", "EP_DISABL", "EPL_DISABL",
	}},
	{Name: "Environment", Codes: []string{
		"E_OZONE", "EPL_OZONE", "E_PM", "EPL_PM", "E_DSLPM", "EPL_DSLPM",
		"E_TOTCR", "EPL_TOTCR", "E_PARK",
	}},
	{Name: "Demographic", Codes: []string{
		"E_TOTPOP", "M_TOTPOP", "E_DAYPOP", "EP_MINRTY", "EPL_MINRTY",
		"SPL_SVM_DOM1", "RPL_SVM_DOM1", "EP_AGE65", "EPL_AGE65", "EP_AGE17",
		"EPL_AGE17",
	}},
	{Name: "Composite Index", Codes: []string{
		"SPL_EJI", "RPL_EJI", "SPL_SER", "RPL_SER",
	}},
}

// DefaultBuckets returns a copy of the built-in factor grouping.
func DefaultBuckets() []Bucket {
	out := make([]Bucket, len(defaultBuckets))
	for i, b := range defaultBuckets {
		out[i] = Bucket{Name: b.Name, Codes: append([]string(nil), b.Codes...)}
	}
	return out
}

// GroupFactors assigns each observed code to the first bucket that lists it,
// preserving the order of codes. Buckets that receive no codes are omitted;
// unclaimed codes land in a trailing OtherBucket.
func GroupFactors(codes []string, buckets []Bucket) []Bucket {
	owner := make(map[string]int)
	for i, b := range buckets {
		for _, c := range b.Codes {
			if _, taken := owner[normalizeCode(c)]; !taken {
				owner[normalizeCode(c)] = i
			}
		}
	}

	grouped := make([][]string, len(buckets))
	var other []string
	for _, code := range codes {
		if i, ok := owner[normalizeCode(code)]; ok {
			grouped[i] = append(grouped[i], code)
			continue
		}
		other = append(other, code)
	}

	out := make([]Bucket, 0, len(buckets)+1)
	for i, b := range buckets {
		if len(grouped[i]) > 0 {
			out = append(out, Bucket{Name: b.Name, Codes: grouped[i]})
		}
	}
	if len(other) > 0 {
		out = append(out, Bucket{Name: OtherBucket, Codes: other})
	}
	return out
}
