package domain

import "strings"

// defaultLabels maps EJI / SVI factor codes to display labels.
var defaultLabels = map[string]string{
	"STATEFP":      "State FIPS code",
	"COUNTYFP":     "County FIPS code",
	"TRACTCE":      "Census tract code",
	"AFFGEOID":     "Census tract full identifier",
	"GEOID":        "11-digit tract ID",
	"COUNTY":       "County name",
	"StateAbbr":    "State abbreviation",
	"StateDesc":    "State full name",
	"Location":     "Text location",
	"E_TOTPOP":     "Population estimate",
	"M_TOTPOP":     "Pop estimate margin of error",
	"E_DAYPOP":     "Estimated daytime population",
	"SPL_EJI":      "Environmental Justice index",
	"RPL_EJI":      "EJI percentile rank",
	"SPL_SER":      "Social/Environmental risk sum",
	"RPL_SER":      "SER percentile rank",
	"EP_MINRTY":    "% racial/ethnic minority",
	"EPL_MINRTY":   "Minority percentile rank",
	"SPL_SVM_DOM1": "Minority domain sum",
	"RPL_SVM_DOM1": "Minority domain percentile",
	"EP_POV200":    "% below 200% poverty line",
	"EPL_POV200":   "Poverty percentile",
	"EP_NOHSDP":    "% no high school diploma",
	"EPL_NOHSDP":   "No-HS diploma percentile",
	"EP_UNEMP":     "% unemployed",
	"EPL_UNEMP":    "Unemployment percentile",
	"EP_RENTER":    "% renter-occupied housing",
	"EPL_RENTER":   "Renter percentile",
	"EP_HOUBDN":    "% housing cost burdened",
	"EPL_HOUBDN":   "Housing burden percentile",
	"EP_UNINSUR":   "% uninsured",
	"EPL_UNINSUR":  "Uninsured percentile",
	"EP_NOINT":     "% no internet",
	"EPL_NOINT":    "No-internet percentile",
	"EP_AGE65":     "% aged 65+",
	"EPL_AGE65":    "65+ percentile",
	"EP_AGE17":     "% aged <17",
	"EPL_AGE17":    "<17 percentile",
	"EP_DISABL":    "% disabled population",
	"EPL_DISABL":   "Disability percentile",
	"EP_LIMENG":    "% limited English",
	"EPL_LIMENG":   "Limited-English percentile",
	"EP_MOBILE":    "% mobile homes",
	"EPL_MOBILE":   "Mobile homes percentile",
	"EP_GROUPQ":    "% group quarters",
	"EPL_GROUPQ":   "Group quarters percentile",
	"E_OZONE":      "Days above ozone limit",
	"EPL_OZONE":    "Ozone percentile",
	"E_PM":         "Days above PM2.5 limit",
	"EPL_PM":       "PM2.5 percentile",
	"E_DSLPM":      "Diesel particulate matter",
	"EPL_DSLPM":    "Diesel PM percentile",
	"E_TOTCR":      "Air toxics cancer risk",
	"EPL_TOTCR":    "Cancer risk percentile",
	"EP_ASTHMA":    "% asthma",
	"EPL_ASTHMA":   "Asthma percentile",
	"EP_CANCER":    "% cancer",
	"EPL_CANCER":   "Cancer percentile",
	"EP_MHLTH":     "% poor mental health",
	"EPL_MHLTH":    "Mental health percentile",
	"EP_DIABETES":  "% diabetes",
	"EPL_DIABETES": "Diabetes percentile",
	"E_UNEMP":      "% Unemployed Population",
	"E_PARK":       "% Area within 1 mile of greenspace",
	"E_MOBILE":     "% Housing as Mobile Homes",
	"E_NOINT":      "% Population without internet",
}

// LabelTable resolves factor codes to human-readable labels.
// The zero value resolves every code to itself.
type LabelTable struct {
	labels map[string]string // keyed by normalized code
}

// NewLabelTable builds a table from code → label pairs. Codes are normalized
// on insertion so that lookups are case-insensitive.
func NewLabelTable(labels map[string]string) *LabelTable {
	t := &LabelTable{labels: make(map[string]string, len(labels))}
	for code, label := range labels {
		t.labels[normalizeCode(code)] = label
	}
	return t
}

// DefaultLabels returns the built-in EJI / SVI label table.
func DefaultLabels() *LabelTable {
	return NewLabelTable(defaultLabels)
}

// Resolve returns the label for code, or code unchanged when the table has
// no entry. An empty code resolves to "".
func (t *LabelTable) Resolve(code string) string {
	if strings.TrimSpace(code) == "" {
		return ""
	}
	if t != nil {
		if label, ok := t.labels[normalizeCode(code)]; ok {
			return label
		}
	}
	return code
}

// Display renders "CODE — Label" when a distinct label exists, otherwise the
// code once.
func (t *LabelTable) Display(code string) string {
	label := t.Resolve(code)
	if label == code || label == "" {
		return code
	}
	return code + " — " + label
}

// Len reports the number of labelled codes.
func (t *LabelTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.labels)
}

func normalizeCode(code string) string {
	return strings.ToLower(strings.TrimSpace(code))
}
