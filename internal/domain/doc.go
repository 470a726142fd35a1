// Package domain models the county life-expectancy factor dataset and the
// pure functions that turn it into map styling and detail panels.
//
// # Data Source
//
// The tabular dataset is one row per US county with the columns
//
//	State, County, factor_1, contribution_1, factor_2, contribution_2,
//	factor_3, contribution_3, predicted_life_expectancy, actual_life_expectancy
//
// Each factor column holds a code from the CDC Environmental Justice Index
// (EJI) or the Social Vulnerability Index (e.g. "E_UNEMP", "EP_POV200").
// The paired contribution is a signed weight explaining how much that factor
// moved the county's predicted life expectancy away from the actual value.
// Contributions are not normalized and are not sorted across slots.
//
// The geometry is the US Census county boundary file (GeoJSON) whose feature
// properties carry "STATE" (two-digit FIPS code) and "NAME" (bare county
// name without the "County" suffix).
//
// # Join Keys
//
// Rows and features are matched on a [JoinKey] of the form
//
//	"<state FIPS>-<normalized county>"  →  e.g. "01-autauga"
//
// Both sides go through [NewJoinKey]. The state may be a full name, a USPS
// abbreviation, or a FIPS code. County names are NFKC-normalized, stripped
// of accents, lower-cased, whitespace-collapsed, and lose a trailing
// "county" word, so "Doña Ana County" and "Dona Ana" produce the same key.
//
// # Highlight Intensity
//
// A county highlighted for the active factor is filled with opacity
// |contribution| clamped to [0, 1]. A zero contribution, a missing record,
// or a record that does not reference the factor renders the neutral style.
package domain
