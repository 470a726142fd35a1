package domain

// SlotCount is the number of factor slots carried by every county record.
const SlotCount = 3

// FactorContribution pairs a factor code with its signed contribution.
type FactorContribution struct {
	Code  string  `json:"code"`
	Value float64 `json:"value"`
}

// CountyRecord is one row of the tabular dataset after parsing.
// Records are immutable once the dataset table has been built.
type CountyRecord struct {
	Key       JoinKey                       `json:"key"`
	State     string                        `json:"state"`
	County    string                        `json:"county"`
	Factors   [SlotCount]FactorContribution `json:"factors"`
	Predicted float64                       `json:"predicted_life_expectancy"`
	Actual    float64                       `json:"actual_life_expectancy"`
}

// Contribution returns the value of the lowest-numbered slot referencing
// code. The second result is false when no slot matches.
func (r *CountyRecord) Contribution(code string) (float64, bool) {
	if r == nil || code == "" {
		return 0, false
	}
	for _, f := range r.Factors {
		if f.Code == code {
			return f.Value, true
		}
	}
	return 0, false
}

// Codes returns the non-empty factor codes in slot order.
func (r *CountyRecord) Codes() []string {
	codes := make([]string, 0, SlotCount)
	for _, f := range r.Factors {
		if f.Code != "" {
			codes = append(codes, f.Code)
		}
	}
	return codes
}

// RecordLookup resolves a join key to a county record.
type RecordLookup interface {
	Lookup(key JoinKey) (*CountyRecord, bool)
}
