package domain

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// Distribution summarizes one numeric column across counties.
type Distribution struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P10    float64 `json:"p10"`
	P90    float64 `json:"p90"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// FactorCount is the number of counties whose record references a factor.
type FactorCount struct {
	Code   string  `json:"code"`
	Label  string  `json:"label"`
	Count  int     `json:"count"`
	MaxAbs float64 `json:"max_abs_contribution"`
}

// Summary is an overview of a loaded dataset.
type Summary struct {
	Counties    int           `json:"counties"`
	Factors     []FactorCount `json:"factors"`
	Predicted   Distribution  `json:"predicted"`
	Actual      Distribution  `json:"actual"`
	Correlation float64       `json:"predicted_actual_correlation"`
}

// Summarize computes a Summary over records. factorOrder fixes the order of
// the per-factor counts; codes never referenced by a record are omitted.
func Summarize(records []*CountyRecord, factorOrder []string, labels *LabelTable) Summary {
	counts := make(map[string]*FactorCount, len(factorOrder))
	predicted := make([]float64, 0, len(records))
	actual := make([]float64, 0, len(records))

	for _, r := range records {
		predicted = append(predicted, r.Predicted)
		actual = append(actual, r.Actual)
		seen := make(map[string]bool, SlotCount)
		for _, f := range r.Factors {
			if f.Code == "" || seen[f.Code] {
				continue
			}
			seen[f.Code] = true
			c, ok := counts[f.Code]
			if !ok {
				c = &FactorCount{Code: f.Code, Label: labels.Resolve(f.Code)}
				counts[f.Code] = c
			}
			c.Count++
			c.MaxAbs = math.Max(c.MaxAbs, math.Abs(f.Value))
		}
	}

	factors := make([]FactorCount, 0, len(counts))
	for _, code := range factorOrder {
		if c, ok := counts[code]; ok {
			factors = append(factors, *c)
		}
	}

	s := Summary{
		Counties:  len(records),
		Factors:   factors,
		Predicted: describe(predicted),
		Actual:    describe(actual),
	}
	if len(records) > 1 {
		if corr := stat.Correlation(predicted, actual, nil); !math.IsNaN(corr) {
			s.Correlation = corr
		}
	}
	return s
}

// describe returns the zero Distribution for empty input.
func describe(data []float64) Distribution {
	if len(data) == 0 {
		return Distribution{}
	}
	mean, _ := stats.Mean(data)
	median, _ := stats.Median(data)
	p10, _ := stats.Percentile(data, 10)
	p90, _ := stats.Percentile(data, 90)
	lo, _ := stats.Min(data)
	hi, _ := stats.Max(data)
	return Distribution{Mean: mean, Median: median, P10: p10, P90: p90, Min: lo, Max: hi}
}
