// Command joincheck loads a county dataset and a county geometry file and
// reports how well they join: rows skipped for a missing join key,
// duplicate keys, records with no matching feature, features with no record,
// and factor codes without a display label.
//
// Usage:
//
//	go run ./cmd/joincheck \
//	  -dataset data/county_factors.csv \
//	  -geometry data/us_counties.geojson \
//	  -strict
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/couchcryptid/county-factor-map/internal/adapter/resource"
	"github.com/couchcryptid/county-factor-map/internal/dataset"
	"github.com/couchcryptid/county-factor-map/internal/domain"
	"github.com/couchcryptid/county-factor-map/internal/geometry"
	"github.com/couchcryptid/county-factor-map/internal/viewer"
)

// maxListed caps the keys printed per phase.
const maxListed = 20

// phase tracks pass/fail for a check.
type phase struct {
	name     string
	errors   []string
	warnings []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	datasetPath := flag.String("dataset", "", "dataset location (path, http(s) URL, or s3:// URL)")
	geometryPath := flag.String("geometry", "", "county GeoJSON location")
	strict := flag.Bool("strict", false, "treat features without a record and unlabeled factors as failures")
	timeout := flag.Duration("timeout", 30*time.Second, "fetch timeout for remote locations")
	flag.Parse()

	if *datasetPath == "" || *geometryPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*datasetPath, *geometryPath, *strict, *timeout))
}

func run(datasetPath, geometryPath string, strict bool, timeout time.Duration) int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*timeout)
	defer cancel()

	fetcher := resource.New(resource.Config{HTTPTimeout: timeout, S3Region: os.Getenv("S3_REGION")})

	table, err := loadTable(ctx, fetcher, datasetPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dataset: %v\n", err)
		return 1
	}
	layer, err := loadLayer(ctx, fetcher, geometryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "geometry: %v\n", err)
		return 1
	}

	cov := viewer.Coverage(table, layer)
	phases := []*phase{
		checkDataset(table),
		checkGeometry(layer, strict),
		checkJoin(cov, strict),
		checkLabels(table, domain.DefaultLabels(), strict),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-30s %s\n", p.name, status)
	}

	stats := table.Stats()
	fmt.Println()
	fmt.Printf("Rows: %d read, %d indexed, %d skipped, %d duplicate keys\n",
		stats.Rows, table.Len(), stats.Skipped, stats.Duplicates)
	fmt.Printf("Features: %d total, %d matched, %d without a record\n",
		layer.Len(), cov.MatchedFeatures, cov.UnmatchedFeatures)

	for _, p := range phases {
		if len(p.errors) == 0 && len(p.warnings) == 0 {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
		for _, w := range p.warnings {
			fmt.Printf("  warning: %s\n", w)
		}
	}

	if allPassed {
		fmt.Println("\nJoin check passed.")
		return 0
	}
	fmt.Println("\nJoin check FAILED.")
	return 1
}

func loadTable(ctx context.Context, fetcher *resource.Fetcher, location string) (*dataset.Table, error) {
	rc, err := fetcher.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return dataset.Parse(rc, dataset.FormatFromPath(location))
}

func loadLayer(ctx context.Context, fetcher *resource.Fetcher, location string) (*geometry.Layer, error) {
	rc, err := fetcher.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return geometry.Decode(rc)
}

func checkDataset(table *dataset.Table) *phase {
	p := &phase{name: "Dataset rows"}
	stats := table.Stats()
	if table.Len() == 0 {
		p.errorf("no rows resolved to a county key")
	}
	if stats.Skipped > 0 {
		p.warnf("%d rows skipped: no join key (unresolvable state or blank county)", stats.Skipped)
	}
	if stats.Duplicates > 0 {
		p.warnf("%d rows repeat an earlier key; the later row wins", stats.Duplicates)
	}
	return p
}

func checkGeometry(layer *geometry.Layer, strict bool) *phase {
	p := &phase{name: "Geometry features"}
	if layer.Unjoined() == 0 {
		return p
	}
	if strict {
		p.errorf("%d features have no usable state and county name", layer.Unjoined())
	} else {
		p.warnf("%d features have no usable state and county name", layer.Unjoined())
	}
	return p
}

func checkJoin(cov viewer.JoinCoverage, strict bool) *phase {
	p := &phase{name: "Join coverage"}
	for i, key := range cov.UnmatchedRecords {
		if i == maxListed {
			p.warnf("... and %d more records without a feature", len(cov.UnmatchedRecords)-maxListed)
			break
		}
		p.errorf("record %s has no matching feature", key)
	}
	if cov.UnmatchedFeatures > 0 {
		if strict {
			p.errorf("%d features have no record and will show no data", cov.UnmatchedFeatures)
		} else {
			p.warnf("%d features have no record and will show no data", cov.UnmatchedFeatures)
		}
	}
	return p
}

func checkLabels(table *dataset.Table, labels *domain.LabelTable, strict bool) *phase {
	p := &phase{name: "Factor labels"}
	for _, code := range table.Factors() {
		if labels.Resolve(code) != code {
			continue
		}
		if strict {
			p.errorf("factor %s has no label", code)
		} else {
			p.warnf("factor %s has no label", code)
		}
	}
	return p
}
