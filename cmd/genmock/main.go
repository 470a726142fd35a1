// Command genmock generates a deterministic county factor dataset for a
// county GeoJSON file. Every joinable feature gets one row with three factor
// slots drawn from the built-in factor buckets, so the output always joins
// against the geometry it was generated from.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -geometry data/us_counties.geojson \
//	  -out data/mock/county_factors.csv \
//	  -xlsx data/mock/county_factors.xlsx \
//	  -seed 42
package main

import (
	"bytes"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"strconv"

	"github.com/couchcryptid/county-factor-map/internal/dataset"
	"github.com/couchcryptid/county-factor-map/internal/domain"
	"github.com/couchcryptid/county-factor-map/internal/geometry"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	geometryPath := flag.String("geometry", "", "county GeoJSON file")
	out := flag.String("out", "", "output path for the CSV dataset")
	xlsxOut := flag.String("xlsx", "", "optional output path for the same dataset as a workbook")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	if *geometryPath == "" || *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -geometry, -out")
	}

	f, err := os.Open(*geometryPath)
	if err != nil {
		return fmt.Errorf("open geometry: %w", err)
	}
	layer, err := geometry.Decode(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("decode geometry: %w", err)
	}
	log.Printf("geometry: %d features, %d without a key", layer.Len(), layer.Unjoined())

	var buf bytes.Buffer
	rows, err := writeDataset(&buf, layer, rand.New(rand.NewPCG(*seed, *seed)))
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	log.Printf("wrote %d rows: %s", rows, *out)

	// Parse the output back through the real loader.
	table, err := dataset.Parse(bytes.NewReader(buf.Bytes()), dataset.FormatCSV)
	if err != nil {
		return fmt.Errorf("reparse generated csv: %w", err)
	}
	if table.Len() != rows {
		return fmt.Errorf("generated %d rows but loader indexed %d", rows, table.Len())
	}

	if *xlsxOut != "" {
		xf, err := os.Create(*xlsxOut)
		if err != nil {
			return fmt.Errorf("create workbook: %w", err)
		}
		defer xf.Close()
		if err := dataset.WriteXLSX(xf, table, domain.DefaultLabels()); err != nil {
			return fmt.Errorf("write workbook: %w", err)
		}
		log.Printf("wrote workbook: %s", *xlsxOut)
	}
	return nil
}

func writeDataset(buf *bytes.Buffer, layer *geometry.Layer, rng *rand.Rand) (int, error) {
	var codes []string
	for _, b := range domain.DefaultBuckets() {
		codes = append(codes, b.Codes...)
	}

	w := csv.NewWriter(buf)
	header := []string{"State", "County"}
	for i := range domain.SlotCount {
		header = append(header, "factor_"+strconv.Itoa(i+1), "contribution_"+strconv.Itoa(i+1))
	}
	header = append(header, "predicted_life_expectancy", "actual_life_expectancy")
	if err := w.Write(header); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}

	seen := make(map[domain.JoinKey]bool)
	rows := 0
	for _, c := range layer.Counties() {
		if c.Key == "" || seen[c.Key] {
			continue
		}
		seen[c.Key] = true

		state, ok := domain.StateName(c.StateFIPS)
		if !ok {
			continue
		}
		row := []string{state, c.Name}
		for _, i := range rng.Perm(len(codes))[:domain.SlotCount] {
			contribution := math.Round((rng.Float64()*2-1)*1000) / 1000
			row = append(row, codes[i], strconv.FormatFloat(contribution, 'f', -1, 64))
		}
		predicted := 70 + rng.Float64()*12
		actual := predicted + rng.NormFloat64()*1.5
		row = append(row, formatYears(predicted), formatYears(actual))
		if err := w.Write(row); err != nil {
			return rows, fmt.Errorf("write row: %w", err)
		}
		rows++
	}
	w.Flush()
	return rows, w.Error()
}

func formatYears(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
