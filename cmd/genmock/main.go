// Command genmock writes a synthetic case notification dataset in the RKI
// column layout, an optional matching population table, and optionally the
// JSON report the analyzer produces for it. The report is built with the real
// pipeline packages so fixtures stay in step with analysis behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/cases.csv \
//	  -population-out data/mock/population.csv \
//	  -report-out data/mock/report.json \
//	  -regions 12 -days 45 -seed 7
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/case-trend-etl/internal/adapter/csvsource"
	"github.com/couchcryptid/case-trend-etl/internal/domain"
	"github.com/couchcryptid/case-trend-etl/internal/observability"
	"github.com/couchcryptid/case-trend-etl/internal/pipeline"
)

var header = []string{
	"FID", "IdBundesland", "Landkreis", "Altersgruppe", "Geschlecht",
	"AnzahlFall", "AnzahlTodesfall", "ObjectId", "Meldedatum", "IdLandkreis",
	"Datenstand", "NeuerFall", "NeuerTodesfall", "AnzahlGenesen",
}

var ageGroups = []string{"A00-A04", "A05-A14", "A15-A34", "A35-A59", "A60-A79", "A80+"}

// region is one synthetic district with its own growth parameters.
type region struct {
	id         string
	name       string
	population int
	seed       float64 // new cases on the first day
	doubling   float64 // initial doubling time in days
	slowdown   float64 // daily increase of the doubling time
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("genmock", flag.ContinueOnError)
	out := fs.String("out", "", "output path for the case CSV")
	popOut := fs.String("population-out", "", "output path for the population table (optional)")
	reportOut := fs.String("report-out", "", "output path for the analyzed JSON report (optional)")
	regions := fs.Int("regions", 10, "number of districts")
	days := fs.Int("days", 40, "number of report days")
	start := fs.String("start", "2020-03-01", "first report date (YYYY-MM-DD)")
	seed := fs.Uint64("seed", 1, "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *out == "" {
		fs.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *regions <= 0 || *days <= 0 {
		return fmt.Errorf("-regions and -days must be positive")
	}
	first, err := time.Parse(time.DateOnly, *start)
	if err != nil {
		return fmt.Errorf("parse -start: %w", err)
	}

	rng := rand.New(rand.NewPCG(*seed, *seed^0x9e3779b97f4a7c15))
	districts := makeRegions(rng, *regions)

	rows := generateRows(rng, districts, first, *days)
	if err := writeCSV(*out, ',', append([][]string{header}, rows...)); err != nil {
		return err
	}
	log.Printf("cases: %d rows for %d districts over %d days -> %s", len(rows), len(districts), *days, *out)

	if *popOut != "" {
		if err := writePopulation(*popOut, districts); err != nil {
			return err
		}
		log.Printf("population: %d districts -> %s", len(districts), *popOut)
	}

	if *reportOut != "" {
		if err := writeReport(*out, *reportOut, first); err != nil {
			return err
		}
		log.Printf("report -> %s", *reportOut)
	}
	return nil
}

func makeRegions(rng *rand.Rand, n int) []region {
	out := make([]region, n)
	for i := range out {
		out[i] = region{
			id:         fmt.Sprintf("09%03d", 161+i),
			name:       fmt.Sprintf("LK Synthetic %02d", i+1),
			population: 60_000 + rng.IntN(400_000),
			seed:       1 + rng.Float64()*6,
			doubling:   2 + rng.Float64()*3,
			slowdown:   0.1 + rng.Float64()*0.4,
		}
	}
	return out
}

// generateRows emits one row per district, day and age group with a share of
// that day's new cases, or a single zero row on a day without cases. Roughly
// one district day in forty carries a negative correction row.
func generateRows(rng *rand.Rand, districts []region, first time.Time, days int) [][]string {
	var rows [][]string
	stamp := first.AddDate(0, 0, days).Format("02.01.2006") + ", 00:00 Uhr"
	fid := 1

	for _, r := range districts {
		cumulative := 0.0
		for d := range days {
			dt := r.doubling + r.slowdown*float64(d)
			target := r.seed * math.Pow(2, float64(d)/dt)
			noise := 1 + (rng.Float64()-0.5)*0.2
			newCases := int(math.Max(0, math.Round(target*noise-cumulative)))
			cumulative += float64(newCases)

			date := first.AddDate(0, 0, d).Format("2006/01/02") + " 00:00:00"
			if newCases == 0 {
				rows = append(rows, row(fid, r, ageGroups[fid%len(ageGroups)], 0, 0, 0, date, stamp))
				fid++
				continue
			}
			for _, count := range split(rng, newCases, len(ageGroups)) {
				if count == 0 {
					fid++
					continue
				}
				deaths := binomial(rng, count, 0.02)
				recovered := binomial(rng, count-deaths, 0.6)
				rows = append(rows, row(fid, r, ageGroups[fid%len(ageGroups)], count, deaths, recovered, date, stamp))
				fid++
			}
			if newCases > 1 && rng.IntN(40) == 0 {
				rows = append(rows, row(fid, r, ageGroups[0], -1, 0, 0, date, stamp))
				cumulative--
				fid++
			}
		}
	}
	return rows
}

func row(fid int, r region, age string, cases, deaths, recovered int, date, stamp string) []string {
	sex := "M"
	if fid%2 == 0 {
		sex = "W"
	}
	return []string{
		strconv.Itoa(fid), "9", r.name, age, sex,
		strconv.Itoa(cases), strconv.Itoa(deaths), strconv.Itoa(fid), date, r.id,
		stamp, "0", "-9", strconv.Itoa(recovered),
	}
}

// split distributes n across k buckets at random.
func split(rng *rand.Rand, n, k int) []int {
	out := make([]int, k)
	for range n {
		out[rng.IntN(k)]++
	}
	return out
}

func binomial(rng *rand.Rand, n int, p float64) int {
	k := 0
	for range n {
		if rng.Float64() < p {
			k++
		}
	}
	return k
}

func writePopulation(path string, districts []region) error {
	rows := [][]string{{"Schlüsselnummer", "Kreisfreie Stadt / Landkreis", "Fläche km2", "Bevölkerung"}}
	for _, r := range districts {
		rows = append(rows, []string{r.id, r.name, "", strconv.Itoa(r.population)})
	}
	return writeCSV(path, ';', rows)
}

func writeCSV(path string, delim rune, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = delim
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// writeReport analyzes the generated dataset under a fixed clock so the
// report timestamp is reproducible.
func writeReport(csvPath, out string, first time.Time) error {
	domain.SetClock(clockwork.NewFakeClockAt(first.AddDate(0, 2, 0)))
	defer domain.SetClock(nil)

	cal, err := domain.NewCalendar(first.Year(), time.March, time.January, time.May)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewUnregisteredMetrics()

	source := csvsource.NewReader(csvPath, csvsource.DefaultLayout(), logger)
	analyzer := pipeline.NewAnalyzer(cal, pipeline.Options{StateName: "Synthetic"}, logger, metrics)
	p := pipeline.New(source, analyzer, nil, logger, metrics)

	report, err := p.RunOnce(context.Background())
	if err != nil {
		return fmt.Errorf("analyze %s: %w", csvPath, err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(out, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	return nil
}
