// Command genlookups writes a reproducible set of lookup fixtures in every
// supported format, plus an entity config describing them, and checks that
// each file reads back to the variables it was generated from.
//
// Usage:
//
//	go run ./cmd/genlookups -out data/mock
package main

import (
	"flag"
	"fmt"
	"log"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-lookup-service/internal/lookup"
)

type station struct {
	id   string
	name string
	temp int
}

var stations = []station{
	{"EGLL", "London Heathrow", 11},
	{"KJFK", "New York Kennedy", 4},
	{"LSZH", "Zurich", 2},
	{"LFPG", "Paris Charles de Gaulle", 9},
	{"RJTT", "Tokyo Haneda", 15},
}

// entityDef places one format in its own directory.
type entityDef struct {
	name   string
	dir    string
	format lookup.Format
}

var entityDefs = []entityDef{
	{"Forecast", "forecasts", lookup.FormatLookup},
	{"Observation", "observations", lookup.FormatPHP},
	{"Climate", "climate", lookup.FormatRubyHash},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory for fixtures")
	periods := flag.Int("periods", 4, "number of forecast periods per station")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	// Fixed clock for reproducible issue times.
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC))

	for _, e := range entityDefs {
		dir := filepath.Join(*out, e.dir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		for _, s := range stations {
			vars := stationVars(s, clock.Now(), *periods)
			path := filepath.Join(dir, s.id+e.format.Extension())
			if err := os.WriteFile(path, []byte(render(e.format, vars)), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			if err := verify(path, e.format, vars); err != nil {
				return err
			}
		}
		log.Printf("%s: %d lookups in %s", e.name, len(stations), dir)
	}

	cfgPath := filepath.Join(*out, "lookups.yaml")
	if err := os.WriteFile(cfgPath, []byte(entityConfig()), 0o644); err != nil {
		return fmt.Errorf("writing entity config: %w", err)
	}
	log.Printf("wrote entity config: %s", cfgPath)
	return nil
}

func stationVars(s station, issued time.Time, periods int) map[string]string {
	vars := map[string]string{
		"_gmtissued": issued.Format("2006-01-02 15:04"),
		"_date0":     issued.Format("2006-01-02"),
		"_time0":     issued.Format("1504"),
		"_name":      s.name,
		"station":    s.id,
	}
	for i := 1; i <= periods; i++ {
		vars[fmt.Sprintf("_ptemp_%d", i)] = strconv.Itoa(s.temp + i)
		vars[fmt.Sprintf("_temp_hr_%d", i*6)] = strconv.Itoa(s.temp + i/2)
	}
	return vars
}

func sortedKeys(vars map[string]string) []string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func render(format lookup.Format, vars map[string]string) string {
	var sb strings.Builder
	switch format {
	case lookup.FormatPHP:
		sb.WriteString("<?\n$vars = array(\n")
		for _, k := range sortedKeys(vars) {
			fmt.Fprintf(&sb, "%q => %q,\n", k, vars[k])
		}
		sb.WriteString(");\n?>\n")
	case lookup.FormatRubyHash:
		sb.WriteString(lookup.Serialize(vars))
	default:
		for _, k := range sortedKeys(vars) {
			fmt.Fprintf(&sb, "%s|%s\n", k, vars[k])
		}
	}
	return sb.String()
}

func verify(path string, format lookup.Format, want map[string]string) error {
	n, err := lookup.ReadFile(path, format, nil)
	if err != nil {
		return fmt.Errorf("reading back %s: %w", path, err)
	}
	got, err := lookup.Parse(n.Text)
	if err != nil {
		return fmt.Errorf("parsing back %s: %w", path, err)
	}
	if !maps.Equal(got, want) {
		return fmt.Errorf("%s does not read back to its generated vars", path)
	}
	return nil
}

func entityConfig() string {
	var sb strings.Builder
	sb.WriteString("entities:\n")
	for _, e := range entityDefs {
		fmt.Fprintf(&sb, "  - name: %s\n    dir: %s\n    format: %s\n", e.name, e.dir, e.format)
	}
	return sb.String()
}
