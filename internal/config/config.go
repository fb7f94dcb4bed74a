package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/case-trend-etl/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DatasetPath    string
	PopulationPath string
	DatasetProfile string // YAML column layout; empty selects the built-in RKI layout
	StateName      string
	RegionIDs      []string // empty analyzes every region in the dataset

	AggregationPolicy domain.AggregationPolicy
	CalendarYear      int
	ReferenceMonth    time.Month
	FirstMonth        time.Month
	LastMonth         time.Month

	RankSize int
	Workers  int

	// Intensive care projection.
	CareShare    float64
	CareCapacity map[string]domain.Capacity

	KafkaBrokers    []string // empty disables the Kafka sink
	KafkaSinkTopic  string
	HTTPAddr        string
	XLSXOut         string
	RefreshInterval time.Duration // serve mode re-analysis period; zero analyzes once

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	policy, err := domain.ParseAggregationPolicy(sharedcfg.EnvOrDefault("AGGREGATION_POLICY", string(domain.SumAll)))
	if err != nil {
		return nil, err
	}

	year, err := positiveInt("CALENDAR_YEAR", 2020)
	if err != nil {
		return nil, err
	}
	reference, err := month("CALENDAR_REFERENCE_MONTH", time.March)
	if err != nil {
		return nil, err
	}
	first, err := month("CALENDAR_FIRST_MONTH", time.January)
	if err != nil {
		return nil, err
	}
	last, err := month("CALENDAR_LAST_MONTH", time.May)
	if err != nil {
		return nil, err
	}

	rankSize, err := positiveInt("RANK_SIZE", domain.DefaultRankSize)
	if err != nil {
		return nil, err
	}
	workers, err := positiveInt("WORKERS", 1)
	if err != nil {
		return nil, err
	}

	careShare, err := parseCareShare(sharedcfg.EnvOrDefault("CARE_SHARE", strconv.FormatFloat(domain.DefaultCareShare, 'f', -1, 64)))
	if err != nil {
		return nil, err
	}
	capacity, err := ParseCareCapacity(os.Getenv("CARE_CAPACITY"))
	if err != nil {
		return nil, err
	}

	refresh, err := time.ParseDuration(sharedcfg.EnvOrDefault("REFRESH_INTERVAL", "0s"))
	if err != nil || refresh < 0 {
		return nil, errors.New("invalid REFRESH_INTERVAL")
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		DatasetPath:       sharedcfg.EnvOrDefault("DATASET_PATH", "data/RKI_COVID19.csv"),
		PopulationPath:    os.Getenv("POPULATION_PATH"),
		DatasetProfile:    os.Getenv("DATASET_PROFILE"),
		StateName:         sharedcfg.EnvOrDefault("STATE_NAME", "Bavaria"),
		RegionIDs:         splitList(os.Getenv("REGION_IDS")),
		AggregationPolicy: policy,
		CalendarYear:      year,
		ReferenceMonth:    reference,
		FirstMonth:        first,
		LastMonth:         last,
		RankSize:          rankSize,
		Workers:           workers,
		CareShare:         careShare,
		CareCapacity:      capacity,
		KafkaBrokers:      brokers,
		KafkaSinkTopic:    sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "case-trend-reports"),
		HTTPAddr:          sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		XLSXOut:           os.Getenv("XLSX_OUT"),
		RefreshInterval:   refresh,
		LogLevel:          sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:   shutdownTimeout,
	}

	if cfg.DatasetPath == "" {
		return nil, errors.New("DATASET_PATH is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}
	if _, err := cfg.Calendar(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Calendar builds the day axis calendar from the configured window.
func (c *Config) Calendar() (*domain.Calendar, error) {
	return domain.NewCalendar(c.CalendarYear, c.ReferenceMonth, c.FirstMonth, c.LastMonth)
}

// KafkaEnabled reports whether reports should be published to Kafka.
func (c *Config) KafkaEnabled() bool { return len(c.KafkaBrokers) > 0 }

// ParseCareCapacity parses "id:min:max" entries separated by commas, e.g.
// "09182:14:28,09162:120:180".
func ParseCareCapacity(s string) (map[string]domain.Capacity, error) {
	out := make(map[string]domain.Capacity)
	for _, entry := range splitList(s) {
		parts := strings.Split(entry, ":")
		if len(parts) != 3 || parts[0] == "" {
			return nil, fmt.Errorf("invalid CARE_CAPACITY entry %q (want id:min:max)", entry)
		}
		lo, err1 := strconv.ParseFloat(parts[1], 64)
		hi, err2 := strconv.ParseFloat(parts[2], 64)
		if err1 != nil || err2 != nil || lo < 0 || hi < lo {
			return nil, fmt.Errorf("invalid CARE_CAPACITY range in %q", entry)
		}
		out[parts[0]] = domain.Capacity{Min: lo, Max: hi}
	}
	return out, nil
}

func parseCareShare(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v > 1 {
		return 0, errors.New("invalid CARE_SHARE (want a fraction between 0 and 1)")
	}
	return v, nil
}

func positiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

// month accepts a month number or an English month name.
func month(key string, def time.Month) (time.Month, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= 12 {
		return time.Month(n), nil
	}
	for m := time.January; m <= time.December; m++ {
		name := m.String()
		if strings.EqualFold(s, name) || strings.EqualFold(s, name[:3]) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("invalid %s %q", key, s)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
