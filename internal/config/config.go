package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"nav-simulator/internal/feed"
	"nav-simulator/internal/nav"
)

type Config struct {
	HTTPAddr    string
	MetricsAddr string
	LogLevel    logrus.Level
	LogJSON     bool

	MapsAPIKey      string
	MapsBaseURL     string
	MapsHTTPTimeout time.Duration

	Feed          feed.Options
	Start         nav.LatLng
	AdvanceRadius float64 // meters
	Theme         nav.Theme
	SystemTheme   nav.Theme
	Traffic       bool // initial traffic overlay

	NATSURL           string
	NATSSubjectPrefix string
	NATSSensorSubject string
	LogNATSSubjects   bool

	KafkaBrokers []string
	KafkaTopic   string
	DeviceID     string
	VehicleID    string

	// DatabaseURL is empty unless a places gazetteer is configured.
	DatabaseURL string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		MetricsAddr:       os.Getenv("METRICS_ADDR"),
		MapsAPIKey:        strings.TrimSpace(os.Getenv("MAPS_API_KEY")),
		MapsBaseURL:       getenvDefault("MAPS_BASE_URL", "https://maps.googleapis.com"),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: getenvDefault("NATS_SUBJECT_PREFIX", "nav"),
		NATSSensorSubject: getenvDefault("NATS_SENSOR_SUBJECT", "nav.sensor"),
		KafkaTopic:        getenvDefault("KAFKA_TOPIC", "gps-data"),
		DeviceID:          getenvDefault("DEVICE_ID", "navsim-1"),
		VehicleID:         getenvDefault("VEHICLE_ID", "vehicle-1"),
		LogNATSSubjects:   parseBool(os.Getenv("LOG_NATS_SUBJECTS")),
		Traffic:           parseBool(getenvDefault("TRAFFIC_DEFAULT", "true")),
		Feed:              feed.DefaultOptions(),
	}

	level, err := logrus.ParseLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %v", err)
	}
	cfg.LogLevel = level
	switch f := strings.ToLower(getenvDefault("LOG_FORMAT", "text")); f {
	case "json":
		cfg.LogJSON = true
	case "text":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT: %q", f)
	}

	if cfg.MapsHTTPTimeout, err = durationEnv("MAPS_HTTP_TIMEOUT_SEC", time.Second, 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.Feed.Interval, err = durationEnv("SIM_INTERVAL_MS", time.Millisecond, cfg.Feed.Interval); err != nil {
		return nil, err
	}
	if cfg.Feed.WatchTimeout, err = durationEnv("SENSOR_WATCH_TIMEOUT_MS", time.Millisecond, cfg.Feed.WatchTimeout); err != nil {
		return nil, err
	}
	if cfg.Feed.InitialTimeout, err = durationEnv("SENSOR_INITIAL_TIMEOUT_MS", time.Millisecond, cfg.Feed.InitialTimeout); err != nil {
		return nil, err
	}
	if cfg.Feed.RetryDelay, err = durationEnv("SENSOR_RETRY_MS", time.Millisecond, cfg.Feed.RetryDelay); err != nil {
		return nil, err
	}
	if cfg.Feed.Sim.HeadingStep, err = floatEnv("SIM_HEADING_STEP_DEG", cfg.Feed.Sim.HeadingStep, false); err != nil {
		return nil, err
	}
	if cfg.Feed.Sim.Step, err = floatEnv("SIM_STEP_DEG", cfg.Feed.Sim.Step, true); err != nil {
		return nil, err
	}
	if cfg.AdvanceRadius, err = floatEnv("STEP_ADVANCE_RADIUS_M", 25, false); err != nil {
		return nil, err
	}
	if cfg.AdvanceRadius < 0 {
		return nil, fmt.Errorf("invalid STEP_ADVANCE_RADIUS_M: %v", cfg.AdvanceRadius)
	}

	// Start position defaults to downtown San Francisco.
	if cfg.Start.Lat, err = floatEnv("START_LAT", 37.7749, false); err != nil {
		return nil, err
	}
	if cfg.Start.Lng, err = floatEnv("START_LNG", -122.4194, false); err != nil {
		return nil, err
	}
	if cfg.Start.Lat < -90 || cfg.Start.Lat > 90 || cfg.Start.Lng < -180 || cfg.Start.Lng > 180 {
		return nil, fmt.Errorf("start position out of range: %v,%v", cfg.Start.Lat, cfg.Start.Lng)
	}

	var ok bool
	if cfg.Theme, ok = nav.ParseTheme(getenvDefault("DEFAULT_THEME", "DARK")); !ok {
		return nil, fmt.Errorf("invalid DEFAULT_THEME: %q", os.Getenv("DEFAULT_THEME"))
	}
	if cfg.SystemTheme, ok = nav.ParseTheme(getenvDefault("SYSTEM_THEME", "DARK")); !ok || cfg.SystemTheme == nav.ThemeSystem {
		return nil, fmt.Errorf("invalid SYSTEM_THEME: %q", os.Getenv("SYSTEM_THEME"))
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars
	// when PGDATABASE is set.
	cfg.DatabaseURL = firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if cfg.DatabaseURL == "" {
		if db := os.Getenv("PGDATABASE"); db != "" {
			cfg.DatabaseURL = buildDSN(
				getenvDefault("PGHOST", "127.0.0.1"),
				getenvDefault("PGPORT", "5432"),
				getenvDefault("PGUSER", "postgres"),
				os.Getenv("PGPASSWORD"),
				db,
				getenvDefault("PGSSLMODE", "disable"),
			)
		}
	}

	return cfg, nil
}

func buildDSN(host, port, user, pass, db, sslmode string) string {
	if pass != "" {
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
	}
	return fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
}

func durationEnv(k string, unit, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return time.Duration(n) * unit, nil
}

func floatEnv(k string, def float64, positive bool) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || (positive && f <= 0) {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return f, nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
