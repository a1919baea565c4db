package config

import (
	"net/url"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata" // report timezone must resolve in minimal containers

	"github.com/cockroachdb/errors"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"hotel-monitor/models"
)

var dateRegex = regexp.MustCompile(`^\d{4}/\d{2}/\d{2}$`)

// Config holds all application-level configuration. It is built once at
// startup and passed by reference; nothing reads it from package state.
type Config struct {
	Hotel      HotelConfig      `mapstructure:"hotel"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Scraper    ScraperConfig    `mapstructure:"scraper"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Server     ServerConfig     `mapstructure:"server"`

	// Loaded from the environment
	Mail MailConfig `mapstructure:"-"`
	Env  EnvConfig  `mapstructure:"-"`
}

type HotelConfig struct {
	Name    string `mapstructure:"name"`
	URL     string `mapstructure:"url"`
	Code    string `mapstructure:"code"`
	BaseURL string `mapstructure:"baseUrl"`
}

type MonitoringConfig struct {
	CheckinDates       []string `mapstructure:"checkinDates"`
	RoomKeywords       []string `mapstructure:"roomKeywords"`
	RoomLabel          string   `mapstructure:"roomLabel"`
	Adults             int      `mapstructure:"adults"`
	Currency           string   `mapstructure:"currency"`
	FallbackCurrencies []string `mapstructure:"fallbackCurrencies"`
}

type ScheduleConfig struct {
	Cron                string `mapstructure:"cron"` // informational; the external scheduler owns it
	Timezone            string `mapstructure:"timezone"`
	ReportHours         []int  `mapstructure:"reportHours"`
	ReportWindowMinutes int    `mapstructure:"reportWindowMinutes"`
}

type ScraperConfig struct {
	Headless            bool   `mapstructure:"headless"`
	UserAgent           string `mapstructure:"userAgent"`
	NavigationTimeoutMs int    `mapstructure:"navigationTimeoutMs"`
	StabilizeDelayMs    int    `mapstructure:"stabilizeDelayMs"`
	RequestDelayMs      int    `mapstructure:"requestDelayMs"` // between dates
	MaxRetries          int    `mapstructure:"maxRetries"`
}

type StorageConfig struct {
	StateFile   string `mapstructure:"stateFile"`
	HistoryCSV  string `mapstructure:"historyCsv"`
	DatabaseURL string `mapstructure:"databaseUrl"`
}

type ServerConfig struct {
	Addr         string   `mapstructure:"addr"`
	AllowOrigins []string `mapstructure:"allowOrigins"`
}

// MailConfig comes from the environment only; credentials never live in config.json
type MailConfig struct {
	User     string `envconfig:"GMAIL_USER"`
	Password string `envconfig:"GMAIL_APP_PASSWORD"`
	To       string `envconfig:"MAIL_TO"`
	SMTPHost string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort int    `envconfig:"SMTP_PORT" default:"587"`
}

type EnvConfig struct {
	DatabaseURL string `envconfig:"DATABASE_URL"`
	StateFile   string `envconfig:"STATE_FILE"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile     string `envconfig:"LOG_FILE"`
}

// Load reads config.json (or the given path) and the environment, applies
// defaults and validates the result
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if err := envconfig.Process("", &cfg.Mail); err != nil {
		return nil, errors.Wrap(err, "processing mail env")
	}
	if err := envconfig.Process("", &cfg.Env); err != nil {
		return nil, errors.Wrap(err, "processing env")
	}
	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("hotel.name", "Daiwa Roynet Hotel Morioka Ekimae")
	v.SetDefault("hotel.baseUrl", "https://reserve.daiwaroynet.jp/booking/result")
	v.SetDefault("monitoring.roomKeywords", []string{"クアッド", "Quad", "四人房", "4人房", "4名"})
	v.SetDefault("monitoring.roomLabel", "Quad room")
	v.SetDefault("monitoring.adults", 4)
	v.SetDefault("monitoring.currency", "TWD")
	v.SetDefault("monitoring.fallbackCurrencies", []string{"TWD", "JPY"})
	v.SetDefault("schedule.cron", "0 * * * *")
	v.SetDefault("schedule.timezone", "Asia/Taipei")
	v.SetDefault("schedule.reportHours", []int{6, 18})
	v.SetDefault("schedule.reportWindowMinutes", 30)
	v.SetDefault("scraper.headless", true)
	v.SetDefault("scraper.userAgent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("scraper.navigationTimeoutMs", 60000)
	v.SetDefault("scraper.stabilizeDelayMs", 8000)
	v.SetDefault("scraper.requestDelayMs", 2000)
	v.SetDefault("scraper.maxRetries", 2)
	v.SetDefault("storage.stateFile", "last_state.json")
	v.SetDefault("storage.historyCsv", "output/history.csv")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowOrigins", []string{"*"})
}

func (c *Config) applyEnv() {
	if c.Env.DatabaseURL != "" {
		c.Storage.DatabaseURL = c.Env.DatabaseURL
	}
	if c.Env.StateFile != "" {
		c.Storage.StateFile = c.Env.StateFile
	}
}

func (c *Config) normalize() {
	c.Hotel.Name = strings.TrimSpace(c.Hotel.Name)
	if c.Hotel.Code == "" && c.Hotel.URL != "" {
		c.Hotel.Code = codeFromURL(c.Hotel.URL)
	}
	c.Monitoring.CheckinDates = trimAll(c.Monitoring.CheckinDates)
	c.Monitoring.RoomKeywords = trimAll(c.Monitoring.RoomKeywords)
	c.Monitoring.Currency = strings.ToUpper(strings.TrimSpace(c.Monitoring.Currency))
}

// codeFromURL pulls the hotel code out of a booking URL's "code" query parameter
func codeFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Query().Get("code")
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks the invariants the monitor relies on
func (c *Config) Validate() error {
	if c.Hotel.Code == "" {
		return errors.New("hotel.code is required (or a hotel.url carrying a code parameter)")
	}
	if len(c.Monitoring.CheckinDates) < 2 {
		return errors.New("monitoring.checkinDates needs at least two dates (the last one is only a checkout)")
	}
	var bad []string
	for _, d := range c.Monitoring.CheckinDates {
		if !dateRegex.MatchString(d) {
			bad = append(bad, d)
			continue
		}
		if _, err := time.Parse(models.DateLayout, d); err != nil {
			bad = append(bad, d)
		}
	}
	if len(bad) > 0 {
		return errors.Newf("invalid check-in dates %v, expected YYYY/MM/DD", bad)
	}
	if len(c.Monitoring.RoomKeywords) == 0 {
		return errors.New("monitoring.roomKeywords must not be empty")
	}
	if c.Monitoring.Adults < 1 || c.Monitoring.Adults > 10 {
		return errors.Newf("monitoring.adults must be 1..10, got %d", c.Monitoring.Adults)
	}
	if _, ok := models.ParseCurrency(c.Monitoring.Currency); !ok {
		return errors.Newf("unsupported display currency %q", c.Monitoring.Currency)
	}
	for _, fc := range c.Monitoring.FallbackCurrencies {
		if _, ok := models.ParseCurrency(fc); !ok {
			return errors.Newf("unsupported fallback currency %q", fc)
		}
	}
	if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
		return errors.Wrapf(err, "schedule.timezone %q", c.Schedule.Timezone)
	}
	return nil
}

// Currencies returns the display currency followed by the fallbacks, without duplicates
func (c *Config) Currencies() []models.Currency {
	seen := make(map[models.Currency]bool)
	var out []models.Currency
	add := func(s string) {
		if cur, ok := models.ParseCurrency(s); ok && !seen[cur] {
			seen[cur] = true
			out = append(out, cur)
		}
	}
	add(c.Monitoring.Currency)
	for _, fc := range c.Monitoring.FallbackCurrencies {
		add(fc)
	}
	return out
}

// Location returns the reporting timezone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Scraper.NavigationTimeoutMs) * time.Millisecond
}

func (c *Config) StabilizeDelay() time.Duration {
	return time.Duration(c.Scraper.StabilizeDelayMs) * time.Millisecond
}
