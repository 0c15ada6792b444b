package store

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DataSource string `yaml:"data_source"`
	Exchange   string `yaml:"exchange"`
	Universe   struct {
		Static []string `yaml:"static"`
		Scrape struct {
			URL      string `yaml:"url"`
			Selector string `yaml:"selector"`
			Column   int    `yaml:"column"`
			Suffix   string `yaml:"suffix"`
		} `yaml:"scrape"`
	} `yaml:"universe"`
	History struct {
		From string `yaml:"from"`
	} `yaml:"history"`
	Sources struct {
		YahooBaseURL   string `yaml:"yahoo_base_url"`
		TimeoutSecs    int    `yaml:"timeout_seconds"`
		RequestsPerSec int    `yaml:"requests_per_second"`
	} `yaml:"sources"`
	Storage struct {
		SQLitePath string `yaml:"sqlite_path"`
		ModelPath  string `yaml:"model_path"`
		CSVPath    string `yaml:"csv_path"`
	} `yaml:"storage"`
	Pipeline struct {
		Workers int `yaml:"workers"`
	} `yaml:"pipeline"`
	Training struct {
		MinRows       int     `yaml:"min_rows"`
		TrainFraction float64 `yaml:"train_fraction"`
		Epochs        int     `yaml:"epochs"`
		LearningRate  float64 `yaml:"learning_rate"`
		L2            float64 `yaml:"l2"`
	} `yaml:"training"`
	Signals struct {
		RefreshSeconds       int    `yaml:"refresh_seconds"`
		ListenAddr           string `yaml:"listen_addr"`
		ReportDir            string `yaml:"report_dir"`
		JournalRetentionDays int    `yaml:"journal_retention_days"`
	} `yaml:"signals"`
}

func (c *Config) Validate() error {
	switch c.DataSource {
	case "YAHOO", "KITE", "CSV":
	default:
		return fmt.Errorf("invalid data_source '%s': must be 'YAHOO', 'KITE' or 'CSV'", c.DataSource)
	}
	if len(c.Universe.Static) == 0 && c.Universe.Scrape.URL == "" {
		return errors.New("universe.static cannot be empty unless universe.scrape.url is set")
	}
	if c.Universe.Scrape.URL != "" && c.Universe.Scrape.Selector == "" {
		return errors.New("universe.scrape.selector is required with universe.scrape.url")
	}
	if _, err := c.HistoryFrom(); err != nil {
		return fmt.Errorf("history.from: %w", err)
	}
	if c.DataSource == "CSV" && c.Storage.CSVPath == "" {
		return errors.New("storage.csv_path is required for data_source 'CSV'")
	}
	if c.Training.TrainFraction <= 0 || c.Training.TrainFraction >= 1 {
		return fmt.Errorf("training.train_fraction must be between 0 and 1, got %.2f", c.Training.TrainFraction)
	}
	if c.Training.MinRows < 2 {
		return fmt.Errorf("training.min_rows must be at least 2, got %d", c.Training.MinRows)
	}
	return nil
}

// HistoryFrom is the first day requested from bar sources.
func (c *Config) HistoryFrom() (time.Time, error) {
	return time.Parse("2006-01-02", c.History.From)
}

func (c *Config) applyDefaults() {
	if c.DataSource == "" {
		c.DataSource = "YAHOO"
	}
	c.DataSource = strings.ToUpper(c.DataSource)
	if c.Exchange == "" {
		c.Exchange = "NSE"
	}
	if c.History.From == "" {
		c.History.From = "2000-01-01"
	}
	if c.Sources.YahooBaseURL == "" {
		c.Sources.YahooBaseURL = "https://query1.finance.yahoo.com"
	}
	if c.Sources.TimeoutSecs == 0 {
		c.Sources.TimeoutSecs = 30
	}
	if c.Sources.RequestsPerSec == 0 {
		c.Sources.RequestsPerSec = 3
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "db/database.db"
	}
	if c.Storage.ModelPath == "" {
		c.Storage.ModelPath = "models"
	}
	if c.Training.MinRows == 0 {
		c.Training.MinRows = 50
	}
	if c.Training.TrainFraction == 0 {
		c.Training.TrainFraction = 0.8
	}
	if c.Training.Epochs == 0 {
		c.Training.Epochs = 300
	}
	if c.Training.LearningRate == 0 {
		c.Training.LearningRate = 0.1
	}
	if c.Signals.RefreshSeconds == 0 {
		c.Signals.RefreshSeconds = 60
	}
	if c.Signals.ListenAddr == "" {
		c.Signals.ListenAddr = ":8080"
	}
	if c.Signals.ReportDir == "" {
		c.Signals.ReportDir = "logs"
	}
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

func ParseConfig(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &c, nil
}
