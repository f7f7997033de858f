package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"leadgen-engine/internal/domain"
)

type Sender struct {
	Address    string `yaml:"address"`
	DailyLimit int    `yaml:"daily_limit"`
	SMTPHost   string `yaml:"smtp_host,omitempty"`
	SMTPPort   int    `yaml:"smtp_port,omitempty"`
}

type Config struct {
	App struct {
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Search struct {
		PlacesAPIKey       string  `yaml:"places_api_key"`
		PageDelaySeconds   float64 `yaml:"page_delay_seconds"`
		MaxPages           int     `yaml:"max_pages"`
		DetailTimeoutSecs  int     `yaml:"detail_timeout_seconds"`
		SiteTimeoutSeconds int     `yaml:"site_timeout_seconds"`
	} `yaml:"search"`

	Crawl struct {
		PageTimeoutSeconds  int     `yaml:"page_timeout_seconds"`
		ProbeTimeoutSeconds int     `yaml:"probe_timeout_seconds"`
		MaxParallel         int     `yaml:"max_parallel"`
		RequestsPerSec      float64 `yaml:"requests_per_sec"`
		Burst               int     `yaml:"burst"`
	} `yaml:"crawl"`

	Dispatch struct {
		DelayMinSeconds float64  `yaml:"delay_min_seconds"`
		DelayMaxSeconds float64  `yaml:"delay_max_seconds"`
		Senders         []Sender `yaml:"senders"`
	} `yaml:"dispatch"`

	FollowUp struct {
		Enabled          bool   `yaml:"enabled"`
		Days             int    `yaml:"days"`
		MaxCount         int    `yaml:"max_count"`
		Cron             string `yaml:"cron"`
		SendDelaySeconds int    `yaml:"send_delay_seconds"`
	} `yaml:"follow_up"`

	Replies struct {
		Enabled      bool   `yaml:"enabled"`
		IMAPHost     string `yaml:"imap_host"`
		IMAPPort     int    `yaml:"imap_port"`
		Username     string `yaml:"username"`
		Mailbox      string `yaml:"mailbox"`
		CheckSeconds int    `yaml:"check_seconds"`
	} `yaml:"replies"`
}

func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

// Identities converts the configured senders into domain identities.
func (c Config) Identities() []domain.SenderIdentity {
	out := make([]domain.SenderIdentity, 0, len(c.Dispatch.Senders))
	for _, s := range c.Dispatch.Senders {
		out = append(out, domain.SenderIdentity{
			Address:    s.Address,
			DailyLimit: s.DailyLimit,
			SMTPHost:   s.SMTPHost,
			SMTPPort:   s.SMTPPort,
		})
	}
	return out
}

func (c Config) DispatchDelayMin() time.Duration {
	return time.Duration(c.Dispatch.DelayMinSeconds * float64(time.Second))
}

func (c Config) DispatchDelayMax() time.Duration {
	return time.Duration(c.Dispatch.DelayMaxSeconds * float64(time.Second))
}
