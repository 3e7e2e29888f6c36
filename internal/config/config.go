package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"quizroom-service/internal/app"
)

type Config struct {
	Server struct {
		Port         string   `yaml:"port" validate:"omitempty,numeric"`
		ReadTimeout  string   `yaml:"readTimeout" validate:"duration"`
		WriteTimeout string   `yaml:"writeTimeout" validate:"duration"`
		AllowOrigins []string `yaml:"allowOrigins"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr" validate:"omitempty,hostname_port"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db" validate:"gte=0"`
		TTL      string `yaml:"ttl" validate:"duration"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	NATS struct {
		URL           string `yaml:"url"`
		Stream        string `yaml:"stream"`
		SubjectPrefix string `yaml:"subjectPrefix"`
	} `yaml:"nats"`
	Auth struct {
		TicketSecret string `yaml:"ticketSecret" validate:"required_with=Required"`
		TicketTTL    string `yaml:"ticketTTL" validate:"duration"`
		Required     bool   `yaml:"required"`
	} `yaml:"auth"`
	Rooms struct {
		MaxParticipants      int    `yaml:"maxParticipants" validate:"gte=0"`
		DefaultTimeLimit     string `yaml:"defaultTimeLimit" validate:"duration"`
		MaxTimeLimit         string `yaml:"maxTimeLimit" validate:"duration"`
		WaitingTTL           string `yaml:"waitingTTL" validate:"duration"`
		FinishedRetention    string `yaml:"finishedRetention" validate:"duration"`
		SweepInterval        string `yaml:"sweepInterval" validate:"duration"`
		StallGrace           string `yaml:"stallGrace" validate:"duration"`
		GenerationTimeout    string `yaml:"generationTimeout" validate:"duration"`
		ResultTimeout        string `yaml:"resultTimeout" validate:"duration"`
		DefaultQuestionCount int    `yaml:"defaultQuestionCount" validate:"gte=0"`
		MaxQuestionCount     int    `yaml:"maxQuestionCount" validate:"gte=0"`
	} `yaml:"rooms"`
	Quiz struct {
		TTL string `yaml:"ttl" validate:"duration"`
	} `yaml:"quiz"`
	WebSocket struct {
		PingInterval   string `yaml:"pingInterval" validate:"duration"`
		ReadTimeout    string `yaml:"readTimeout" validate:"duration"`
		WriteTimeout   string `yaml:"writeTimeout" validate:"duration"`
		SendBuffer     int    `yaml:"sendBuffer" validate:"gte=0"`
		MaxMessageSize int64  `yaml:"maxMessageSize" validate:"gte=0"`
	} `yaml:"websocket"`
}

// Load reads YAML config from path, applies environment overrides and validates it.
// An empty path yields a config built from the environment alone.
func Load(path string) (Config, error) {
	cfg := Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv lets deployment secrets and endpoints come from the environment (or .env).
func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	override(&c.Server.Port, "PORT")
	override(&c.Log.Level, "LOG_LEVEL")
	override(&c.Redis.Addr, "REDIS_ADDR")
	override(&c.Redis.Password, "REDIS_PASSWORD")
	override(&c.Postgres.URL, "POSTGRES_URL")
	override(&c.NATS.URL, "NATS_URL")
	override(&c.Auth.TicketSecret, "TICKET_SECRET")
}

// Validate checks field constraints and reports every violation at once.
func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.RegisterValidation("duration", validDuration); err != nil {
		return err
	}

	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return fmt.Errorf("config validator: %w", err)
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	messages := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		messages = append(messages, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config:\n- %s", strings.Join(messages, "\n- "))
}

func validDuration(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if raw == "" {
		return true
	}
	d, err := time.ParseDuration(raw)
	return err == nil && d >= 0
}

// RoomSettings converts the rooms section into app.Settings, falling back to defaults.
func (c Config) RoomSettings() app.Settings {
	def := app.DefaultSettings()
	r := c.Rooms
	s := app.Settings{
		MaxParticipants:      def.MaxParticipants,
		DefaultTimeLimit:     TTLDuration(r.DefaultTimeLimit, def.DefaultTimeLimit),
		MaxTimeLimit:         TTLDuration(r.MaxTimeLimit, def.MaxTimeLimit),
		WaitingTTL:           TTLDuration(r.WaitingTTL, def.WaitingTTL),
		FinishedRetention:    TTLDuration(r.FinishedRetention, def.FinishedRetention),
		SweepInterval:        TTLDuration(r.SweepInterval, def.SweepInterval),
		StallGrace:           TTLDuration(r.StallGrace, def.StallGrace),
		GenerationTimeout:    TTLDuration(r.GenerationTimeout, def.GenerationTimeout),
		ResultTimeout:        TTLDuration(r.ResultTimeout, def.ResultTimeout),
		DefaultQuestionCount: def.DefaultQuestionCount,
		MaxQuestionCount:     def.MaxQuestionCount,
	}
	if r.MaxParticipants > 0 {
		s.MaxParticipants = r.MaxParticipants
	}
	if r.DefaultQuestionCount > 0 {
		s.DefaultQuestionCount = r.DefaultQuestionCount
	}
	if r.MaxQuestionCount > 0 {
		s.MaxQuestionCount = r.MaxQuestionCount
	}
	if s.MaxTimeLimit < s.DefaultTimeLimit {
		s.MaxTimeLimit = s.DefaultTimeLimit
	}
	return s
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
