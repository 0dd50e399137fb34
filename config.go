package triptracker

import (
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/ibi-group/otp-middleware-sub001/interaction"
)

type ServerConfig struct {
	Port int `yaml:"port" validate:"gt=0"`
}

type OTPConfig struct {
	BaseURL   string `yaml:"baseURL" validate:"required,url"`
	TimeoutMS int    `yaml:"timeoutMS" validate:"gte=0"`
}

// TrackingConfig carries the geometric and timing thresholds of the core.
// The exclusion radius and distance-proportional time allocation are
// approximations inherited from the planning side; they are configuration,
// not derived values.
type TrackingConfig struct {
	DeviationMeters           float64 `yaml:"deviationMeters" validate:"gte=0"`
	ScheduleBandSeconds       int     `yaml:"scheduleBandSeconds" validate:"gte=0"`
	StepExclusionRadiusMeters float64 `yaml:"stepExclusionRadiusMeters" validate:"gte=0"`

	UpcomingRadiusMeters    float64 `yaml:"upcomingRadiusMeters" validate:"gte=0"`
	ImmediateRadiusMeters   float64 `yaml:"immediateRadiusMeters" validate:"gte=0"`
	DestinationRadiusMeters float64 `yaml:"destinationRadiusMeters" validate:"gte=0"`

	TransitApproachStops  int     `yaml:"transitApproachStops" validate:"gte=0"`
	TransitApproachMeters float64 `yaml:"transitApproachMeters" validate:"gte=0"`
}

type InteractionsConfig struct {
	SignalURL       string              `yaml:"signalURL" validate:"omitempty,url"`
	SignalAPIKey    string              `yaml:"signalAPIKey"`
	BusNotifyURL    string              `yaml:"busNotifyURL" validate:"omitempty,url"`
	BusNotifyAPIKey string              `yaml:"busNotifyAPIKey"`
	TimeoutMS       int                 `yaml:"timeoutMS" validate:"gte=0"`
	Rules           interaction.RuleSet `yaml:"rules"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type NATSConfig struct {
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subjectPrefix"`
}

// AppConfig is the root configuration. Loaded once at process start and
// passed explicitly to whatever needs it; nothing reads it through a global.
type AppConfig struct {
	Server       ServerConfig       `yaml:"server" validate:"required"`
	OTP          OTPConfig          `yaml:"otp" validate:"required"`
	Tracking     TrackingConfig     `yaml:"tracking"`
	Interactions InteractionsConfig `yaml:"interactions"`
	Database     DatabaseConfig     `yaml:"database"`
	NATS         NATSConfig         `yaml:"nats"`
}

// LoadAppConfig reads and validates the YAML config. An empty path falls
// back to config.yml in the working directory.
func LoadAppConfig(path string) (AppConfig, error) {
	var cfg AppConfig
	if path == "" {
		path = "config.yml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return cfg, err
	}
	for _, rule := range cfg.Interactions.Rules.Segments {
		if err := v.Struct(rule); err != nil {
			return cfg, err
		}
	}
	for _, rule := range cfg.Interactions.Rules.Agencies {
		if err := v.Struct(rule); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func (cfg *AppConfig) applyDefaults() {
	t := &cfg.Tracking
	if t.DeviationMeters == 0 {
		t.DeviationMeters = 50
	}
	if t.ScheduleBandSeconds == 0 {
		t.ScheduleBandSeconds = 30
	}
	if t.StepExclusionRadiusMeters == 0 {
		t.StepExclusionRadiusMeters = 10
	}
	if t.UpcomingRadiusMeters == 0 {
		t.UpcomingRadiusMeters = 10
	}
	if t.ImmediateRadiusMeters == 0 {
		t.ImmediateRadiusMeters = 2
	}
	if t.DestinationRadiusMeters == 0 {
		t.DestinationRadiusMeters = 5
	}
	if t.TransitApproachStops == 0 {
		t.TransitApproachStops = 2
	}
	if t.TransitApproachMeters == 0 {
		t.TransitApproachMeters = 500
	}
	if cfg.Interactions.TimeoutMS == 0 {
		cfg.Interactions.TimeoutMS = 2000
	}
	if cfg.OTP.TimeoutMS == 0 {
		cfg.OTP.TimeoutMS = 5000
	}
}
