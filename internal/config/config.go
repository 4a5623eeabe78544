package config

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/kubev2v/wave-planner/internal/planner"
)

var singleConfig *Config = nil

type Config struct {
	Database  *dbConfig
	Service   *svcConfig
	Planner   *plannerConfig
	OpenStack *openStackConfig
}

type dbConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"planner"`
	User     string `envconfig:"DB_USER" default:"admin"`
	Password string `envconfig:"DB_PASS" default:"adminpass"`
}

type svcConfig struct {
	Address         string   `envconfig:"WAVE_PLANNER_ADDRESS" default:":3443"`
	MetricsAddress  string   `envconfig:"WAVE_PLANNER_METRICS_ADDRESS" default:":8080"`
	BaseUrl         string   `envconfig:"WAVE_PLANNER_BASE_URL" default:"https://localhost:3443"`
	LogLevel        string   `envconfig:"WAVE_PLANNER_LOG_LEVEL" default:"info"`
	MigrationFolder string   `envconfig:"WAVE_PLANNER_MIGRATIONS_FOLDER" default:""`
	CorsOrigins     []string `envconfig:"WAVE_PLANNER_CORS_ORIGINS" default:"*"`
	EventsTopic     string   `envconfig:"WAVE_PLANNER_EVENTS_TOPIC" default:""`
	AuthType        string   `envconfig:"WAVE_PLANNER_AUTH" default:"none"`
}

// plannerConfig holds the defaults applied to a project when it is created
// without explicit capacity figures.
type plannerConfig struct {
	SourceNICMbps         float64 `envconfig:"WAVE_PLANNER_SOURCE_NIC_MBPS" default:"10000"`
	SourceNICUsablePct    float64 `envconfig:"WAVE_PLANNER_SOURCE_NIC_USABLE_PCT" default:"40"`
	LinkMbps              float64 `envconfig:"WAVE_PLANNER_LINK_MBPS" default:"10000"`
	LinkUsablePct         float64 `envconfig:"WAVE_PLANNER_LINK_USABLE_PCT" default:"40"`
	AgentCount            int     `envconfig:"WAVE_PLANNER_AGENT_COUNT" default:"2"`
	AgentSlots            int     `envconfig:"WAVE_PLANNER_AGENT_SLOTS" default:"8"`
	AgentNICMbps          float64 `envconfig:"WAVE_PLANNER_AGENT_NIC_MBPS" default:"10000"`
	AgentNICUsablePct     float64 `envconfig:"WAVE_PLANNER_AGENT_NIC_USABLE_PCT" default:"70"`
	StorageWriteMBps      float64 `envconfig:"WAVE_PLANNER_STORAGE_WRITE_MBPS" default:"500"`
	StorageWriteUsablePct float64 `envconfig:"WAVE_PLANNER_STORAGE_WRITE_USABLE_PCT" default:"100"`
	DiskBufferFactor      float64 `envconfig:"WAVE_PLANNER_DISK_BUFFER_FACTOR" default:"1.2"`
	ThinProvisionFactor   float64 `envconfig:"WAVE_PLANNER_THIN_PROVISION_FACTOR" default:"1.0"`
	WorkingHoursPerDay    float64 `envconfig:"WAVE_PLANNER_WORKING_HOURS_PER_DAY" default:"8"`
	WorkingDaysPerWeek    int     `envconfig:"WAVE_PLANNER_WORKING_DAYS_PER_WEEK" default:"5"`
	DurationDays          int     `envconfig:"WAVE_PLANNER_DURATION_DAYS" default:"90"`
	WorkerPoolSize        int     `envconfig:"WAVE_PLANNER_WORKER_POOL_SIZE" default:"16"`
}

// Settings returns the project defaults with the configured capacity figures applied.
func (c *plannerConfig) Settings() planner.Settings {
	s := planner.DefaultSettings()
	s.SourceNICMbps = c.SourceNICMbps
	s.SourceNICUsablePct = c.SourceNICUsablePct
	s.LinkMbps = c.LinkMbps
	s.LinkUsablePct = c.LinkUsablePct
	s.AgentCount = c.AgentCount
	s.AgentSlots = c.AgentSlots
	s.AgentNICMbps = c.AgentNICMbps
	s.AgentNICUsablePct = c.AgentNICUsablePct
	s.StorageWriteMBps = c.StorageWriteMBps
	s.StorageWriteUsablePct = c.StorageWriteUsablePct
	s.DiskBufferFactor = c.DiskBufferFactor
	s.ThinProvisionFactor = c.ThinProvisionFactor
	s.WorkingHoursPerDay = c.WorkingHoursPerDay
	s.WorkingDaysPerWeek = c.WorkingDaysPerWeek
	s.DurationDays = c.DurationDays
	return s
}

type openStackConfig struct {
	Enabled     bool   `envconfig:"OS_ENABLED" default:"false"`
	AuthURL     string `envconfig:"OS_AUTH_URL" default:""`
	Username    string `envconfig:"OS_USERNAME" default:""`
	Password    string `envconfig:"OS_PASSWORD" default:""`
	ProjectName string `envconfig:"OS_PROJECT_NAME" default:""`
	DomainName  string `envconfig:"OS_USER_DOMAIN_NAME" default:"Default"`
	RegionName  string `envconfig:"OS_REGION_NAME" default:""`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a configuration backed by a local sqlite file, used by
// tests and the offline CLI.
func NewDefault() *Config {
	cfg := new(Config)
	if err := envconfig.Process("", cfg); err != nil {
		panic(err)
	}
	cfg.Database.Type = "sqlite"
	cfg.Database.Name = "planner.db"
	return cfg
}
