package config

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/maxg/didit-sub000/internal/logger"
	"github.com/maxg/didit-sub000/internal/validator"
)

type ReposConfig struct {
	Student  string `mapstructure:"student"  validate:"required"`
	Staff    string `mapstructure:"staff"    validate:"required"`
	Starting string `mapstructure:"starting" validate:"required"`
	Branch   string `mapstructure:"branch"   validate:"required"`
	// Extra commits cloned beyond the computed depth
	CloneSlack int `mapstructure:"clone_slack" validate:"gte=0"`
	// Template for the post-receive hook installed in student repositories
	PostReceiveHook string `mapstructure:"post_receive_hook"`
}

type ToolConfig struct {
	Program string   `mapstructure:"program"    validate:"required"`
	Args    []string `mapstructure:"args"`
	Compile string   `mapstructure:"compile"    validate:"required"`
	Public  string   `mapstructure:"public"     validate:"required"`
	Hidden  string   `mapstructure:"hidden"     validate:"required"`
	Reports string   `mapstructure:"report_dir" validate:"required"`
}

type BuildConfig struct {
	Tool ToolConfig `mapstructure:"tool" validate:"required"`
	// Scratch space for working directories
	Dir         string        `mapstructure:"dir"          validate:"required"`
	Results     string        `mapstructure:"results"      validate:"required"`
	GracePeriod time.Duration `mapstructure:"grace_period"`
	Rubric      string        `mapstructure:"rubric"       validate:"required"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"  validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type WorkflowConfig struct {
	// memory or redis
	Backend          string        `mapstructure:"backend"           validate:"required,oneof=memory redis"`
	Domain           string        `mapstructure:"domain"            validate:"required"`
	PollTimeout      time.Duration `mapstructure:"poll_timeout"      validate:"required"`
	ErrorBackoff     time.Duration `mapstructure:"error_backoff"     validate:"required"`
	ActivityTimeout  time.Duration `mapstructure:"activity_timeout"  validate:"required"`
	ExecutionTimeout time.Duration `mapstructure:"execution_timeout" validate:"required"`
	StatsInterval    time.Duration `mapstructure:"stats_interval"    validate:"required"`
	StatsWindow      time.Duration `mapstructure:"stats_window"      validate:"required"`
	Redis            *RedisConfig  `mapstructure:"redis"`
}

type WorkerConfig struct {
	Concurrency          int64 `mapstructure:"concurrency"            validate:"required,gte=1"`
	GracefulShutdownSecs int64 `mapstructure:"graceful_shutdown_secs"`
}

type SweepConfig struct {
	Horizon     time.Duration `mapstructure:"horizon"     validate:"required"`
	Concurrency int           `mapstructure:"concurrency" validate:"required,gte=1"`
}

type S3ArchiveConfig struct {
	Endpoint        string `mapstructure:"endpoint"          validate:"required"`
	AccessKeyID     string `mapstructure:"access_key_id"     validate:"required"`
	SecretAccessKey string `mapstructure:"secret_access_key" validate:"required"`
	BucketName      string `mapstructure:"bucket_name"       validate:"required"`
	SSLEnabled      bool   `mapstructure:"ssl_enabled"`
}

type AzureArchiveConfig struct {
	AccountName string `mapstructure:"account_name" validate:"required"`
	AccountKey  string `mapstructure:"account_key"  validate:"required"`
	ServiceURL  string `mapstructure:"service_url"  validate:"required"`
	Container   string `mapstructure:"container"    validate:"required"`
}

type ArchiveConfig struct {
	// none, s3 or azure
	Backend string              `mapstructure:"backend" validate:"required,oneof=none s3 azure"`
	S3      *S3ArchiveConfig    `mapstructure:"s3"`
	Azure   *AzureArchiveConfig `mapstructure:"azure"`
}

type AzureQueueConfig struct {
	AccountName string `mapstructure:"account_name" validate:"required"`
	AccountKey  string `mapstructure:"account_key"  validate:"required"`
	ServiceURL  string `mapstructure:"service_url"  validate:"required"`
	Queue       string `mapstructure:"queue"        validate:"required"`
}

type IntakeConfig struct {
	// none, redis or azure
	Backend string            `mapstructure:"backend" validate:"required,oneof=none redis azure"`
	Key     string            `mapstructure:"key"`
	Azure   *AzureQueueConfig `mapstructure:"azure"`
	Timeout time.Duration     `mapstructure:"timeout"`
	// Deliveries before a request is dropped. Only the azure backend counts them.
	MaxDeliveries int64 `mapstructure:"max_deliveries" validate:"gte=0"`
}

type SlogConfig struct {
	Level int `mapstructure:"level"`
}

type LoggingConfig struct {
	App     SlogConfig `mapstructure:"app"`
	UseOTLP bool       `mapstructure:"use_otlp"`
}

type PermissionsConfig struct {
	// Program invoked to set ACLs. Empty disables permissioning.
	Program string `mapstructure:"program"`
}

// See didit.yaml for an example config
type Config struct {
	Semester      string             `mapstructure:"semester"       validate:"required"`
	StaffUsers    []string           `mapstructure:"staff_users"`
	Repos         *ReposConfig       `mapstructure:"repos"          validate:"required"`
	Build         *BuildConfig       `mapstructure:"build"          validate:"required"`
	Workflow      *WorkflowConfig    `mapstructure:"workflow"       validate:"required"`
	Worker        *WorkerConfig      `mapstructure:"worker"         validate:"required"`
	Sweep         *SweepConfig       `mapstructure:"sweep"          validate:"required"`
	Archive       *ArchiveConfig     `mapstructure:"archive"        validate:"required"`
	Intake        *IntakeConfig      `mapstructure:"intake"         validate:"required"`
	Logging       *LoggingConfig     `mapstructure:"logging"        validate:"required"`
	Permissions   *PermissionsConfig `mapstructure:"permissions"`
	ListenAddress string             `mapstructure:"listen_address" validate:"required"`
}

const (
	AppLogLevel              string = "logging.app.level"
	ArchiveBackend           string = "archive.backend"
	ArchiveAzureAccountKey   string = "archive.azure.account_key"
	ArchiveS3AccessKeyID     string = "archive.s3.access_key_id"
	ArchiveS3SecretAccessKey string = "archive.s3.secret_access_key" // #nosec
	BuildDir                 string = "build.dir"
	BuildGracePeriod         string = "build.grace_period"
	BuildResults             string = "build.results"
	BuildRubric              string = "build.rubric"
	EnvPrefix                string = "didit"
	IntakeAzureAccountKey    string = "intake.azure.account_key"
	IntakeBackend            string = "intake.backend"
	IntakeKey                string = "intake.key"
	IntakeMaxDeliveries      string = "intake.max_deliveries"
	IntakeTimeout            string = "intake.timeout"
	ListenAddress            string = "listen_address"
	ReposBranch              string = "repos.branch"
	ReposCloneSlack          string = "repos.clone_slack"
	SweepConcurrency         string = "sweep.concurrency"
	SweepHorizon             string = "sweep.horizon"
	ToolCompile              string = "build.tool.compile"
	ToolHidden               string = "build.tool.hidden"
	ToolProgram              string = "build.tool.program"
	ToolPublic               string = "build.tool.public"
	ToolReports              string = "build.tool.report_dir"
	UseOTLP                  string = "logging.use_otlp"
	WorkerConcurrency        string = "worker.concurrency"
	WorkerGracefulShutdown   string = "worker.graceful_shutdown_secs"
	WorkflowActivityTimeout  string = "workflow.activity_timeout"
	WorkflowBackend          string = "workflow.backend"
	WorkflowDomain           string = "workflow.domain"
	WorkflowErrorBackoff     string = "workflow.error_backoff"
	WorkflowExecTimeout      string = "workflow.execution_timeout"
	WorkflowPollTimeout      string = "workflow.poll_timeout"
	WorkflowRedisPassword    string = "workflow.redis.password"
	WorkflowStatsInterval    string = "workflow.stats_interval"
	WorkflowStatsWindow      string = "workflow.stats_window"
)

// Backend names
const (
	ArchiveNone    = "none"
	ArchiveS3      = "s3"
	ArchiveAzure   = "azure"
	IntakeNone     = "none"
	IntakeRedis    = "redis"
	IntakeAzure    = "azure"
	WorkflowMemory = "memory"
	WorkflowRedis  = "redis"
)

var errMissingBackendConfig = errors.New("selected backend has no configuration")

// Builds a viper instance with every default and env binding set.
// `paths` overrides the directories searched for didit.yaml.
func newViper(paths ...string) (*viper.Viper, error) {
	v := viper.New()

	v.SetConfigName("didit")
	if len(paths) == 0 {
		paths = []string{"/etc/didit/", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	v.SetConfigType("yaml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.AutomaticEnv()

	// workaround for https://github.com/spf13/viper/issues/761
	// bind env vars explicitly so they unmarshal into the nested struct
	for _, key := range []string{
		WorkflowRedisPassword,
		ArchiveS3AccessKeyID,
		ArchiveS3SecretAccessKey,
		ArchiveAzureAccountKey,
		IntakeAzureAccountKey,
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	v.SetDefault(ListenAddress, "[::]:1323")
	v.SetDefault(AppLogLevel, int(slog.LevelInfo))
	v.SetDefault(UseOTLP, false)

	v.SetDefault(ReposBranch, "main")
	v.SetDefault(ReposCloneSlack, 5)

	v.SetDefault(BuildDir, "/tmp/didit/builds")
	v.SetDefault(BuildResults, "/var/didit/results")
	v.SetDefault(BuildGracePeriod, 30*time.Minute)
	v.SetDefault(BuildRubric, "grading.csv")
	v.SetDefault(ToolProgram, "ant")
	v.SetDefault(ToolCompile, "compile")
	v.SetDefault(ToolPublic, "public")
	v.SetDefault(ToolHidden, "hidden")
	v.SetDefault(ToolReports, ".didit")

	v.SetDefault(WorkflowBackend, WorkflowMemory)
	v.SetDefault(WorkflowDomain, "didit")
	v.SetDefault(WorkflowPollTimeout, 60*time.Second)
	v.SetDefault(WorkflowErrorBackoff, 15*time.Second)
	v.SetDefault(WorkflowActivityTimeout, 30*time.Minute)
	v.SetDefault(WorkflowExecTimeout, 2*time.Hour)
	v.SetDefault(WorkflowStatsInterval, time.Minute)
	v.SetDefault(WorkflowStatsWindow, 24*time.Hour)

	v.SetDefault(WorkerConcurrency, 2)
	v.SetDefault(WorkerGracefulShutdown, 600)

	v.SetDefault(SweepHorizon, 14*24*time.Hour)
	v.SetDefault(SweepConcurrency, 8)

	v.SetDefault(ArchiveBackend, ArchiveNone)
	v.SetDefault(IntakeBackend, IntakeNone)
	v.SetDefault(IntakeKey, "didit:requests")
	v.SetDefault(IntakeTimeout, 5*time.Minute)
	v.SetDefault(IntakeMaxDeliveries, 5)

	return v, nil
}

// Reads config from didit.yaml and DIDIT_* environment variables, then validates it
func Load(paths ...string) (*Config, error) {
	logger.Logger.Info("loading config")

	v, err := newViper(paths...)
	if err != nil {
		return nil, err
	}

	err = v.ReadInConfig()
	if err != nil {
		// ignore config file not found to allow pure env config
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	err = v.Unmarshal(&config)
	if err != nil {
		return nil, err
	}

	valid := validator.Create()
	err = valid.Validate(&config)
	if err != nil {
		return nil, err
	}

	if err := config.checkBackends(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) checkBackends() error {
	if c.Workflow.Backend == WorkflowRedis && c.Workflow.Redis == nil {
		return errors.Join(errMissingBackendConfig, errors.New("workflow.redis"))
	}
	if c.Archive.Backend == ArchiveS3 && c.Archive.S3 == nil {
		return errors.Join(errMissingBackendConfig, errors.New("archive.s3"))
	}
	if c.Archive.Backend == ArchiveAzure && c.Archive.Azure == nil {
		return errors.Join(errMissingBackendConfig, errors.New("archive.azure"))
	}
	if c.Intake.Backend == IntakeAzure && c.Intake.Azure == nil {
		return errors.Join(errMissingBackendConfig, errors.New("intake.azure"))
	}
	if c.Intake.Backend == IntakeRedis && c.Workflow.Redis == nil {
		return errors.Join(errMissingBackendConfig, errors.New("workflow.redis"))
	}
	return nil
}

// True if the user is on course staff
func (c *Config) IsStaff(user string) bool {
	for _, s := range c.StaffUsers {
		if s == user {
			return true
		}
	}
	return false
}
