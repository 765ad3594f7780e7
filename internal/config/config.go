// Package config provides configuration loading and management for the staged-load pipeline.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/iot-sensordata/stageload/internal/telemetry"
)

// EnvPrefix is the prefix of every environment variable the pipeline reads
const EnvPrefix = "STAGELOAD"

const (
	// StateBackendDynamoDB keeps the run state in a DynamoDB table
	StateBackendDynamoDB = "dynamodb"

	// StateBackendDatabase keeps the run state in PostgreSQL
	StateBackendDatabase = "database"

	// StateBackendFile keeps the run state in a JSON file under the data directory
	StateBackendFile = "file"
)

const (
	// ObjectStoreS3 uses Amazon S3 through the AWS SDK
	ObjectStoreS3 = "s3"

	// ObjectStoreMinio uses any S3-compatible endpoint through minio-go
	ObjectStoreMinio = "minio"

	// ObjectStoreLocal maps containers onto directories under a root
	ObjectStoreLocal = "local"
)

const (
	// LoadEngineAthena submits the load as an Athena query
	LoadEngineAthena = "athena"

	// LoadEngineObjectStore copies staged objects into a target container (development only)
	LoadEngineObjectStore = "objectstore"
)

// Defaults for the production deployment
const (
	DefaultIncomingContainer  = "iot-sensordata-messages"
	DefaultStagingContainer   = "iot-sensordata-staging"
	DefaultProcessedContainer = "iot-sensordata-processed"
	DefaultStateTable         = "iot_sensordata_etl_queries"
	DefaultStateKey           = "query_id"
	DefaultRegion             = "eu-west-2"
	DefaultInterval           = time.Hour
	DefaultJitter             = 30 * time.Second
	DefaultLeaseTTL           = 15 * time.Minute
	DefaultServerAddress      = ":8080"
	DefaultProductsKey        = "catalog/products.csv"
	DefaultCategoriesKey      = "catalog/categories.csv"
	DefaultTransformErrorKey  = "errors/products_errors.csv"
	DefaultSimulatorTopic     = "sensor/data"
	DefaultSimulatorClientID  = "Env_Sensor_1"
	DefaultSimulatorDeviceID  = "1"
	DefaultSimulatorInterval  = 5 * time.Second
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path      string
	getenv    func(string) string
	skipValid bool
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		// Validate the path to prevent path traversal attacks
		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// WithEnv applies STAGELOAD_* environment overrides on top of the file and defaults.
// getenv is usually os.Getenv.
func WithEnv(getenv func(string) string) Option {
	return func(cfg *loaderConfig) error {
		cfg.getenv = getenv
		return nil
	}
}

// WithoutValidation skips validation; used by commands that only need part of the config
func WithoutValidation() Option {
	return func(cfg *loaderConfig) error {
		cfg.skipValid = true
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Stage       StageConfig       `yaml:"stage"`
	State       StateConfig       `yaml:"state"`
	ObjectStore ObjectStoreConfig `yaml:"objectStore"`
	Load        LoadEngineConfig  `yaml:"load"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Server      ServerConfig      `yaml:"server"`
	AWS         AWSConfig         `yaml:"aws"`
	Notify      NotifyConfig      `yaml:"notify"`
	Transform   TransformConfig   `yaml:"transform"`
	Simulator   SimulatorConfig   `yaml:"simulator"`
	Database    *DatabaseConfig   `yaml:"database,omitempty"`
	Telemetry   *telemetry.Config `yaml:"telemetry,omitempty"`
}

// StageConfig names the containers objects move between
type StageConfig struct {
	// IncomingContainer receives new sensor objects
	IncomingContainer string `yaml:"incomingContainer"`

	// StagingContainer is read by the load job
	StagingContainer string `yaml:"stagingContainer"`
}

// StateConfig selects and configures the run state backend
type StateConfig struct {
	// Backend is one of dynamodb, database or file
	Backend string `yaml:"backend"`

	// Table is the DynamoDB table name (dynamodb backend)
	Table string `yaml:"table,omitempty"`

	// Key identifies the single run state record
	Key string `yaml:"key,omitempty"`

	// DataDir holds state and run reports for the file backend.
	// Defaults to $XDG_DATA_HOME/stageload.
	DataDir string `yaml:"dataDir,omitempty"`

	// Lease enables a lease around each run
	Lease *LeaseConfig `yaml:"lease,omitempty"`
}

// LeaseConfig configures the optional run lease
type LeaseConfig struct {
	Enabled bool `yaml:"enabled"`

	// TTL bounds how long a crashed holder blocks other runs (e.g., "15m")
	TTL string `yaml:"ttl,omitempty"`
}

// ObjectStoreConfig selects and configures the object store
type ObjectStoreConfig struct {
	// Provider is one of s3, minio or local
	Provider string `yaml:"provider"`

	// Region overrides aws.region for S3
	Region string `yaml:"region,omitempty"`

	// Endpoint is the S3-compatible endpoint URL (minio, or a custom S3 endpoint)
	Endpoint string `yaml:"endpoint,omitempty"`

	// UsePathStyle forces path-style addressing on S3
	UsePathStyle bool `yaml:"usePathStyle,omitempty"`

	// CredentialsFile is a YAML file with accessKey and secretKey (minio)
	CredentialsFile string `yaml:"credentialsFile,omitempty"`

	// Root is the directory holding one sub-directory per container (local)
	Root string `yaml:"root,omitempty"`
}

// Credentials is the content of ObjectStoreConfig.CredentialsFile
type Credentials struct {
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
}

// LoadEngineConfig configures the batch load engine
type LoadEngineConfig struct {
	// Engine is one of athena or objectstore
	Engine string `yaml:"engine"`

	// Database is the Athena database
	Database string `yaml:"database,omitempty"`

	// OutputLocation is where Athena writes query results
	OutputLocation string `yaml:"outputLocation,omitempty"`

	// WorkGroup is the Athena workgroup
	WorkGroup string `yaml:"workGroup,omitempty"`

	// Query replaces the default INSERT ... SELECT statement
	Query string `yaml:"query,omitempty"`

	// TargetContainer receives loaded objects (objectstore engine)
	TargetContainer string `yaml:"targetContainer,omitempty"`
}

// ScheduleConfig controls the serve loop
type ScheduleConfig struct {
	// Interval is the base time between runs (e.g., "1h")
	Interval string `yaml:"interval,omitempty"`

	// Jitter is the maximum random offset applied to each interval (e.g., "30s")
	Jitter string `yaml:"jitter,omitempty"`
}

// ServerConfig configures the HTTP status API
type ServerConfig struct {
	Address string `yaml:"address,omitempty"`

	// Auth protects the API; nil serves it anonymously
	Auth *AuthConfig `yaml:"auth,omitempty"`
}

// AuthMode selects how API callers are authenticated
type AuthMode string

const (
	// AuthModeAnonymous serves every route without credentials
	AuthModeAnonymous AuthMode = "anonymous"
	// AuthModeOAuth requires a bearer token issued by one of the configured providers
	AuthModeOAuth AuthMode = "oauth"
)

// Authorization actions granted by scopes
const (
	ActionRead  = "read"
	ActionRun   = "run"
	ActionAdmin = "admin"
)

// DefaultScopes are advertised in the protected resource metadata when none are configured
var DefaultScopes = []string{"stageload:read", "stageload:run", "stageload:admin"}

// DefaultScopeMapping grants actions to the default scopes
var DefaultScopeMapping = []ScopeMappingEntry{
	{Scope: "stageload:read", Actions: []string{ActionRead}},
	{Scope: "stageload:run", Actions: []string{ActionRead, ActionRun}},
	{Scope: "stageload:admin", Actions: []string{ActionRead, ActionRun, ActionAdmin}},
}

// ScopeMappingEntry grants authorization actions to callers holding Scope
type ScopeMappingEntry struct {
	Scope   string   `yaml:"scope"`
	Actions []string `yaml:"actions"`
}

// AuthConfig configures API authentication
type AuthConfig struct {
	Mode AuthMode `yaml:"mode,omitempty"`

	// PublicPaths bypass authentication in addition to the probe and metadata routes
	PublicPaths []string `yaml:"publicPaths,omitempty"`

	OAuth *OAuthConfig `yaml:"oauth,omitempty"`

	// ScopeMapping replaces DefaultScopeMapping when set
	ScopeMapping []ScopeMappingEntry `yaml:"scopeMapping,omitempty"`

	// PolicyFile holds Cedar policies replacing the built-in ones
	PolicyFile string `yaml:"policyFile,omitempty"`
}

// GetScopeMapping returns the configured scope mapping or the default one
func (a *AuthConfig) GetScopeMapping() []ScopeMappingEntry {
	if a == nil || len(a.ScopeMapping) == 0 {
		return DefaultScopeMapping
	}
	return a.ScopeMapping
}

// ReadPolicies returns the contents of PolicyFile, or nil when none is configured
func (a *AuthConfig) ReadPolicies() ([]byte, error) {
	if a == nil || a.PolicyFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(a.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %s: %w", a.PolicyFile, err)
	}
	return data, nil
}

// OAuthConfig configures bearer token validation
type OAuthConfig struct {
	// ResourceURL identifies this API in RFC 9728 metadata and WWW-Authenticate challenges
	ResourceURL string `yaml:"resourceUrl"`

	Realm string `yaml:"realm,omitempty"`

	ScopesSupported []string `yaml:"scopesSupported,omitempty"`

	// Providers are tried in order until one accepts the token
	Providers []OAuthProviderConfig `yaml:"providers"`
}

// OAuthProviderConfig describes one token issuer
type OAuthProviderConfig struct {
	Name      string `yaml:"name"`
	IssuerURL string `yaml:"issuerUrl"`
	Audience  string `yaml:"audience,omitempty"`

	// JWKSURL is where the issuer publishes its signing keys
	JWKSURL string `yaml:"jwksUrl"`
}

// AWSConfig holds settings shared by every AWS client
type AWSConfig struct {
	Region string `yaml:"region,omitempty"`
}

// NotifyConfig holds the SNS topics notifications are published to
type NotifyConfig struct {
	// AlertTopicARN receives temperature alert messages
	AlertTopicARN string `yaml:"alertTopicArn,omitempty"`

	// PipelineTopicARN receives error-file and Glue job messages
	PipelineTopicARN string `yaml:"pipelineTopicArn,omitempty"`
}

// TransformConfig names the catalog exports read by the transform and where
// its error rows are written
type TransformConfig struct {
	SourceContainer string `yaml:"sourceContainer,omitempty"`
	ProductsKey     string `yaml:"productsKey,omitempty"`
	CategoriesKey   string `yaml:"categoriesKey,omitempty"`
	ErrorContainer  string `yaml:"errorContainer,omitempty"`
	ErrorKey        string `yaml:"errorKey,omitempty"`
}

// SimulatorConfig configures the simulated weather station
type SimulatorConfig struct {
	// Broker is the MQTT broker URL, e.g. ssl://<endpoint>:8883
	Broker   string `yaml:"broker,omitempty"`
	ClientID string `yaml:"clientId,omitempty"`
	Topic    string `yaml:"topic,omitempty"`
	DeviceID string `yaml:"deviceId,omitempty"`
	Interval string `yaml:"interval,omitempty"`
	CAFile   string `yaml:"caFile,omitempty"`
	CertFile string `yaml:"certFile,omitempty"`
	KeyFile  string `yaml:"keyFile,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// MigrationUser runs schema migrations; defaults to User
	MigrationUser string `yaml:"migrationUser,omitempty"`

	// PasswordFile is the path to a file containing the database password
	// This is the recommended approach for production deployments
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`

	// DynamicAuth replaces the static password with short-lived tokens
	DynamicAuth *DynamicAuthConfig `yaml:"dynamicAuth,omitempty"`
}

// DynamicAuthConfig selects a dynamic database authentication method
type DynamicAuthConfig struct {
	AWSRDSIAM *DynamicAuthAWSRDSIAM `yaml:"awsRdsIam,omitempty"`
}

// DynamicAuthAWSRDSIAM configures AWS RDS IAM authentication
type DynamicAuthAWSRDSIAM struct {
	// Region is the AWS region of the database, or "detect" to ask IMDS
	Region string `yaml:"region"`
}

// passwordEnvVar is read when no password file is configured
const passwordEnvVar = EnvPrefix + "_DATABASE_PASSWORD"

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from STAGELOAD_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	// Priority 1: Read from file if specified
	if d.PasswordFile != "" {
		// Use filepath.Clean to prevent path traversal attacks
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		// Trim whitespace (including newlines) from file content
		password := strings.TrimSpace(string(data))
		return password, nil
	}

	// Priority 2: Check environment variable
	if envPassword := os.Getenv(passwordEnvVar); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s environment variable", passwordEnvVar,
	)
}

// GetMigrationUser returns the user that runs migrations
func (d *DatabaseConfig) GetMigrationUser() string {
	if d.MigrationUser != "" {
		return d.MigrationUser
	}
	return d.User
}

// BuildConnectionStringWithAuth builds a connection string for user. An empty
// password is left out so libpq fallbacks such as ~/.pgpass still apply.
func (d *DatabaseConfig) BuildConnectionStringWithAuth(user, password string) string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	userInfo := url.QueryEscape(user)
	if password != "" {
		// URL-escape the password to handle special characters
		userInfo += ":" + url.QueryEscape(password)
	}

	return fmt.Sprintf(
		"postgres://%s@%s:%d/%s?sslmode=%s",
		userInfo,
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// With dynamic auth configured the password is supplied per connection instead.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	if d.DynamicAuth != nil {
		return d.BuildConnectionStringWithAuth(d.User, ""), nil
	}

	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}
	return d.BuildConnectionStringWithAuth(d.User, password), nil
}

// GetConnMaxLifetime parses ConnMaxLifetime; zero when unset
func (d *DatabaseConfig) GetConnMaxLifetime() (time.Duration, error) {
	if d.ConnMaxLifetime == "" {
		return 0, nil
	}
	return time.ParseDuration(d.ConnMaxLifetime)
}

// LoadConfig loads configuration from the given options. Without a config
// path the defaults are used, which lets serverless handlers run from the
// environment alone.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	var config Config
	if loaderCfg.path != "" {
		// Read the entire file into memory
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Parse YAML content
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if loaderCfg.getenv != nil {
		config.applyEnv(loaderCfg.getenv)
	}
	config.applyDefaults()

	if loaderCfg.skipValid {
		return &config, nil
	}

	// Validate the config
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// applyDefaults fills unset fields with the production defaults
func (c *Config) applyDefaults() {
	setDefault(&c.Stage.IncomingContainer, DefaultIncomingContainer)
	setDefault(&c.Stage.StagingContainer, DefaultStagingContainer)

	setDefault(&c.State.Backend, StateBackendDynamoDB)
	setDefault(&c.State.Table, DefaultStateTable)
	setDefault(&c.State.Key, DefaultStateKey)
	if c.State.DataDir == "" {
		c.State.DataDir = filepath.Join(xdg.DataHome, "stageload")
	}

	setDefault(&c.ObjectStore.Provider, ObjectStoreS3)

	setDefault(&c.Load.Engine, LoadEngineAthena)
	setDefault(&c.Load.TargetContainer, DefaultProcessedContainer)

	setDefault(&c.Transform.SourceContainer, DefaultProcessedContainer)
	setDefault(&c.Transform.ProductsKey, DefaultProductsKey)
	setDefault(&c.Transform.CategoriesKey, DefaultCategoriesKey)
	setDefault(&c.Transform.ErrorContainer, DefaultProcessedContainer)
	setDefault(&c.Transform.ErrorKey, DefaultTransformErrorKey)

	setDefault(&c.Simulator.Topic, DefaultSimulatorTopic)
	setDefault(&c.Simulator.ClientID, DefaultSimulatorClientID)
	setDefault(&c.Simulator.DeviceID, DefaultSimulatorDeviceID)

	setDefault(&c.Server.Address, DefaultServerAddress)
	setDefault(&c.AWS.Region, DefaultRegion)
	setDefault(&c.ObjectStore.Region, c.AWS.Region)

	if c.Database != nil {
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// applyEnv overrides fields from STAGELOAD_* environment variables
func (c *Config) applyEnv(getenv func(string) string) {
	override := func(field *string, name string) {
		if v := getenv(EnvPrefix + "_" + name); v != "" {
			*field = v
		}
	}

	override(&c.Stage.IncomingContainer, "INCOMING_CONTAINER")
	override(&c.Stage.StagingContainer, "STAGING_CONTAINER")
	override(&c.State.Backend, "STATE_BACKEND")
	override(&c.State.Table, "STATE_TABLE")
	override(&c.State.Key, "STATE_KEY")
	override(&c.State.DataDir, "DATA_DIR")
	override(&c.ObjectStore.Provider, "OBJECT_STORE_PROVIDER")
	override(&c.ObjectStore.Endpoint, "OBJECT_STORE_ENDPOINT")
	override(&c.Load.Engine, "LOAD_ENGINE")
	override(&c.Load.Database, "LOAD_DATABASE")
	override(&c.Load.OutputLocation, "LOAD_OUTPUT_LOCATION")
	override(&c.Load.WorkGroup, "LOAD_WORKGROUP")
	override(&c.AWS.Region, "AWS_REGION")
	override(&c.Notify.AlertTopicARN, "ALERT_TOPIC_ARN")
	override(&c.Notify.PipelineTopicARN, "PIPELINE_TOPIC_ARN")
	override(&c.Simulator.Broker, "SIMULATOR_BROKER")
	override(&c.Simulator.CAFile, "SIMULATOR_CA_FILE")
	override(&c.Simulator.CertFile, "SIMULATOR_CERT_FILE")
	override(&c.Simulator.KeyFile, "SIMULATOR_KEY_FILE")

	if host := getenv(EnvPrefix + "_DATABASE_HOST"); host != "" {
		if c.Database == nil {
			c.Database = &DatabaseConfig{}
		}
		c.Database.Host = host
	}
	if c.Database != nil {
		override(&c.Database.User, "DATABASE_USER")
		override(&c.Database.Database, "DATABASE_NAME")
		override(&c.Database.SSLMode, "DATABASE_SSLMODE")
		if port := getenv(EnvPrefix + "_DATABASE_PORT"); port != "" {
			var p int
			if _, err := fmt.Sscanf(port, "%d", &p); err == nil {
				c.Database.Port = p
			}
		}
	}
}

// GetLeaseTTL returns the lease TTL, or zero when leasing is disabled
func (c *Config) GetLeaseTTL() time.Duration {
	if c.State.Lease == nil || !c.State.Lease.Enabled {
		return 0
	}
	if c.State.Lease.TTL == "" {
		return DefaultLeaseTTL
	}
	ttl, err := time.ParseDuration(c.State.Lease.TTL)
	if err != nil {
		return DefaultLeaseTTL
	}
	return ttl
}

// GetInterval returns the schedule interval, falling back to the default when unset or invalid
func (c *Config) GetInterval() time.Duration {
	return parseDurationOr(c.Schedule.Interval, DefaultInterval)
}

// GetSimulatorInterval returns the simulator publish interval
func (c *Config) GetSimulatorInterval() time.Duration {
	return parseDurationOr(c.Simulator.Interval, DefaultSimulatorInterval)
}

// GetJitter returns the schedule jitter, falling back to the default when unset or invalid
func (c *Config) GetJitter() time.Duration {
	return parseDurationOr(c.Schedule.Jitter, DefaultJitter)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// ReadCredentials reads the object store credentials file
func (o *ObjectStoreConfig) ReadCredentials() (*Credentials, error) {
	if o.CredentialsFile == "" {
		return nil, fmt.Errorf("objectStore.credentialsFile is not set")
	}
	data, err := os.ReadFile(filepath.Clean(o.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file %s: %w", o.CredentialsFile, err)
	}
	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file %s: %w", o.CredentialsFile, err)
	}
	if creds.AccessKey == "" || creds.SecretKey == "" {
		return nil, fmt.Errorf("credentials file %s must set accessKey and secretKey", o.CredentialsFile)
	}
	return &creds, nil
}

// validate performs validation on the configuration, reporting every problem at once
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if c.Stage.IncomingContainer == c.Stage.StagingContainer {
		errs = append(errs, fmt.Errorf("stage: incomingContainer and stagingContainer must differ"))
	}

	switch c.State.Backend {
	case StateBackendDynamoDB, StateBackendFile:
	case StateBackendDatabase:
		if c.Database == nil {
			errs = append(errs, fmt.Errorf("state: backend %q requires a database section", StateBackendDatabase))
		}
	default:
		errs = append(errs, fmt.Errorf("state: unknown backend %q", c.State.Backend))
	}
	if c.State.Lease != nil && c.State.Lease.TTL != "" {
		if _, err := time.ParseDuration(c.State.Lease.TTL); err != nil {
			errs = append(errs, fmt.Errorf("state: lease.ttl must be a valid duration: %w", err))
		}
	}

	switch c.ObjectStore.Provider {
	case ObjectStoreS3:
	case ObjectStoreMinio:
		if c.ObjectStore.Endpoint == "" {
			errs = append(errs, fmt.Errorf("objectStore: endpoint is required for provider %q", ObjectStoreMinio))
		}
	case ObjectStoreLocal:
		if c.ObjectStore.Root == "" {
			errs = append(errs, fmt.Errorf("objectStore: root is required for provider %q", ObjectStoreLocal))
		}
	default:
		errs = append(errs, fmt.Errorf("objectStore: unknown provider %q", c.ObjectStore.Provider))
	}

	switch c.Load.Engine {
	case LoadEngineAthena:
	case LoadEngineObjectStore:
		if c.Load.TargetContainer == c.Stage.StagingContainer {
			errs = append(errs, fmt.Errorf("load: targetContainer must differ from the staging container"))
		}
	default:
		errs = append(errs, fmt.Errorf("load: unknown engine %q", c.Load.Engine))
	}

	if err := validateSchedule(&c.Schedule); err != nil {
		errs = append(errs, err)
	}

	if err := c.Server.Auth.validate(); err != nil {
		errs = append(errs, fmt.Errorf("server.auth: %w", err))
	}

	if c.Database != nil {
		if err := c.Database.validate(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

// validateSchedule validates the schedule configuration
func validateSchedule(s *ScheduleConfig) error {
	var errs []error
	if s.Interval != "" {
		d, err := time.ParseDuration(s.Interval)
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule: interval must be a valid duration (e.g., '30m', '1h'): %w", err))
		} else if d <= 0 {
			errs = append(errs, fmt.Errorf("schedule: interval must be positive"))
		}
	}
	if s.Jitter != "" {
		if _, err := time.ParseDuration(s.Jitter); err != nil {
			errs = append(errs, fmt.Errorf("schedule: jitter must be a valid duration: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *AuthConfig) validate() error {
	if a == nil {
		return nil
	}
	switch a.Mode {
	case AuthModeAnonymous, "":
		return nil
	case AuthModeOAuth:
	default:
		return fmt.Errorf("unsupported mode %q", a.Mode)
	}
	if a.OAuth == nil {
		return fmt.Errorf("oauth section is required for mode %q", AuthModeOAuth)
	}

	var errs []error
	for i, m := range a.ScopeMapping {
		if m.Scope == "" {
			errs = append(errs, fmt.Errorf("scopeMapping[%d].scope is required", i))
		}
		for _, action := range m.Actions {
			if action != ActionRead && action != ActionRun && action != ActionAdmin {
				errs = append(errs, fmt.Errorf("scopeMapping[%d]: unknown action %q", i, action))
			}
		}
	}
	if a.OAuth.ResourceURL == "" {
		errs = append(errs, fmt.Errorf("oauth.resourceUrl is required"))
	}
	if len(a.OAuth.Providers) == 0 {
		errs = append(errs, fmt.Errorf("oauth.providers must not be empty"))
	}
	for i, p := range a.OAuth.Providers {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("oauth.providers[%d].name is required", i))
		}
		if p.IssuerURL == "" {
			errs = append(errs, fmt.Errorf("oauth.providers[%d].issuerUrl is required", i))
		}
		if p.JWKSURL == "" {
			errs = append(errs, fmt.Errorf("oauth.providers[%d].jwksUrl is required", i))
		}
	}
	return errors.Join(errs...)
}

func (d *DatabaseConfig) validate() error {
	var errs []error
	if d.Host == "" {
		errs = append(errs, fmt.Errorf("host is required"))
	}
	if d.User == "" {
		errs = append(errs, fmt.Errorf("user is required"))
	}
	if d.Database == "" {
		errs = append(errs, fmt.Errorf("database is required"))
	}
	if d.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(d.ConnMaxLifetime); err != nil {
			errs = append(errs, fmt.Errorf("connMaxLifetime must be a valid duration: %w", err))
		}
	}
	if d.DynamicAuth != nil && d.DynamicAuth.AWSRDSIAM != nil && d.DynamicAuth.AWSRDSIAM.Region == "" {
		errs = append(errs, fmt.Errorf("dynamicAuth.awsRdsIam.region is required"))
	}
	return errors.Join(errs...)
}
