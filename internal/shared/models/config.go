package models

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

type RabbitMQConfig struct {
	Host     string
	Port     string
	User     string
	Password string
}

type RedisConfig struct {
	Addr     string
	Password string
	GeoKey   string
}

type FirebaseConfig struct {
	CredentialsFile string
}

type HTTPConfig struct {
	Port        string
	MetricsPort string
}

type PricingConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
}

// DispatchConfig carries presence and sequence tunables. Durations are plain
// strings in config.yaml ("5m", "60s") parsed with time.ParseDuration.
type DispatchConfig struct {
	OfflineGrace   string
	SweepInterval  string
	TraceStaleness string
	SequenceFloor  int64
	SequenceCeil   int64
}

type Config struct {
	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
	Redis    RedisConfig
	Firebase FirebaseConfig
	HTTP     HTTPConfig
	Pricing  PricingConfig
	JWT      JWTConfig
	Dispatch DispatchConfig
}
