package config

// EnvPrefix is the envconfig prefix; explicit envconfig tags carry it already.
const EnvPrefix = ""

const (
	AppEnvDev  = "development"
	AppEnvProd = "production"
)

const (
	EnvAppEnv   = "ADHERA_APP_ENV"
	EnvPort     = "ADHERA_APP_PORT"
	EnvDBDSN    = "ADHERA_DB_DSN"
	EnvDBHost   = "ADHERA_DB_HOST"
	EnvDBUser   = "ADHERA_DB_USER"
	EnvDBName   = "ADHERA_DB_NAME"
	EnvRedisURL = "ADHERA_REDIS_URL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
