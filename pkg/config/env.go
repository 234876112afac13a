package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StorageDriverMemory = "memory"
	StorageDriverFile   = "file"
	StorageDriverRedis  = "redis"
	StorageDriverSQL    = "sql"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

const (
	EnvAppEnv         = "STOREFRONT_APP_ENV"
	EnvPort           = "STOREFRONT_APP_PORT"
	EnvLogLevel       = "STOREFRONT_LOG_LEVEL"
	EnvLogFormat      = "STOREFRONT_LOG_FORMAT"
	EnvCatalogBaseURL = "STOREFRONT_CATALOG_BASE_URL"
	EnvCatalogTimeout = "STOREFRONT_CATALOG_TIMEOUT"
	EnvStorageDriver  = "STOREFRONT_STORAGE_DRIVER"
	EnvStorageFileDir = "STOREFRONT_STORAGE_FILE_DIR"
	EnvCartKey        = "STOREFRONT_CART_KEY"
	EnvRedisURL       = "STOREFRONT_REDIS_URL"
	EnvRedisAddr      = "STOREFRONT_REDIS_ADDR"
	EnvDBDSN          = "STOREFRONT_DB_DSN"
	EnvDBDriver       = "STOREFRONT_DB_DRIVER"
	EnvDBHost         = "STOREFRONT_DB_HOST"
	EnvDBUser         = "STOREFRONT_DB_USER"
	EnvDBName         = "STOREFRONT_DB_NAME"
	EnvSyncPoll       = "STOREFRONT_SYNC_POLL_INTERVAL"
	EnvSyncDebounce   = "STOREFRONT_SYNC_DEBOUNCE"
)

var postgresDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
