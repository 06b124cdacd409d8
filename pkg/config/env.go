package config

const (
	EnvPrefix = "CARESTAFF"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv   = "CARESTAFF_APP_ENV"
	EnvPort     = "CARESTAFF_APP_PORT"
	EnvLogLevel = "CARESTAFF_LOG_LEVEL"
	EnvTimezone = "CARESTAFF_TIMEZONE"

	EnvDBDSN  = "CARESTAFF_DB_DSN"
	EnvDBHost = "CARESTAFF_DB_HOST"
	EnvDBUser = "CARESTAFF_DB_USER"
	EnvDBName = "CARESTAFF_DB_NAME"

	EnvRedisURL = "CARESTAFF_REDIS_URL"

	EnvJWTSecret  = "CARESTAFF_JWT_SECRET"
	EnvJWTIssuer  = "CARESTAFF_JWT_ISSUER"
	EnvJWTExpMins = "CARESTAFF_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID = "CARESTAFF_GCP_PROJECT_ID"

	EnvPubSubNotificationTopic = "CARESTAFF_PUBSUB_NOTIFICATION_TOPIC"
	EnvPubSubNotificationSub   = "CARESTAFF_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvPubSubDecisionTopic     = "CARESTAFF_PUBSUB_DECISION_TOPIC"
	EnvPubSubDecisionSub       = "CARESTAFF_PUBSUB_DECISION_SUBSCRIPTION"

	EnvScheduleNoShow    = "CARESTAFF_SCHEDULE_NO_SHOW"
	EnvNotifyMaxAttempts = "CARESTAFF_NOTIFY_MAX_ATTEMPTS"
	EnvOTLPEndpoint      = "CARESTAFF_OTLP_ENDPOINT"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
