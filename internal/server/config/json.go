package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/projectstack-auth/internal/flagx"
	"github.com/dmitrijs2005/projectstack-auth/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations are
// timex.Duration so both "30m" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP string `json:"endpoint_addr_http"`

	StorageBackend string `json:"storage_backend"`
	DatabaseDSN    string `json:"database_dsn"`
	MongoURI       string `json:"mongo_uri"`
	MongoDatabase  string `json:"mongo_database"`

	SecretKey                    string         `json:"secret_key"`
	TokenIssuer                  string         `json:"token_issuer"`
	TokenAudience                string         `json:"token_audience"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`

	PasswordHashAlgorithm string `json:"password_hash_algorithm"`
	BcryptCost            int    `json:"bcrypt_cost"`

	OTPBackend          string         `json:"otp_backend"`
	RedisAddr           string         `json:"redis_addr"`
	OTPValidityDuration timex.Duration `json:"otp_validity_duration"`
	OTPSingleUse        bool           `json:"otp_single_use"`
	OTPPurgeInterval    timex.Duration `json:"otp_purge_interval"`

	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUsername string `json:"smtp_username"`
	SMTPPassword string `json:"smtp_password"`
	SMTPFrom     string `json:"smtp_from"`

	LogFormat string `json:"log_format"`
	LogLevel  string `json:"log_level"`
}

func toJson(c *Config) *JsonConfig {
	return &JsonConfig{
		EndpointAddrHTTP:             c.EndpointAddrHTTP,
		StorageBackend:               c.StorageBackend,
		DatabaseDSN:                  c.DatabaseDSN,
		MongoURI:                     c.MongoURI,
		MongoDatabase:                c.MongoDatabase,
		SecretKey:                    c.SecretKey,
		TokenIssuer:                  c.TokenIssuer,
		TokenAudience:                c.TokenAudience,
		AccessTokenValidityDuration:  timex.Duration{Duration: c.AccessTokenValidityDuration},
		RefreshTokenValidityDuration: timex.Duration{Duration: c.RefreshTokenValidityDuration},
		PasswordHashAlgorithm:        c.PasswordHashAlgorithm,
		BcryptCost:                   c.BcryptCost,
		OTPBackend:                   c.OTPBackend,
		RedisAddr:                    c.RedisAddr,
		OTPValidityDuration:          timex.Duration{Duration: c.OTPValidityDuration},
		OTPSingleUse:                 c.OTPSingleUse,
		OTPPurgeInterval:             timex.Duration{Duration: c.OTPPurgeInterval},
		SMTPHost:                     c.SMTPHost,
		SMTPPort:                     c.SMTPPort,
		SMTPUsername:                 c.SMTPUsername,
		SMTPPassword:                 c.SMTPPassword,
		SMTPFrom:                     c.SMTPFrom,
		LogFormat:                    c.LogFormat,
		LogLevel:                     c.LogLevel,
	}
}

// parseJson overlays values from the file named by -c/-config. Keys missing
// from the file keep their current value. An unreadable file or invalid JSON
// panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := toJson(config)
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.EndpointAddrHTTP = c.EndpointAddrHTTP
	config.StorageBackend = c.StorageBackend
	config.DatabaseDSN = c.DatabaseDSN
	config.MongoURI = c.MongoURI
	config.MongoDatabase = c.MongoDatabase
	config.SecretKey = c.SecretKey
	config.TokenIssuer = c.TokenIssuer
	config.TokenAudience = c.TokenAudience
	config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	config.PasswordHashAlgorithm = c.PasswordHashAlgorithm
	config.BcryptCost = c.BcryptCost
	config.OTPBackend = c.OTPBackend
	config.RedisAddr = c.RedisAddr
	config.OTPValidityDuration = c.OTPValidityDuration.Duration
	config.OTPSingleUse = c.OTPSingleUse
	config.OTPPurgeInterval = c.OTPPurgeInterval.Duration
	config.SMTPHost = c.SMTPHost
	config.SMTPPort = c.SMTPPort
	config.SMTPUsername = c.SMTPUsername
	config.SMTPPassword = c.SMTPPassword
	config.SMTPFrom = c.SMTPFrom
	config.LogFormat = c.LogFormat
	config.LogLevel = c.LogLevel
}
