package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dkrasnov/accountd/internal/flagx"
	"github.com/dkrasnov/accountd/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "15m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON configuration
// files. After unmarshalling, its fields are copied into the runtime Config
// struct which uses time.Duration.
type JsonConfig struct {
	EndpointAddr          string         `json:"endpoint_addr"`
	DatabaseDSN           string         `json:"database_dsn"`
	RedisAddr             string         `json:"redis_addr"`
	TokenValidityDuration timex.Duration `json:"token_validity_duration"`
	CertValidityDuration  timex.Duration `json:"cert_validity_duration"`
	SigningKeyPath        string         `json:"signing_key_path"`
	BaseURL               string         `json:"base_url"`
	SMTPRelay             string         `json:"smtp_relay"`
	SMTPPort              int            `json:"smtp_port"`
	SMTPUser              string         `json:"smtp_user"`
	SMTPPassword          string         `json:"smtp_password"`
	SMTPFrom              string         `json:"smtp_from"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The lookup order for the JSON file path is:
//
//	The -c or -config command-line flags.
//	If it is not set, no JSON file is loaded.
//
// If the file path is found, parseJson attempts to read and unmarshal it
// into a JsonConfig. The resulting values are copied into the target Config.
// If the file cannot be read or contains invalid JSON, the function panics.
//
// The caller is expected to merge these values with defaults and
// command-line flags as part of the full configuration process.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	config.EndpointAddr = c.EndpointAddr
	config.DatabaseDSN = c.DatabaseDSN
	config.RedisAddr = c.RedisAddr
	config.TokenValidityDuration = time.Duration(c.TokenValidityDuration.Duration)
	config.CertValidityDuration = time.Duration(c.CertValidityDuration.Duration)
	config.SigningKeyPath = c.SigningKeyPath
	config.BaseURL = c.BaseURL
	config.SMTPRelay = c.SMTPRelay
	config.SMTPPort = c.SMTPPort
	config.SMTPUser = c.SMTPUser
	config.SMTPPassword = c.SMTPPassword
	config.SMTPFrom = c.SMTPFrom
}
