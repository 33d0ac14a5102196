package config

import "strings"

type EnvVars struct {
	AppName  string `env:"APP_NAME"            envDefault:"Equipment Analytics"`
	Env      string `env:"ENV"                 envDefault:"DEV"`
	LogLevel string `env:"ANALYTICS_LOG_LEVEL" envDefault:"info"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return strings.ToUpper(e.Env)
}

func (e EnvVars) GetLogLevel() string {
	return strings.ToLower(e.LogLevel)
}

func (e EnvVars) IsDev() bool {
	return e.GetEnv() == "DEV"
}
