package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"ride-dispatch/internal/shared/models"
)

// LoadConfig reads the yaml-style config file. Only the two-level
// "section: / key: value" shape is supported, plus ${ENV:-default} expansion
// in values, which is all the deployment needs.
func LoadConfig(filename string) (*models.Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := defaults()
	var section string

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !strings.Contains(line, ":") {
			continue
		}

		if strings.HasSuffix(line, ":") {
			section = strings.TrimSuffix(line, ":")
			continue
		}

		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		val := expandEnv(strings.TrimSpace(parts[1]))

		apply(cfg, section, key, val)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *models.Config {
	cfg := &models.Config{}
	cfg.HTTP.Port = "3000"
	cfg.HTTP.MetricsPort = "2112"
	cfg.Redis.GeoKey = "drivers_geo"
	cfg.Dispatch.OfflineGrace = "5m"
	cfg.Dispatch.SweepInterval = "60s"
	cfg.Dispatch.TraceStaleness = "30m"
	cfg.Dispatch.SequenceFloor = 100000
	cfg.Dispatch.SequenceCeil = 999999
	return cfg
}

func expandEnv(val string) string {
	if !strings.HasPrefix(val, "${") {
		return val
	}
	inside := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
	parts := strings.SplitN(inside, ":-", 2)

	envVar := parts[0]
	defVal := ""
	if len(parts) == 2 {
		defVal = parts[1]
	}

	if v, ok := os.LookupEnv(envVar); ok {
		return v
	}
	return defVal
}

func apply(cfg *models.Config, section, key, val string) {
	switch section {
	case "database":
		switch key {
		case "host":
			cfg.Database.Host = val
		case "port":
			cfg.Database.Port = val
		case "user":
			cfg.Database.User = val
		case "password":
			cfg.Database.Password = val
		case "database":
			cfg.Database.Database = val
		}
	case "rabbitmq":
		switch key {
		case "host":
			cfg.RabbitMQ.Host = val
		case "port":
			cfg.RabbitMQ.Port = val
		case "user":
			cfg.RabbitMQ.User = val
		case "password":
			cfg.RabbitMQ.Password = val
		}
	case "redis":
		switch key {
		case "addr":
			cfg.Redis.Addr = val
		case "password":
			cfg.Redis.Password = val
		case "geo_key":
			cfg.Redis.GeoKey = val
		}
	case "firebase":
		if key == "credentials_file" {
			cfg.Firebase.CredentialsFile = val
		}
	case "http":
		switch key {
		case "port":
			cfg.HTTP.Port = val
		case "metrics_port":
			cfg.HTTP.MetricsPort = val
		}
	case "pricing":
		if key == "url" {
			cfg.Pricing.URL = val
		}
	case "jwt":
		if key == "secret" {
			cfg.JWT.Secret = val
		}
	case "dispatch":
		switch key {
		case "offline_grace":
			cfg.Dispatch.OfflineGrace = val
		case "sweep_interval":
			cfg.Dispatch.SweepInterval = val
		case "trace_staleness":
			cfg.Dispatch.TraceStaleness = val
		case "sequence_floor":
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				cfg.Dispatch.SequenceFloor = n
			}
		case "sequence_ceil":
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				cfg.Dispatch.SequenceCeil = n
			}
		}
	}
}
