package config

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"freightflow/internal/shared/models"
)

// LoadConfig reads a minimal yaml-style file of "section:" headers and
// "key: value" lines. Values may use ${ENV_VAR:-default} expansion.
func LoadConfig(filename string) (*models.Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := &models.Config{}
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
		case "http":
			if key == "port" {
				cfg.HTTP.Port = val
			}
		case "vision":
			switch key {
			case "url":
				cfg.Vision.URL = val
			case "timeout_seconds":
				if n, err := strconv.Atoi(val); err == nil {
					cfg.Vision.TimeoutSeconds = n
				}
			}
		case "auth":
			if key == "jwt_secret" {
				cfg.Auth.JWTSecret = val
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if cfg.Vision.TimeoutSeconds == 0 {
		cfg.Vision.TimeoutSeconds = 10
	}

	return cfg, nil
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
