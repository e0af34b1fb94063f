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

type HTTPConfig struct {
	Port string
}

type VisionConfig struct {
	URL            string
	TimeoutSeconds int
}

type AuthConfig struct {
	JWTSecret string
}

type Config struct {
	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
	HTTP     HTTPConfig
	Vision   VisionConfig
	Auth     AuthConfig
}
