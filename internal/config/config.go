package config

import "time"

// Config is the static process configuration, populated once during startup
// and never modified. Runtime tunables live in Snapshot, not here: anything a
// field tech may change while the pump is in service belongs in the snapshot.
type Config struct {
	// System metadata
	Environment string `envconfig:"APP_ENV" default:"prod" validate:"required,oneof=local dev prod"`
	DeviceID    string `envconfig:"DEVICE_ID" validate:"required"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Database DatabaseConfig
	Broker   BrokerConfig
	Camera   CameraConfig
	Relay    RelayConfig
	OCR      OCRConfig
	Archive  ArchiveConfig
}

// DatabaseConfig holds the readings database connection parameters.
type DatabaseConfig struct {
	URL             string        `envconfig:"DATABASE_URL" validate:"required,url"`
	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"4"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
}

// BrokerConfig holds MQTT broker connection parameters. The broker carries
// both the remote configuration channel and the OCR bridge topics.
type BrokerConfig struct {
	URL      string `envconfig:"MQTT_BROKER_URL" validate:"required"`
	Username string `envconfig:"MQTT_USERNAME"`
	Password string `envconfig:"MQTT_PASSWORD"`

	ConfigTopic        string `envconfig:"MQTT_CONFIG_TOPIC" default:"pumpwatch/config"`
	BridgeRequestTopic string `envconfig:"MQTT_BRIDGE_REQUEST_TOPIC" default:"pumpwatch/ocr/request"`
	BridgeReplyTopic   string `envconfig:"MQTT_BRIDGE_REPLY_TOPIC" default:"pumpwatch/ocr/reply"`
}

// CameraConfig holds the vendor capture CLI invocation parameters.
type CameraConfig struct {
	Command string        `envconfig:"CAMERA_COMMAND" default:"libcamera-still"`
	Args    []string      `envconfig:"CAMERA_ARGS" default:"-n,-o,-,--timeout,1000"`
	Timeout time.Duration `envconfig:"CAMERA_TIMEOUT" default:"10s"`
}

// RelayConfig holds the GPIO line driving the pump power relay.
type RelayConfig struct {
	GPIOPath string `envconfig:"RELAY_GPIO_PATH" default:"/sys/class/gpio/gpio17/value"`
	// ActiveLow inverts the written value for relays wired normally-closed.
	ActiveLow bool `envconfig:"RELAY_ACTIVE_LOW" default:"false"`
}

// OCRConfig holds per-provider static settings. Priority and timeouts are
// runtime tunables and live in the snapshot.
type OCRConfig struct {
	TesseractBinary string `envconfig:"TESSERACT_BINARY" default:"tesseract"`
	CloudEndpoint   string `envconfig:"CLOUD_OCR_ENDPOINT"`
	CloudAPIKey     string `envconfig:"CLOUD_OCR_API_KEY"`
}

// ArchiveConfig holds the on-device frame archive settings.
type ArchiveConfig struct {
	Enabled  bool   `envconfig:"ARCHIVE_ENABLED" default:"true"`
	Dir      string `envconfig:"ARCHIVE_DIR" default:"/var/lib/pumpwatch/frames"`
	MaxFiles int    `envconfig:"ARCHIVE_MAX_FILES" default:"500"`
}
