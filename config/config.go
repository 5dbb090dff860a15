package config

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Topic layout for the Home Assistant MQTT surface.
const (
	HomeAssistantPrefix = "homeassistant"
	TopicPrefix         = "ventaxia"
)

// AvailabilityTopic carries "online"/"offline" for all bridged entities.
const AvailabilityTopic = TopicPrefix + "/availability"

const DefaultPort = 47819

type Configuration struct {
	Device   Device `mapstructure:"device"`
	Mqtt     Mqtt   `mapstructure:"mqtt"`
	HTTP     HTTP   `mapstructure:"http"`
	LogLevel string `mapstructure:"log_level"`
}

// Device holds the connection parameters for the VentAxia unit. All of
// host, identity, psk_key and wifi_device_id are required unless the
// simulator is enabled.
type Device struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Identity       string `mapstructure:"identity"`
	PskKey         string `mapstructure:"psk_key"`
	WifiDeviceID   string `mapstructure:"wifi_device_id"`
	ConnectTimeout int    `mapstructure:"connect_timeout_seconds"`
	Simulate       bool   `mapstructure:"simulate"`
}

type Mqtt struct {
	IpAddress string `mapstructure:"ip_address"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
}

type HTTP struct {
	Addr string `mapstructure:"addr"`
}

// LoadConfiguration reads and validates the configuration file. Environment
// variables prefixed with VENTAXIA_ override file values.
func LoadConfiguration(filename string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(filename)
	v.SetEnvPrefix("ventaxia")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("device.port", DefaultPort)
	v.SetDefault("device.connect_timeout_seconds", 30)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Configuration{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Configuration) validate() error {
	var missing []string

	if c.Device.WifiDeviceID == "" {
		missing = append(missing, "device.wifi_device_id")
	}
	if !c.Device.Simulate {
		if c.Device.Host == "" {
			missing = append(missing, "device.host")
		}
		if c.Device.Identity == "" {
			missing = append(missing, "device.identity")
		}
		if c.Device.PskKey == "" {
			missing = append(missing, "device.psk_key")
		}
	}
	if c.Mqtt.IpAddress == "" {
		missing = append(missing, "mqtt.ip_address")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v", strings.Join(missing, ", "))
	}

	if c.Device.Port <= 0 || c.Device.Port > 65535 {
		return fmt.Errorf("invalid device port: %v", c.Device.Port)
	}
	if !c.Device.Simulate {
		if _, err := c.Device.PskBytes(); err != nil {
			return err
		}
	}

	return nil
}

// PskBytes decodes the hex-encoded pre-shared key.
func (d *Device) PskBytes() ([]byte, error) {
	key, err := hex.DecodeString(d.PskKey)
	if err != nil {
		return nil, fmt.Errorf("psk_key is not valid hex: %w", err)
	}
	return key, nil
}

// Timeout returns the connect timeout as a duration.
func (d *Device) Timeout() time.Duration {
	return time.Duration(d.ConnectTimeout) * time.Second
}

func (m *Mqtt) ClientOptions(log *zap.SugaredLogger) *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%v:1883", m.IpAddress)).
		SetUsername(m.Username).
		SetPassword(m.Password).
		SetAutoReconnect(true).
		SetWill(AvailabilityTopic, "offline", 0, true).
		SetConnectionLostHandler(func(client mqtt.Client, err error) {
			log.Warnw("MQTT connection lost", "error", err)
		}).
		SetReconnectingHandler(func(client mqtt.Client, opts *mqtt.ClientOptions) {
			log.Info("MQTT reconnecting")
		})
}
