package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ventaxia.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadConfiguration(t *testing.T) {
	path := writeConfig(t, `
device:
  host: 192.168.1.50
  identity: vent-identity
  psk_key: deadbeefcafe
  wifi_device_id: vent_abc123
mqtt:
  ip_address: 10.0.0.2
  username: ha
  password: secret
`)

	cfg, err := LoadConfiguration(path)
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.50", cfg.Device.Host)
	assert.Equal(t, "vent_abc123", cfg.Device.WifiDeviceID)
	assert.Equal(t, "10.0.0.2", cfg.Mqtt.IpAddress)
	assert.Equal(t, "ha", cfg.Mqtt.Username)

	// Defaults.
	assert.Equal(t, DefaultPort, cfg.Device.Port)
	assert.Equal(t, 30, cfg.Device.ConnectTimeout)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigurationMissingFields(t *testing.T) {
	path := writeConfig(t, `
device:
  host: 192.168.1.50
`)

	_, err := LoadConfiguration(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device.identity")
	assert.Contains(t, err.Error(), "device.psk_key")
	assert.Contains(t, err.Error(), "device.wifi_device_id")
	assert.Contains(t, err.Error(), "mqtt.ip_address")
}

func TestLoadConfigurationSimulateSkipsDeviceCredentials(t *testing.T) {
	path := writeConfig(t, `
device:
  simulate: true
  wifi_device_id: vent_sim
mqtt:
  ip_address: 10.0.0.2
`)

	cfg, err := LoadConfiguration(path)
	require.NoError(t, err)
	assert.True(t, cfg.Device.Simulate)
}

func TestLoadConfigurationRejectsBadPsk(t *testing.T) {
	path := writeConfig(t, `
device:
  host: 192.168.1.50
  identity: vent-identity
  psk_key: not-hex
  wifi_device_id: vent_abc123
mqtt:
  ip_address: 10.0.0.2
`)

	_, err := LoadConfiguration(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "psk_key")
}

func TestLoadConfigurationRejectsBadPort(t *testing.T) {
	path := writeConfig(t, `
device:
  host: 192.168.1.50
  identity: vent-identity
  psk_key: deadbeef
  wifi_device_id: vent_abc123
  port: 99999
mqtt:
  ip_address: 10.0.0.2
`)

	_, err := LoadConfiguration(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}

func TestLoadConfigurationMissingFile(t *testing.T) {
	_, err := LoadConfiguration(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestPskBytes(t *testing.T) {
	d := Device{PskKey: "deadbeef"}
	key, err := d.PskBytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, key)
}

func TestMqttClientOptions(t *testing.T) {
	m := Mqtt{IpAddress: "10.0.0.2", Username: "ha", Password: "secret"}
	opts := m.ClientOptions(testLogger())

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "tcp://10.0.0.2:1883", opts.Servers[0].String())
	assert.Equal(t, "ha", opts.Username)
	assert.Equal(t, AvailabilityTopic, opts.WillTopic)
	assert.Equal(t, []byte("offline"), opts.WillPayload)
	assert.True(t, opts.WillRetained)
	assert.True(t, opts.AutoReconnect)
}
