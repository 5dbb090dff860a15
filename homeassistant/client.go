// Package homeassistant registers entities over MQTT discovery.
package homeassistant

import (
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/JosyBan/ventaxia-ha/config"
)

type Client struct {
	mqtt   mqtt.Client
	device Device
}

// NewClient wraps an MQTT client for discovery registration. All entities
// are attached to the given device.
func NewClient(mqttClient mqtt.Client, device Device) *Client {
	return &Client{
		mqtt:   mqttClient,
		device: device,
	}
}

// RegisterSensor publishes a retained sensor config and returns the state
// topic the bridge should publish values to.
func (h *Client) RegisterSensor(name, class, unit, icon, stateClass string) (string, error) {
	uniqueId := uniqueId(name)

	var stateTopic string
	if class == "" {
		stateTopic = fmt.Sprintf("%v/%v", config.TopicPrefix, uniqueId)
	} else {
		stateTopic = fmt.Sprintf("%v/%v/%v", config.TopicPrefix, class, uniqueId)
	}

	payload, _ := json.Marshal(sensorConfiguration{
		UniqueId:          uniqueId,
		Name:              name,
		DeviceClass:       class,
		StateTopic:        stateTopic,
		UnitOfMeasurement: unit,
		Icon:              icon,
		StateClass:        stateClass,
		AvailabilityTopic: config.AvailabilityTopic,
		Device:            h.device,
	})

	configTopic := fmt.Sprintf("%v/sensor/%v/config", config.HomeAssistantPrefix, uniqueId)
	if t := h.mqtt.Publish(configTopic, 0, true, payload); t.Wait() && t.Error() != nil {
		return "", t.Error()
	}

	return stateTopic, nil
}

// RegisterSelect publishes a retained select config and returns the state
// and command topics.
func (h *Client) RegisterSelect(name string, options []string, icon string) (string, string, error) {
	uniqueId := uniqueId(name)
	stateTopic := fmt.Sprintf("%v/select/%v/state", config.TopicPrefix, uniqueId)
	commandTopic := fmt.Sprintf("%v/select/%v/cmd", config.TopicPrefix, uniqueId)

	payload, _ := json.Marshal(selectConfiguration{
		UniqueId:          uniqueId,
		Name:              name,
		StateTopic:        stateTopic,
		CommandTopic:      commandTopic,
		Options:           options,
		Icon:              icon,
		AvailabilityTopic: config.AvailabilityTopic,
		Device:            h.device,
	})

	configTopic := fmt.Sprintf("%v/select/%v/config", config.HomeAssistantPrefix, uniqueId)
	if t := h.mqtt.Publish(configTopic, 0, true, payload); t.Wait() && t.Error() != nil {
		return "", "", t.Error()
	}

	return stateTopic, commandTopic, nil
}

// RegisterButton publishes a retained button config and returns the command
// topic the bridge should subscribe to.
func (h *Client) RegisterButton(name, icon string) (string, error) {
	uniqueId := uniqueId(name)
	commandTopic := fmt.Sprintf("%v/button/%v/cmd", config.TopicPrefix, uniqueId)

	payload, _ := json.Marshal(buttonConfiguration{
		UniqueId:          uniqueId,
		Name:              name,
		CommandTopic:      commandTopic,
		Icon:              icon,
		AvailabilityTopic: config.AvailabilityTopic,
		Device:            h.device,
	})

	configTopic := fmt.Sprintf("%v/button/%v/config", config.HomeAssistantPrefix, uniqueId)
	if t := h.mqtt.Publish(configTopic, 0, true, payload); t.Wait() && t.Error() != nil {
		return "", t.Error()
	}

	return commandTopic, nil
}

// PublishAvailability marks every registered entity online or offline.
func (h *Client) PublishAvailability(online bool) error {
	state := "offline"
	if online {
		state = "online"
	}
	if t := h.mqtt.Publish(config.AvailabilityTopic, 0, true, state); t.Wait() && t.Error() != nil {
		return t.Error()
	}
	return nil
}

func uniqueId(name string) string {
	return strings.Replace(strings.ToLower(name), " ", "_", -1)
}
