// Package bridge ties the coordinator to the Home Assistant MQTT surface:
// discovery registration, state publishing on coordinator updates, and the
// command/service topics.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/JosyBan/ventaxia-ha/config"
	"github.com/JosyBan/ventaxia-ha/coordinator"
	"github.com/JosyBan/ventaxia-ha/homeassistant"
	"github.com/JosyBan/ventaxia-ha/vent"
)

const commandTimeout = 10 * time.Second

var timerEventTopic = fmt.Sprintf("%v/timer/event", config.TopicPrefix)

type Bridge struct {
	log         *zap.SugaredLogger
	cfg         *config.Configuration
	coordinator *coordinator.Coordinator
	timer       *coordinator.RuntimeTimer

	mu                 sync.Mutex
	mqtt               mqtt.Client
	ha                 *homeassistant.Client
	timerStateTopic    string
	selectStateTopic   string
	selectCommandTopic string
	buttonTopics       map[string]*buttonConfiguration
	lastAvailable      bool
}

var buttonDefinitions = [...]*buttonConfiguration{
	{
		name: "VentAxia Reset Airflow Mode",
		icon: "mdi:stop-circle",
		press: func(b *Bridge) error {
			return b.sendAirflowMode(vent.ModeReset, 0)
		},
	},
	{
		name: "VentAxia Normal Mode 15 Min",
		icon: "mdi:fan",
		press: func(b *Bridge) error {
			return b.sendAirflowMode(vent.ModeNormal, 15)
		},
	},
	{
		name: "VentAxia Boost Mode 30 Min",
		icon: "mdi:fan-plus",
		press: func(b *Bridge) error {
			return b.sendAirflowMode(vent.ModeBoost, 30)
		},
	},
	{
		name: "VentAxia Purge Mode 60 Min",
		icon: "mdi:fan-speed-3",
		press: func(b *Bridge) error {
			return b.sendAirflowMode(vent.ModePurge, 60)
		},
	},
	{
		name: "VentAxia Start Commissioning",
		icon: "mdi:fan",
		press: func(b *Bridge) error {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()
			return b.coordinator.StartCommissioning(ctx, b.coordinator.CommissionMode())
		},
	},
	{
		name: "VentAxia Stop Commissioning",
		icon: "mdi:stop-circle",
		press: func(b *Bridge) error {
			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()
			return b.coordinator.StopCommissioning(ctx)
		},
	},
}

func New(log *zap.SugaredLogger, cfg *config.Configuration, coord *coordinator.Coordinator) *Bridge {
	b := &Bridge{
		log:          log,
		cfg:          cfg,
		coordinator:  coord,
		buttonTopics: make(map[string]*buttonConfiguration),
	}

	entityID := fmt.Sprintf("%v_manual_airflow_timer", cfg.Device.WifiDeviceID)
	b.timer = coordinator.NewRuntimeTimer(log, entityID, b.publishTimerRemaining, b.publishTimerEvent)

	coord.SetConnectionListener(func(connected bool) {
		b.publishAvailabilityIfChanged()
	})
	return b
}

// Timer returns the runtime countdown timer entity.
func (b *Bridge) Timer() *coordinator.RuntimeTimer {
	return b.timer
}

// Coordinator returns the underlying coordinator.
func (b *Bridge) Coordinator() *coordinator.Coordinator {
	return b.coordinator
}

// RegisterEntities publishes discovery configs for every entity. Called from
// the MQTT OnConnect handler so registrations survive broker reconnects.
func (b *Bridge) RegisterEntities(mqttClient mqtt.Client) error {
	info := b.coordinator.DeviceInfo()
	ha := homeassistant.NewClient(mqttClient, homeassistant.Device{
		Identifiers:  []string{info.ID},
		Name:         info.Name,
		Manufacturer: info.Manufacturer,
	})

	b.mu.Lock()
	b.mqtt = mqttClient
	b.ha = ha
	b.mu.Unlock()

	for _, sensorConfig := range sensorDefinitions {
		stateTopic, err := ha.RegisterSensor(
			sensorConfig.name, sensorConfig.class, sensorConfig.unit,
			sensorConfig.icon, sensorConfig.stateClass)
		if err != nil {
			return fmt.Errorf("registering sensor %v: %w", sensorConfig.name, err)
		}
		sensorConfig.stateTopic = stateTopic
	}

	timerTopic, err := ha.RegisterSensor("VentAxia Manual Airflow Timer", "", "seconds", "mdi:timer", "")
	if err != nil {
		return fmt.Errorf("registering timer sensor: %w", err)
	}

	selectState, selectCmd, err := ha.RegisterSelect(
		"VentAxia Commissioning Mode", []string{vent.ModeNormal, vent.ModeBoost}, "mdi:fan")
	if err != nil {
		return fmt.Errorf("registering commissioning select: %w", err)
	}

	b.mu.Lock()
	b.timerStateTopic = timerTopic
	b.selectStateTopic = selectState
	b.selectCommandTopic = selectCmd
	b.mu.Unlock()

	for _, buttonConfig := range buttonDefinitions {
		commandTopic, err := ha.RegisterButton(buttonConfig.name, buttonConfig.icon)
		if err != nil {
			return fmt.Errorf("registering button %v: %w", buttonConfig.name, err)
		}
		b.mu.Lock()
		b.buttonTopics[commandTopic] = buttonConfig
		b.mu.Unlock()
	}

	if err := ha.PublishAvailability(b.coordinator.Available()); err != nil {
		return err
	}
	b.publish(selectState, b.coordinator.CommissionMode(), true)

	b.log.Infow("registered entities", "device", info.ID, "sensors", len(sensorDefinitions))
	return nil
}

// SubscribeToCommands wires the button, select and service topics. Also
// called from the OnConnect handler.
func (b *Bridge) SubscribeToCommands(mqttClient mqtt.Client) {
	b.mu.Lock()
	buttons := make(map[string]*buttonConfiguration, len(b.buttonTopics))
	for topic, cfg := range b.buttonTopics {
		buttons[topic] = cfg
	}
	selectCmd := b.selectCommandTopic
	b.mu.Unlock()

	for topic, buttonConfig := range buttons {
		buttonConfig := buttonConfig
		b.subscribe(mqttClient, topic, func(client mqtt.Client, msg mqtt.Message) {
			if err := buttonConfig.press(b); err != nil {
				b.log.Errorw("button press failed", "button", buttonConfig.name, "error", err)
			}
		})
	}

	b.subscribe(mqttClient, selectCmd, func(client mqtt.Client, msg mqtt.Message) {
		option := string(msg.Payload())
		if err := b.coordinator.SetCommissionMode(option); err != nil {
			b.log.Errorw("rejected commissioning mode", "option", option, "error", err)
			return
		}
		b.publish(b.selectStateTopic, option, true)
	})

	b.subscribe(mqttClient, fmt.Sprintf("%v/mode/set", config.TopicPrefix), b.handleSetAirflowMode)
	b.subscribe(mqttClient, fmt.Sprintf("%v/schedule/set", config.TopicPrefix), b.handleSetSchedule)
	b.subscribe(mqttClient, fmt.Sprintf("%v/bypass/set", config.TopicPrefix), b.handleSetBypass)
}

func (b *Bridge) subscribe(mqttClient mqtt.Client, topic string, handler mqtt.MessageHandler) {
	if t := mqttClient.Subscribe(topic, 0, handler); t.Wait() && t.Error() != nil {
		b.log.Errorw("MQTT subscribe failed", "topic", topic, "error", t.Error())
	}
}

// HandleUpdate runs synchronously on the coordinator's receive path after
// every processed message. It only publishes state; no device I/O.
func (b *Bridge) HandleUpdate() {
	snap := b.coordinator.Device().Snapshot()

	for _, sensorConfig := range sensorDefinitions {
		if sensorConfig.stateTopic == "" {
			continue
		}
		b.publish(sensorConfig.stateTopic, fmt.Sprintf("%v", sensorConfig.get(snap)), true)
	}

	b.publishAvailabilityIfChanged()
	b.driveTimer(snap)
}

// driveTimer mirrors the server-reported manual airflow state into the
// countdown timer.
func (b *Bridge) driveTimer(snap vent.Snapshot) {
	active := snap.AirflowModeCode != vent.AirflowModes[vent.ModeReset] &&
		snap.DurationMinutes > 0 && snap.RemainingSeconds > 0
	if active {
		b.timer.Start(snap.DurationMinutes)
	} else {
		b.timer.Cancel()
	}
}

func (b *Bridge) publishAvailabilityIfChanged() {
	available := b.coordinator.Available()

	b.mu.Lock()
	changed := available != b.lastAvailable
	b.lastAvailable = available
	ha := b.ha
	b.mu.Unlock()

	if changed && ha != nil {
		if err := ha.PublishAvailability(available); err != nil {
			b.log.Warnw("availability publish failed", "error", err)
		}
	}
}

func (b *Bridge) handleSetAirflowMode(client mqtt.Client, msg mqtt.Message) {
	cmd, err := parseAirflowCommand(msg.Payload())
	if err != nil {
		b.log.Errorw("invalid mode/set payload", "error", err)
		return
	}
	if err := b.sendAirflowMode(cmd.Mode, cmd.Duration); err != nil {
		b.log.Errorw("set airflow mode failed", "mode", cmd.Mode, "error", err)
	}
}

func (b *Bridge) handleSetSchedule(client mqtt.Client, msg mqtt.Message) {
	schedule, err := parseScheduleCommand(msg.Payload())
	if err != nil {
		b.log.Errorw("invalid schedule/set payload", "error", err)
		return
	}
	if !validScheduleSlot(schedule.Name) {
		b.log.Errorw("unknown schedule slot", "name", schedule.Name)
		return
	}

	raw, err := vent.EncodeScheduleField(schedule)
	if err != nil {
		b.log.Errorw("schedule encode failed", "error", err)
		return
	}

	// Keep raw and decoded forms on the model, mirroring inbound updates.
	b.coordinator.Device().SetSchedule(schedule.Name, raw)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := b.coordinator.SendUpdate(ctx, map[string]any{schedule.Name: raw}); err != nil {
		b.log.Errorw("schedule update failed", "name", schedule.Name, "error", err)
	}
}

func (b *Bridge) handleSetBypass(client mqtt.Client, msg mqtt.Message) {
	fields, err := parseBypassCommand(msg.Payload())
	if err != nil {
		b.log.Errorw("invalid bypass/set payload", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := b.coordinator.SendUpdate(ctx, fields); err != nil {
		b.log.Errorw("bypass update failed", "error", err)
	}
}

func (b *Bridge) sendAirflowMode(mode string, minutes int) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return b.coordinator.SendAirflowMode(ctx, mode, minutes)
}

func (b *Bridge) publishTimerRemaining(remainingSeconds int) {
	b.mu.Lock()
	topic := b.timerStateTopic
	b.mu.Unlock()
	if topic == "" {
		return
	}
	b.publish(topic, fmt.Sprintf("%v", remainingSeconds), true)
}

func (b *Bridge) publishTimerEvent(event coordinator.TimerEvent) {
	b.log.Infow("timer event", "type", event.Type, "entity", event.Entity,
		"duration_minutes", event.DurationMinutes)

	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	b.publish(timerEventTopic, string(payload), false)
}

// publish fires and forgets; state publishing happens on the receive path
// and must not block on broker round trips.
func (b *Bridge) publish(topic, payload string, retain bool) {
	b.mu.Lock()
	mqttClient := b.mqtt
	b.mu.Unlock()
	if mqttClient == nil {
		return
	}
	mqttClient.Publish(topic, 0, retain, payload)
}
