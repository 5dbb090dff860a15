package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JosyBan/ventaxia-ha/bridge"
	"github.com/JosyBan/ventaxia-ha/config"
	"github.com/JosyBan/ventaxia-ha/coordinator"
	"github.com/JosyBan/ventaxia-ha/logger"
	"github.com/JosyBan/ventaxia-ha/routes"
	"github.com/JosyBan/ventaxia-ha/vent"
	"github.com/JosyBan/ventaxia-ha/ventsim"
)

func main() {
	configFile := flag.String("config", "ventaxia.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfiguration(*configFile)
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error loading configuration", "error", err)
	}
	log := logger.Get(cfg.LogLevel)

	var client vent.Client
	if cfg.Device.Simulate {
		log.Info("running against the device simulator")
		client = ventsim.New(cfg.Device.WifiDeviceID, 2*time.Second)
	} else {
		key, err := cfg.Device.PskBytes()
		if err != nil {
			log.Fatalw("error decoding PSK", "error", err)
		}
		client = vent.NewNativeClient(vent.NativeConfig{
			Host:           cfg.Device.Host,
			Port:           cfg.Device.Port,
			Identity:       cfg.Device.Identity,
			Key:            key,
			WifiDeviceID:   cfg.Device.WifiDeviceID,
			ConnectTimeout: cfg.Device.Timeout(),
		})
	}

	coord := coordinator.New(log, client, cfg.Device.WifiDeviceID)
	if err := coord.Start(context.Background()); err != nil {
		log.Fatalw("error connecting to device", "error", err)
	}

	b := bridge.New(log, cfg, coord)
	removeCallback := coord.AddUpdateCallback(b.HandleUpdate)
	defer removeCallback()

	mqttOpts := cfg.Mqtt.ClientOptions(log)
	// Register and subscribe in the ConnectHandler so the discovery configs
	// and subscriptions are restored after a broker reconnect.
	mqttOpts.SetOnConnectHandler(func(client mqtt.Client) {
		if err := b.RegisterEntities(client); err != nil {
			log.Errorw("entity registration failed", "error", err)
		}
		b.SubscribeToCommands(client)
	})

	mqttClient := mqtt.NewClient(mqttOpts)
	if t := mqttClient.Connect(); t.Wait() && t.Error() != nil {
		log.Fatalw("MQTT connection error", "error", t.Error())
	}

	router := httprouter.New()
	router.GET("/state", routes.State(log, b))
	router.Handler(http.MethodGet, "/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(cfg.HTTP.Addr, router); err != nil {
			log.Errorw("HTTP server stopped", "error", err)
		}
	}()

	log.Infow("bridge running", "device", cfg.Device.WifiDeviceID, "http", cfg.HTTP.Addr)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	b.Timer().Close()
	coord.Stop()
	mqttClient.Disconnect(250)
}
