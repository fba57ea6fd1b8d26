package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/antermbg/livetrack/cli/agent/config"
	"github.com/antermbg/livetrack/cli/agent/position"
	"github.com/antermbg/livetrack/cli/agent/session"
	"github.com/antermbg/livetrack/libs/deliveries"
	"github.com/antermbg/livetrack/libs/locfeed"

	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	configFilePath := ""
	flag.StringVar(&configFilePath, "c", "", "path to the config file")
	flag.Parse()

	if configFilePath == "" {
		log.Fatal("Config file path is not set")
	}
	cfg, err := config.New(configFilePath)
	if err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}

	configureLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn := locfeed.NewConnection(locfeed.Options{
		URL:            cfg.BrokerURL,
		ClientIDPrefix: cfg.ClientIDPrefix,
		ConnectTimeout: cfg.GetConnectTimeout(),
		AckTimeout:     cfg.GetAckTimeout(),
		ReconnectBase:  cfg.GetReconnectBase(),
		MaxReconnects:  cfg.MaxReconnects,
	})
	defer conn.Disconnect()

	publisher := locfeed.NewPublisher(conn)
	var source position.Source = position.NewGpsdSource(cfg.GpsdAddr)
	client := deliveries.NewClient(cfg.DeliveryAPIURL)
	tracker := deliveries.NewTracker(deliveries.NewSelector(deliveries.Mode(cfg.Mode)))

	fixes, err := source.Watch(ctx, position.Options{HighAccuracy: true})
	if err != nil {
		log.Fatalf("Failed to start position watch: %v", err)
	}

	orders := make(chan string, 1)
	go pollDeliveries(ctx, client, tracker, deliveries.Mode(cfg.Mode), cfg.GetPollInterval(), orders)

	log.WithField("driver_id", cfg.DriverID).Info("Driver agent started")
	sess := session.New(cfg.DriverID, publisher, cfg.GetPublishInterval())
	sess.Run(ctx, fixes, orders)

	log.Info("Driver agent stopped")
}

// pollDeliveries keeps the active-order state machine fed from the listing
// API and forwards every transition to the publish session.
func pollDeliveries(ctx context.Context, client *deliveries.Client, tracker *deliveries.Tracker, mode deliveries.Mode, every time.Duration, orders chan<- string) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		list, err := client.List(ctx, mode)
		if err != nil {
			log.WithField("err", err).Error("Failed to list deliveries")
		} else if tr, changed := tracker.Observe(list); changed {
			log.WithField("prev", tr.Prev).WithField("next", tr.Next).Info("Active order transition")
			select {
			case orders <- tr.Next:
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-t.C:
		case <-ctx.Done():
			return
		}
	}
}

func configureLogging(cfg config.Settings) {
	log.SetLevel(cfg.GetLogLevel())

	consoleFmt := &log.TextFormatter{ForceColors: true, FullTimestamp: false}
	log.SetFormatter(consoleFmt)
	log.SetOutput(os.Stdout)

	if cfg.LogFilePath != "" {
		logDir := filepath.Dir(cfg.LogFilePath)
		if _, err := os.Stat(logDir); os.IsNotExist(err) {
			if err := os.MkdirAll(logDir, os.ModePerm); err != nil {
				log.Fatalf("Failed to create log directory: %v", err)
			}
		}

		lumberjackLogger := &lumberjack.Logger{
			Filename:   cfg.LogFilePath,
			MaxSize:    100,
			MaxBackups: 366,
			MaxAge:     cfg.LogMaxAgeDays,
			Compress:   true,
		}

		fileFmt := &log.TextFormatter{DisableColors: true, FullTimestamp: true}
		hook := lfshook.NewHook(lfshook.WriterMap{
			log.PanicLevel: lumberjackLogger,
			log.FatalLevel: lumberjackLogger,
			log.ErrorLevel: lumberjackLogger,
			log.WarnLevel:  lumberjackLogger,
			log.InfoLevel:  lumberjackLogger,
			log.DebugLevel: lumberjackLogger,
			log.TraceLevel: lumberjackLogger,
		}, fileFmt)

		log.AddHook(hook)
	}
}
