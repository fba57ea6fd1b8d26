package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/antermbg/livetrack/cli/tracker/api"
	"github.com/antermbg/livetrack/cli/tracker/config"
	"github.com/antermbg/livetrack/cli/tracker/feed"
	"github.com/antermbg/livetrack/cli/tracker/storage"
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

	var sink storage.Saver
	if len(cfg.Store) > 0 {
		repo := storage.NewRepository()
		if err := repo.LoadStorages(cfg.Store); err != nil {
			log.Fatalf("Failed to initialize storages: %v", err)
		}
		asyncRepo := storage.NewAsyncRepository(repo, cfg.StoreBuffer, cfg.StoreWorkers)
		defer asyncRepo.Close()
		sink = asyncRepo
	} else {
		log.Warn("No storages configured, location history will not be persisted")
	}

	conn := locfeed.NewConnection(locfeed.Options{
		URL:            cfg.BrokerURL,
		ClientIDPrefix: cfg.ClientIDPrefix,
		ConnectTimeout: cfg.GetConnectTimeout(),
		ReconnectBase:  cfg.GetReconnectBase(),
		MaxReconnects:  cfg.MaxReconnects,
	})
	defer conn.Disconnect()

	subscriber := locfeed.NewSubscriber(conn)
	client := deliveries.NewClient(cfg.DeliveryAPIURL)
	latest := feed.NewLatest()

	go runApi(latest, cfg.ApiPort)

	log.Info("Tracker started")
	feed.New(subscriber, client, latest, sink).Run(ctx, cfg.GetPollInterval())
	log.Info("Tracker stopped")
}

func runApi(latest *feed.Latest, port int32) {
	handler := api.NewHandler(latest)
	controller := api.NewController(handler)
	log.Infof("Starting API on port %d", port)
	if err := controller.Run(port); err != nil {
		log.Fatal(err)
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
