package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/icodeforyou/pvsoiling/config"
	"github.com/icodeforyou/pvsoiling/database"
	"github.com/icodeforyou/pvsoiling/days"
	"github.com/icodeforyou/pvsoiling/huawei"
	"github.com/icodeforyou/pvsoiling/inverter"
	"github.com/icodeforyou/pvsoiling/irradiance"
	"github.com/icodeforyou/pvsoiling/logging"
	"github.com/icodeforyou/pvsoiling/notify"
	"github.com/icodeforyou/pvsoiling/openmeteo"
	"github.com/icodeforyou/pvsoiling/reading"
	"github.com/icodeforyou/pvsoiling/task"
	"github.com/icodeforyou/pvsoiling/www"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
)

var Version = "?.?.?"

func main() {
	defer func() {
		if err := recover(); err != nil {
			exitWithError(slog.Default(), fmt.Errorf("application panicked: %v", err))
		} else {
			slog.Default().Info("application is shutting down...")
		}
	}()

	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Secrets such as ENCRYPTION_KEY usually live in a local .env file.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic(fmt.Sprintf("failed to load .env file: %v", err))
	}

	cnfg, err := config.Load(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := days.SetTimezone(cnfg.GetTimezone()); err != nil {
		panic(fmt.Sprintf("failed to set timezone: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consoleLevel := new(slog.LevelVar)
	consoleLevel.Set(cnfg.Logging.GetConsoleLevel())
	consoleHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      consoleLevel,
		TimeFormat: time.RFC3339,
	})
	slog.New(consoleHandler).Debug("pvsoiling is starting...", slog.String("version", Version))

	db, err := database.New(ctx, cnfg.Database.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to connect to database: %v", err))
	}
	defer db.Close()

	logger := slog.New(logging.NewMultiHandler(
		consoleHandler,
		logging.NewSQLiteHandler(db, cnfg.Logging.GetDbLevel(), cnfg.Logging.GetDbAttrsFormat())))
	slog.SetDefault(logger)

	// Now we can use the logger to log database operations into the database itself
	db.SetLogger(logger.With("module", "database"))

	if file := cnfg.File(); file != "" {
		stopWatching, err := config.Watch(logger.With("module", "config"), file, func(c *config.AppConfig) {
			consoleLevel.Set(c.Logging.GetConsoleLevel())
		})
		if err != nil {
			logger.Warn("config changes will not be picked up", slog.Any("error", err))
		} else {
			defer stopWatching()
		}
	}

	vault, err := inverter.NewVault(cnfg.Encryption.Key)
	if err != nil {
		panic(fmt.Sprintf("failed to create credential vault: %v", err))
	}

	if cnfg.Scheduler.Secret == "" {
		panic("scheduler secret is not set, configure SCHEDULER_SECRET")
	}

	weather := openmeteo.New(
		cnfg.Weather.GetArchiveURL(),
		cnfg.Weather.GetForecastURL(),
		cnfg.Weather.GetTimeout())
	irradianceService := irradiance.NewService(logger.With("module", "irradiance"), db, weather)
	pipeline := reading.NewPipeline(logger.With("module", "reading"), db, irradianceService)

	inverters := inverter.NewFactory(logger.With("module", "inverter"), inverter.Options{
		SolarEdgeBaseURL: cnfg.SolarEdge.GetBaseURL(),
		Huawei: huawei.Options{
			BaseURL:     cnfg.Huawei.GetBaseURL(),
			SessionTTL:  cnfg.Huawei.GetSessionTTL(),
			MinInterval: cnfg.Huawei.GetMinRequestInterval(),
		},
	})

	var mqttPublisher notify.Publisher
	if cnfg.Mqtt.Enabled() {
		mp := notify.NewMqttPublisher(
			cnfg.Mqtt.Host,
			cnfg.Mqtt.GetPort(),
			cnfg.Mqtt.Username,
			cnfg.Mqtt.Password,
			cnfg.Mqtt.GetTopicPrefix())
		if isDevMode() {
			logger.Info("dev mode, skipping mqtt connection")
		} else {
			if err := mp.Connect(); err != nil {
				panic(fmt.Sprintf("mqtt connection error: %v", err))
			}
			defer mp.Disconnect()
			mqttPublisher = mp
		}
	}

	// The syncer publishes to the websocket hub as well, it is wired after the server is created.
	var publishers notify.Multi
	syncer := task.NewSyncer(
		logger.With("module", "task", "task", "sync"),
		db,
		vault,
		inverters,
		pipeline,
		notify.PublisherFunc(func(ctx context.Context, e notify.Event) error {
			return publishers.Publish(ctx, e)
		}),
		cnfg.Scheduler.GetMinInterval())

	server := www.NewServer(www.Services{
		Store:      db,
		Pipeline:   pipeline,
		Irradiance: irradianceService,
		Vault:      vault,
		Inverters:  inverters,
		Syncer:     syncer,
		Publisher:  mqttPublisher,
	}, cnfg.Api, cnfg.Scheduler.Secret)
	publishers = notify.Multi{server.Hub(), mqttPublisher}

	tasks := task.NewTasks(db, syncer, cnfg)
	if err := tasks.Validate(); err != nil {
		panic(fmt.Sprintf("invalid scheduler config: %v", err))
	}
	if isDevMode() {
		logger.Info("dev mode, skipping task scheduling")
	} else {
		tasks.Run()
		defer tasks.Stop()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("main context done")
		case sig := <-sigCh:
			logger.Info("received signal", slog.Any("signal", sig))
			cancel()
		}
	}()

	server.Run(ctx)
}

func isDevMode() bool {
	return strings.EqualFold(os.Getenv("APP_ENV"), "development")
}

func exitWithError(logger *slog.Logger, err error) {
	if err != nil {
		logger.Error("application shutting down with error", slog.Any("error", err))
	}
	if syncer, ok := logger.Handler().(interface{ Sync() error }); ok {
		if syncErr := syncer.Sync(); syncErr != nil {
			logger.Error("failed to flush logger", slog.Any("error", syncErr))
		}
	}

	time.Sleep(2 * time.Second)
	os.Exit(1)
}
