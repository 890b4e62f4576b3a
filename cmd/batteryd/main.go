// Command batteryd runs the BQ27541 battery miniclass on a host I2C bus
// and publishes its state over MQTT, Redis and HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"batterycode-go/battery"
	"batterycode-go/bus"
	"batterycode-go/drivers/bq27541"
	"batterycode-go/internal/config"
	"batterycode-go/internal/logger"
	"batterycode-go/internal/platform"
	"batterycode-go/services/api"
	"batterycode-go/services/bridge"
	cfgsvc "batterycode-go/services/config"
	"batterycode-go/services/monitor"
	"batterycode-go/services/store"
)

func main() {
	fs := pflag.NewFlagSet("batteryd", pflag.ExitOnError)
	config.Flags(fs)
	_ = fs.Parse(os.Args[1:])

	path, _ := fs.GetString("config")
	cfg, err := config.Load(path, fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, "batteryd:", err)
		os.Exit(2)
	}

	if show, _ := fs.GetBool("print-config"); show {
		out, err := cfg.YAML()
		if err != nil {
			fmt.Fprintln(os.Stderr, "batteryd:", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	log, closer, err := logger.New(cfg.Logger, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "batteryd:", err)
		os.Exit(2)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Error("batteryd exited")
		closer.Close()
		os.Exit(1)
	}
	log.Info("batteryd stopped")
}

func run(parent context.Context, cfg *config.Config, log *logrus.Logger) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	i2c, busCloser, err := platform.Open(cfg.Sensor, log)
	if err != nil {
		return err
	}
	defer busCloser.Close()

	dev := bq27541.New(i2c, bq27541.Config{Address: cfg.Sensor.Address})
	if err := platform.Probe(dev); err != nil {
		log.WithError(err).Warn("fuel gauge not answering; polling will report degraded")
	}

	mc := battery.New(dev, battery.WithLogger(log.WithField("component", "miniclass")))
	mc.PrepareHardware()

	b := bus.NewBus(32)
	var wg sync.WaitGroup
	spawn := func(name string, fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
			log.WithField("service", name).Debug("service exited")
		}()
	}

	spawn("bridge", func() { bridge.Start(ctx, b.NewConnection("bridge"), log) })

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pctx, pcancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pctx).Err(); err != nil {
			log.WithError(err).WithField("address", cfg.Redis.Address).Warn("redis not reachable; writes will be retried")
		}
		pcancel()

		// subscribed before the monitor starts publishing
		st := store.New(b.NewConnection("store"), store.NewRedisBackend(rdb), log)
		spawn("store", func() { st.Run(ctx) })
	}

	mon := monitor.New(b.NewConnection("monitor"), mc, monitor.Config{
		ID:           cfg.Monitor.ID,
		PollInterval: cfg.Monitor.PollInterval,
	}, log)
	spawn("monitor", func() { mon.Run(ctx) })

	httpErr := make(chan error, 1)
	if cfg.HTTP.Enabled {
		router := api.NewRouter(mc, log)
		spawn("api", func() { httpErr <- api.Serve(ctx, cfg.HTTPAddress(), router, log) })
	}

	// publish configuration last: every consumer above is subscribed, and
	// the values are retained for late subscribers anyway
	if err := cfgsvc.NewConfigService(cfg).Start(ctx, b.NewConnection("config")); err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"battery": cfg.Monitor.ID,
		"sim":     cfg.Sensor.Sim,
		"mqtt":    cfg.MQTT.Enabled,
		"redis":   cfg.Redis.Enabled,
		"http":    cfg.HTTP.Enabled,
	}).Info("batteryd started")

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-httpErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("http api: %w", err)
		}
	}

	cancel()
	wg.Wait()
	return runErr
}
