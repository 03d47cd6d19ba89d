// Command bedwetter runs the irrigation controller: a cron-driven
// watering loop, an MQTT command listener and a single coordinator that
// owns the valve relay.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bedwetter/bedwetter/internal/config"
	"github.com/bedwetter/bedwetter/internal/coordinator"
	"github.com/bedwetter/bedwetter/internal/engine"
	"github.com/bedwetter/bedwetter/internal/forecast"
	"github.com/bedwetter/bedwetter/internal/health"
	"github.com/bedwetter/bedwetter/internal/history"
	"github.com/bedwetter/bedwetter/internal/ledger"
	"github.com/bedwetter/bedwetter/internal/listener"
	"github.com/bedwetter/bedwetter/internal/metrics"
	"github.com/bedwetter/bedwetter/internal/model"
	"github.com/bedwetter/bedwetter/internal/notify"
	"github.com/bedwetter/bedwetter/internal/relay"
	"github.com/bedwetter/bedwetter/internal/scheduler"
	"github.com/bedwetter/bedwetter/pkg/mqttbus"
)

func main() {
	cfgPath := flag.String("config", config.DefaultPath, "path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config) error {
	// connCtx keeps the broker connection alive through the whole
	// shutdown sequence; runCtx stops the loops first.
	connCtx, connCancel := context.WithCancel(context.Background())
	defer connCancel()
	runCtx, runCancel := context.WithCancel(connCtx)
	defer runCancel()

	sched, err := scheduler.ParseSchedule(cfg.Watering.CronSchedule, cfg.Watering.UTC)
	if err != nil {
		return err
	}

	valve, err := relay.NewRealDriver(cfg.Relay.Chip, cfg.Relay.Pin)
	if err != nil {
		return fmt.Errorf("init relay: %w", err)
	}
	defer valve.Close()

	led, err := ledger.NewFileLedger(cfg.Ledger.Path)
	if err != nil {
		return err
	}

	client, err := mqttbus.Connect(connCtx, &mqttbus.Config{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		User:     cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		ClientID: cfg.MQTT.ClientID,
	})
	if err != nil {
		return err
	}
	pub := mqttbus.NewPublisher(client)
	notifier := notify.NewMQTTNotifier(pub, cfg.MQTT.Topic, notify.Gates{
		Success:  cfg.Notify.OnSuccess,
		Failure:  cfg.Notify.OnFailure,
		Inaction: cfg.Notify.OnInaction,
		Service:  cfg.Notify.OnService,
	})

	registry := prometheus.NewRegistry()
	mx := metrics.New(registry)

	coord := coordinator.New(valve, notifier, led, mx)
	source := forecast.NewWeatherFlowClient(
		cfg.WeatherFlow.APIKey, cfg.WeatherFlow.Latitude, cfg.WeatherFlow.Longitude,
		cfg.WeatherFlow.Timeout())
	eng := engine.New(engine.Config{
		ThresholdDays:    cfg.Watering.ThresholdDays,
		ThresholdPercent: cfg.Watering.ThresholdPercent,
		Duration:         cfg.Watering.Duration(),
		FetchTimeout:     cfg.WeatherFlow.Timeout(),
	}, source, led, mx)
	sch := scheduler.New(sched, eng, coord, notifier, mx, cfg.Watering.PollInterval())

	cmdConsumer := mqttbus.NewConsumer(client, cfg.MQTT.Topic+"/cmd/#", 1, nil)
	lst := listener.New(cmdConsumer, coord, sch, mx, cfg.Watering.Duration())

	var wg sync.WaitGroup
	errc := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sch.Run(runCtx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := lst.Start(runCtx); err != nil {
			select {
			case errc <- fmt.Errorf("command listener: %w", err):
			default:
			}
		}
	}()

	if cfg.Influx.HistoryEnabled() {
		evConsumer := mqttbus.NewConsumer(client, cfg.MQTT.Topic+"/event/#", 0, nil)
		rec, err := history.NewRecorder(evConsumer, history.InfluxConfig{
			URL:         cfg.Influx.URL,
			Token:       cfg.Influx.Token,
			Org:         cfg.Influx.Org,
			Bucket:      cfg.Influx.Bucket,
			Measurement: cfg.Influx.Measurement,
		})
		if err != nil {
			log.Printf("main: history recorder disabled: %v", err)
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := rec.Start(runCtx); err != nil {
					log.Printf("main: history recorder stopped: %v", err)
				}
			}()
		}
	}

	if cfg.HTTP.Addr != "" {
		hs := health.NewServer(pub, coord, notifier, registry)
		srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: hs.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("main: http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("main: health server listening on %s", cfg.HTTP.Addr)
	}

	if err := notifier.Send(model.EventStartingUp, "Startup has completed"); err != nil {
		log.Printf("main: startup notification failed: %v", err)
	}
	log.Printf("main: running, schedule %q topic %q", cfg.Watering.CronSchedule, cfg.MQTT.Topic)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)

	var cause error
	select {
	case s := <-sigc:
		log.Printf("main: received %v, shutting down", s)
		if err := notifier.Send(model.EventShuttingDown, fmt.Sprintf("Caught %v, shutting down", s)); err != nil {
			log.Printf("main: shutdown notification failed: %v", err)
		}
	case cause = <-errc:
		log.Printf("main: %v, shutting down", cause)
		if err := notifier.Send(model.EventShuttingDown, "Shutting down: command listener failed"); err != nil {
			log.Printf("main: shutdown notification failed: %v", err)
		}
	}

	// Shutdown order: announce intent, stop the loops, join any cycle a
	// command goroutine left in flight (it emits its own terminal event),
	// then force the valve off and verify before exiting. Never leave the
	// valve on.
	runCancel()
	wg.Wait()
	coord.Wait()

	if err := coord.ForceOff(); err != nil {
		if nerr := notifier.Send(model.EventWateringRunaway, "Valve did not confirm off at shutdown!"); nerr != nil {
			log.Printf("main: runaway notification failed: %v", nerr)
		}
		return fmt.Errorf("shutdown: %w", err)
	}
	return cause
}
