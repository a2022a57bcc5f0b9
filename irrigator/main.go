package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itohio/irrigo/pkg/board"
	"github.com/itohio/irrigo/pkg/clock"
	"github.com/itohio/irrigo/pkg/config"
	"github.com/itohio/irrigo/pkg/control"
	"github.com/itohio/irrigo/pkg/metrics"
	"github.com/itohio/irrigo/pkg/station"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	var (
		configFlag  = flag.String("config", envOr("IRRIGO_CONFIG", "config.yaml"), "Configuration file path")
		portFlag    = flag.String("p", os.Getenv("IRRIGO_PORT"), "Serial port override (e.g., /dev/ttyACM0)")
		mockFlag    = flag.Bool("mock", false, "Use simulated board instead of serial port")
		speedFlag   = flag.Float64("speed", 1, "Simulation speed factor for the mocked board")
		modelFlag   = flag.String("model", "", "Model file override")
		modeFlag    = flag.String("mode", "", "Decision mode override (threshold or inference)")
		metricsFlag = flag.String("metrics", "", "Prometheus listen address override (e.g., :9100)")
		listFlag    = flag.Bool("list", false, "List serial ports and exit")
	)
	flag.Parse()

	if *listFlag {
		ports, err := board.Ports()
		if err != nil {
			log.Fatalf("Failed to list ports: %v", err)
		}
		for _, p := range ports {
			log.Printf("%s\t%s", p.Name, p.Description)
		}
		return
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *modelFlag != "" {
		cfg.Inference.ModelPath = *modelFlag
	}
	if *modeFlag != "" {
		cfg.Decision.Mode = *modeFlag
	}
	if *metricsFlag != "" {
		cfg.Metrics.Listen = *metricsFlag
	}

	var clk clock.Clock = clock.Real{}
	if *mockFlag && *speedFlag != 1 {
		clk = clock.NewScaled(*speedFlag, time.Now())
	}

	st, err := station.Open(cfg, station.Options{Mock: *mockFlag, Clock: clk})
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer st.Close()

	if *mockFlag {
		log.Printf("Using mocked board at %gx speed", *speedFlag)
	} else {
		log.Printf("Connected to serial port: %s", cfg.Serial.Port)
	}

	st.Loop.OnReport(control.LineSink(os.Stdout))

	if cfg.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := metrics.New(reg)
		st.Loop.OnReport(m.Observe)

		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: metricsMux(reg)}
		go func() {
			log.Printf("Serving metrics on %s/metrics", cfg.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("Metrics server failed: %v", err)
			}
		}()
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := st.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Controller stopped: %v", err)
		return
	}
	log.Printf("Shutting down")
}

func metricsMux(reg *prometheus.Registry) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
