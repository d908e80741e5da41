package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"dynstack.ai/internal/metrics"
	"dynstack.ai/internal/persistence/indexdb"
	persistlog "dynstack.ai/internal/persistence/log"
	"dynstack.ai/internal/planner"
	"dynstack.ai/internal/transport/ws"
	"dynstack.ai/internal/tuning"
)

func main() {
	var (
		url         = flag.String("url", "ws://localhost:8080/v1/planner", "simulator ws url")
		name        = flag.String("name", "brp-planner", "planner name sent in HELLO")
		simID       = flag.String("sim", "", "simulation id to attach to")
		tuningPath  = flag.String("tuning", "./configs/planner.yaml", "path to planner.yaml")
		dataDir     = flag.String("data", "./data", "runtime data directory")
		disableDB   = flag.Bool("disable_db", false, "disable the sqlite cycle index")
		disableLog  = flag.Bool("disable_plan_log", false, "disable the compressed plan log")
		metricsAddr = flag.String("metrics_addr", "", "metrics http listen address (empty to disable)")
		reconnect   = flag.Duration("reconnect", 2*time.Second, "delay before redialing after the connection drops (0 to exit)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[planner] ", log.LstdFlags|log.Lmicroseconds)
	wsLogger := log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(strings.TrimSpace(*tuningPath))
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}
	logger.Printf("tuning: budget=%d timeout_ms=%d max_moves=%d exclude_arrival_target=%v replan_while_busy=%v",
		tune.SearchBudget, tune.SearchTimeoutMs, tune.MaxMoves, tune.ExcludeArrivalTarget, tune.ReplanWhileBusy)

	r := &runner{
		planner: planner.New(tune, logger),
		log:     logger,
		metrics: metrics.New(),
	}
	if !*disableLog {
		pl := persistlog.NewPlanLogger(*dataDir)
		defer pl.Close()
		r.plans = pl
	}
	if !*disableDB {
		idx, err := indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "planner.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		idx.RecordTuning(tune)
		r.index = idx
	}

	ctx, cancel := signalContext()
	defer cancel()

	if addr := strings.TrimSpace(*metricsAddr); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", r.metrics.Handler())
		mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
			rw.WriteHeader(http.StatusOK)
			_, _ = rw.Write([]byte("ok\n"))
		})
		if os.Getenv("DYNSTACK_ENABLE_PPROF_HTTP") == "true" {
			mux.HandleFunc("/debug/pprof/", pprof.Index)
			mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
			mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		}
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			<-ctx.Done()
			ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel2()
			_ = srv.Shutdown(ctx2)
		}()
		go func() {
			logger.Printf("metrics on %s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("metrics server: %v", err)
			}
		}()
	}

	for {
		err := session(ctx, *url, *name, *simID, r, wsLogger)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			logger.Printf("session ended: %v", err)
		} else {
			logger.Printf("simulator closed the connection")
		}
		if *reconnect <= 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(*reconnect):
		}
	}
}

func session(ctx context.Context, url, name, simID string, r *runner, logger *log.Logger) error {
	c, err := ws.Dial(ctx, url, name, simID, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	logger.Printf("connected to %s as %q", url, name)
	return c.Run(ctx, r.handle)
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
