// Package app is the top-level runtime: it owns every subsystem handle
// (clock, config store, storage, catalog, per-bus buffers/RX tasks/file
// managers, the log writer, the network supervisor, mDNS, and the HTTP
// control API) and gives them a single Start/Shutdown lifecycle — construct
// every dependency once, hand long-running pieces a cancelable context,
// wait for a shutdown signal, then drain in reverse order.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/canlogger/canlogger/internal/bootstrap"
	"github.com/canlogger/canlogger/internal/canbus"
	"github.com/canlogger/canlogger/internal/catalog"
	"github.com/canlogger/canlogger/internal/clock"
	"github.com/canlogger/canlogger/internal/config"
	"github.com/canlogger/canlogger/internal/handler"
	"github.com/canlogger/canlogger/internal/logfile"
	"github.com/canlogger/canlogger/internal/metrics"
	"github.com/canlogger/canlogger/internal/middleware"
	"github.com/canlogger/canlogger/internal/netsup"
	"github.com/canlogger/canlogger/internal/reclaim"
	"github.com/canlogger/canlogger/internal/store"
	"github.com/canlogger/canlogger/internal/writer"
)

// reclaimInterval is how often the background reclamation pass runs, distinct
// from the inline EnsureSpace call C7 makes on every file open.
const reclaimInterval = 5 * time.Minute

// downloadConcurrency is the slot count handed to the control API's download
// limiter — the SD card analogue on this host is whatever disk backs
// StoragePath, so a small fixed cap avoids saturating it with parallel reads.
const downloadConcurrency = 4

// simFrameRate is the synthetic traffic rate for SimController, used only
// because no real CAN silicon is reachable from this host (see
// canbus.Controller's doc comment).
const simFrameRate = 50

// App owns every subsystem instance for one process.
type App struct {
	logger *slog.Logger

	backend   *store.Local
	cfg       *config.Store
	cat       *catalog.Catalog
	clk       *clock.Source
	reclaimer *reclaim.Reclaimer

	units   []writer.Unit
	rxTasks []*canbus.RXTask
	wr      *writer.Writer

	driver    netsup.Driver
	sup       *netsup.Supervisor
	announcer *netsup.Announcer

	srv *http.Server
}

// New builds every subsystem from settings but starts nothing. Construction
// failures (storage root unwritable, etc.) are fatal; everything after that
// point degrades gracefully and only logs.
func New(settings bootstrap.Settings, logger *slog.Logger) (*App, error) {
	backend, err := store.NewLocal(settings.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("app: storage init: %w", err)
	}

	cfgStore := config.Open(backend, logger)
	cat := catalog.Open(backend, logger)
	clk := clock.New()
	clk.ApplyManualEpoch(cfgStore.Get().Global.ManualEpoch)
	reclaimer := reclaim.New(backend, cat, logger)

	cfg := cfgStore.Get()
	token := cfg.Global.APIToken
	if token == "" {
		token = settings.BootAPIToken
	}

	var units []writer.Unit
	var rxTasks []*canbus.RXTask
	for i := 0; i < config.MaxBuses; i++ {
		bc := cfg.Buses[i]
		if !bc.Enabled {
			continue
		}
		busID := uint8(i)
		buf := canbus.NewBlockBuffer(0)
		mgr := logfile.New(busID, backend, clk, cat, logger, int64(cfg.Global.MaxFileBytes))
		units = append(units, writer.Unit{BusID: busID, BusName: bc.Name, Buffer: buf, Manager: mgr})
		rxTasks = append(rxTasks, &canbus.RXTask{
			BusID:      busID,
			Controller: canbus.NewSimController(simFrameRate, int64(i)+1),
			Buffer:     buf,
			Clock:      clk,
			Logger:     logger,
		})
	}

	wr := writer.New(units, reclaimer, logger)

	driver := netsup.NewSimDriver(time.Now().UnixNano())
	sup := netsup.New(driver, cfgStore, logger)
	announcer, err := netsup.NewAnnouncer(driver, logger)
	if err != nil {
		logger.Warn("app: mDNS announcer disabled", "err", err)
		announcer = nil
	}

	limiter := middleware.NewDownloadLimiter(downloadConcurrency)
	reg := metrics.New(units, wr, reclaimer, limiter.Active)

	h := handler.New(handler.Deps{
		Config:     cfgStore,
		Catalog:    cat,
		Backend:    backend,
		Clock:      clk,
		Units:      units,
		Writer:     wr,
		Supervisor: sup,
		Reclaimer:  reclaimer,
		Logger:     logger,
		Metrics:    reg,
		APIToken:   token,
		Limiter:    limiter,
	})

	srv := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		// A file download can run for as long as a slow Wi-Fi client takes to
		// drain it, so Read/WriteTimeout stay unbounded.
		ReadTimeout:  0,
		WriteTimeout: 0,
		IdleTimeout:  2 * time.Minute,
	}

	return &App{
		logger:    logger,
		backend:   backend,
		cfg:       cfgStore,
		cat:       cat,
		clk:       clk,
		reclaimer: reclaimer,
		units:     units,
		rxTasks:   rxTasks,
		wr:        wr,
		driver:    driver,
		sup:       sup,
		announcer: announcer,
		srv:       srv,
	}, nil
}

// Start opens every enabled-and-logging bus's file, then launches every
// background goroutine (RX tasks, writer, network supervisor, mDNS,
// reclamation, HTTP server) bound to ctx. It returns once everything has
// been launched; callers wait on ctx themselves before calling Shutdown.
func (a *App) Start(ctx context.Context) {
	cfg := a.cfg.Get()
	for i := range a.units {
		u := &a.units[i]
		bc := cfg.Buses[u.BusID]
		if !bc.Logging {
			continue
		}
		if err := u.Manager.Open(bc.Name, a.reclaimer); err != nil {
			a.logger.Error("app: initial file open failed", "bus", u.BusID, "err", err)
		}
	}

	for _, t := range a.rxTasks {
		go t.Run(ctx)
	}
	go a.wr.Run(ctx)
	go a.sup.Run(ctx)
	if a.announcer != nil {
		go a.announcer.Start(ctx)
	}
	a.reclaimer.RunPeriodic(ctx, uint64(cfg.Global.LowSpaceBytes), reclaimInterval)

	go func() {
		a.logger.Info("canlogger starting", "addr", a.srv.Addr, "storage", a.backend.Root(), "buses", len(a.units))
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("app: http server error", "err", err)
		}
	}()
}

// Shutdown drains the HTTP server and closes every open log file in an
// orderly fashion — the Go analogue of the original's stop() joining the
// writer task before returning.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.srv.Shutdown(ctx)
	for i := range a.units {
		if e := a.units[i].Manager.Close(); e != nil {
			a.logger.Error("app: close on shutdown failed", "bus", a.units[i].BusID, "err", e)
		}
	}
	a.logger.Info("canlogger stopped")
	return err
}
