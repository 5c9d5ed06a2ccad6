package www

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/icodeforyou/pvsoiling/config"
	"github.com/icodeforyou/pvsoiling/database"
	"github.com/icodeforyou/pvsoiling/days"
	"github.com/icodeforyou/pvsoiling/inverter"
	"github.com/icodeforyou/pvsoiling/notify"
	"github.com/icodeforyou/pvsoiling/reading"
	"github.com/icodeforyou/pvsoiling/task"
	"github.com/icodeforyou/pvsoiling/types"
)

type Store interface {
	SavePlant(ctx context.Context, p types.Plant) error
	GetPlant(ctx context.Context, id string) (types.Plant, error)
	GetReadings(ctx context.Context, plantID string, from, to days.Date) ([]types.ProductionReading, error)
	SaveIntegration(ctx context.Context, in types.InverterIntegration) error
	GetActiveIntegration(ctx context.Context, plantID string) (types.InverterIntegration, error)
	DeactivateIntegration(ctx context.Context, plantID string) error
	GetLogEntries(ctx context.Context, minLvl slog.Level, page, pageSize int) ([]database.LogEntryRow, error)
}

type ReadingPipeline interface {
	Process(ctx context.Context, in reading.Input) (reading.Result, error)
	Delete(ctx context.Context, plantID string, date string) error
}

type IrradianceSource interface {
	GetOrFetch(ctx context.Context, lat, lon float64, date days.Date, tilt float64) (types.IrradianceData, error)
}

type CredentialSealer interface {
	Seal(c inverter.Credentials) (types.EncryptedCredentials, error)
}

type ConnectionTester interface {
	TestConnection(ctx context.Context, c inverter.Credentials) types.ConnectionResult
}

type Services struct {
	Store      Store
	Pipeline   ReadingPipeline
	Irradiance IrradianceSource
	Vault      CredentialSealer
	Inverters  ConnectionTester
	Syncer     task.SyncRunner
	// Receives reading events, the websocket hub is always added.
	Publisher notify.Publisher
}

type Server struct {
	logger  *slog.Logger
	config  config.AppConfigApi
	hub     *Hub
	handler http.Handler
}

func NewServer(services Services, cnfg config.AppConfigApi, schedulerSecret string) *Server {
	logger := slog.Default().With("module", "www")

	s := &Server{
		logger: logger,
		config: cnfg,
		hub:    NewHub(logger.With(slog.String("handler", "ws"))),
	}

	publisher := notify.Multi{s.hub, services.Publisher}

	logReqMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("url", r.URL.Path),
				slog.String("remoteAddr", r.RemoteAddr))
			next.ServeHTTP(w, r)
		})
	}

	handlerLogger := func(name string) *slog.Logger {
		return logger.With(slog.String("handler", name))
	}

	mux := http.NewServeMux()

	mux.Handle("POST /api/plants", NewCreatePlantHandler(handlerLogger("plant"), services.Store))
	mux.Handle("GET /api/plants/{id}", NewGetPlantHandler(handlerLogger("plant"), services.Store))

	mux.Handle("POST /api/plants/{id}/readings", NewCreateReadingHandler(handlerLogger("reading"), services.Store, services.Pipeline, publisher))
	mux.Handle("GET /api/plants/{id}/readings", NewListReadingsHandler(handlerLogger("reading"), services.Store))
	mux.Handle("DELETE /api/plants/{id}/readings/{date}", NewDeleteReadingHandler(handlerLogger("reading"), services.Pipeline))

	mux.Handle("GET /api/irradiance", NewIrradianceHandler(handlerLogger("irradiance"), services.Irradiance))

	mux.Handle("POST /api/integrations/test", NewTestIntegrationHandler(handlerLogger("integration"), services.Inverters))
	mux.Handle("POST /api/plants/{id}/integration", NewSaveIntegrationHandler(handlerLogger("integration"), services.Store, services.Vault, services.Inverters))
	mux.Handle("GET /api/plants/{id}/integration", NewGetIntegrationHandler(handlerLogger("integration"), services.Store))
	mux.Handle("DELETE /api/plants/{id}/integration", NewDeleteIntegrationHandler(handlerLogger("integration"), services.Store))

	mux.Handle("POST /api/cron/sync", NewCronSyncHandler(handlerLogger("cron"), services.Syncer, schedulerSecret))

	mux.Handle("GET /api/log", NewLogHandler(handlerLogger("log"), services.Store))

	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		name := r.Header.Get("User-Agent")
		client, err := NewClient(s.hub, w, r, name)
		if err != nil {
			s.logger.Error("new websocket client failed", slog.Any("error", err))
			return
		}
		if !s.hub.Add(client) {
			client.conn.Close()
			return
		}
		go client.WritePump()
		go client.ReadPump()
	})

	s.handler = logReqMW(mux)
	return s
}

// Hub is also a notify.Publisher, the sync task publishes through it.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Run(ctx context.Context) {
	s.logger.Info("starting server...", "port", s.config.Port)
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Address, s.config.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.hub.Run(ctx)

	srvErrors := make(chan error, 1)
	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-srvErrors:
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", slog.Any("error", err))
		}

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown failed", slog.Any("error", err))
		}
	}
}
