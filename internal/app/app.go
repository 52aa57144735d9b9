package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"

	"github.com/lcalzada-xor/aegis/internal/adapters/broker"
	"github.com/lcalzada-xor/aegis/internal/adapters/frame"
	"github.com/lcalzada-xor/aegis/internal/adapters/llm"
	"github.com/lcalzada-xor/aegis/internal/adapters/reporting"
	"github.com/lcalzada-xor/aegis/internal/adapters/web/handlers"
	"github.com/lcalzada-xor/aegis/internal/adapters/web/middleware"
	webserver "github.com/lcalzada-xor/aegis/internal/adapters/web/server"
	"github.com/lcalzada-xor/aegis/internal/adapters/web/websocket"
	"github.com/lcalzada-xor/aegis/internal/config"
	"github.com/lcalzada-xor/aegis/internal/core/services/analysis"
	grpcserver "github.com/lcalzada-xor/aegis/internal/core/services/grpc"
	"github.com/lcalzada-xor/aegis/internal/core/services/schedule"
	"github.com/lcalzada-xor/aegis/internal/core/services/session"
	"github.com/lcalzada-xor/aegis/internal/core/services/simulator"
	"github.com/lcalzada-xor/aegis/internal/core/services/views"
	"github.com/lcalzada-xor/aegis/internal/telemetry"
)

// forwarderQueue is the broker hand-off backlog in events.
const forwarderQueue = 256

// Application holds the core components of the application.
// It acts as the Facade for the entire system, orchestrating services and infrastructure.
type Application struct {
	Config     *config.Config
	State      *session.State
	Simulator  *simulator.Simulator
	Workbench  *analysis.Workbench
	Hub        *websocket.Hub
	WebServer  *webserver.Server
	Telemetry  *grpcserver.GrpcServer
	GrpcServer *grpc.Server
	// Forwarder is nil when no broker is configured.
	Forwarder *broker.Forwarder
}

// New creates a new Application instance and bootstraps its components.
func New(cfg *config.Config) (*Application, error) {
	app := &Application{
		Config: cfg,
	}

	if err := app.bootstrap(); err != nil {
		return nil, fmt.Errorf("application bootstrap failed: %w", err)
	}

	return app, nil
}

// bootstrap orchestrates the initialization sequence.
func (app *Application) bootstrap() error {
	// 1. Foundation
	telemetry.InitMetrics()
	app.State = session.NewState(app.Config.Simulator.EventCapacity, app.Config.Simulator.PointCapacity)

	// 2. Forensic analyzer
	if app.Config.AI.APIKey == "" {
		slog.Warn("No API key configured; analysis requests will fail")
	}
	client := llm.NewForensicClient(llm.Config{
		APIKey:  app.Config.AI.APIKey,
		Model:   app.Config.AI.Model,
		BaseURL: app.Config.AI.BaseURL,
		Timeout: app.Config.AI.Timeout,
	})
	app.Workbench = analysis.NewWorkbench(client)
	app.State.OnViewChange(app.Workbench.ResetOnLeave())

	// 3. Fan-out
	app.Hub = websocket.NewHub(app.State)
	app.State.OnViewChange(app.Hub.OnViewChange)
	app.Telemetry = grpcserver.NewGrpcServer(app.State, app.Workbench)
	app.initBroker()

	// 4. Simulator
	sim, err := app.initSimulator()
	if err != nil {
		return err
	}
	app.Simulator = sim

	// 5. Servers
	app.initServers()
	return nil
}

func (app *Application) initBroker() {
	nc := app.Config.NATS
	if nc.URL == "" {
		return
	}
	pub, err := broker.NewNATSPublisher(nc.URL, nc.Subject)
	if err != nil {
		slog.Warn("Event broker unavailable; continuing without fan-out", "url", nc.URL, "error", err)
		return
	}
	app.Forwarder = broker.NewForwarder(pub, forwarderQueue)
	slog.Info("Publishing events to broker", "url", nc.URL, "subject", nc.Subject)
}

func (app *Application) initSimulator() (*simulator.Simulator, error) {
	sc := app.Config.Simulator
	cfg := simulator.Config{
		TickInterval:        sc.TickInterval,
		Sources:             simulator.ExtendSources(sc.Sources, sc.RandomSources, uint64(sc.Seed)),
		Sink:                sc.Sink,
		ElevatedProbability: sc.ElevatedProbability,
		CriticalShare:       sc.CriticalShare,
		MediumShare:         sc.MediumShare,
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("simulator config: %w", err)
	}

	opts := []simulator.Option{
		simulator.WithObserver(telemetry.TickMetrics{}),
		simulator.WithObserver(app.Hub),
		simulator.WithObserver(app.Telemetry),
	}
	if app.Forwarder != nil {
		opts = append(opts, simulator.WithObserver(app.Forwarder))
	}
	return simulator.New(cfg, app.State, schedule.NewTicker(), simulator.NewRand(sc.Seed), opts...), nil
}

func (app *Application) initServers() {
	var limiter *middleware.RateLimiter
	if app.Config.AnalyzeRateLimit > 0 {
		limiter = middleware.NewRateLimiter(app.Config.AnalyzeRateLimit, time.Minute)
	}

	app.WebServer = webserver.NewServer(app.Config.Addr,
		handlers.NewDashboardHandler(app.State, views.NewPresenter(app.State, app.Workbench), frame.NewEncoder()),
		handlers.NewAnalysisHandler(app.Workbench, reporting.NewPDFExporter()),
		app.Hub,
		limiter,
	)

	if app.Config.GRPCAddr != "" {
		app.GrpcServer = grpcserver.NewServer(app.Telemetry)
	}
}

// Run starts the application components and manages their execution lifecycle.
func (app *Application) Run(ctx context.Context) error {
	slog.Info("Starting Aegis components...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// 1. Telemetry
	app.Simulator.Seed()
	app.Simulator.Start(ctx)
	if app.Forwarder != nil {
		go app.Forwarder.Run(ctx)
	}

	// 2. Servers
	errChan := make(chan error, 2)

	go func() {
		if err := app.WebServer.Run(ctx); err != nil {
			errChan <- fmt.Errorf("web server error: %w", err)
		}
	}()

	if app.GrpcServer != nil {
		lis, err := net.Listen("tcp", app.Config.GRPCAddr)
		if err != nil {
			app.Simulator.Stop()
			return fmt.Errorf("grpc listen error: %w", err)
		}
		slog.Info("gRPC server listening", "addr", lis.Addr().String())

		go func() {
			<-ctx.Done()
			app.stopGrpc(5 * time.Second)
		}()

		go func() {
			if err := app.GrpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errChan <- fmt.Errorf("grpc server error: %w", err)
			}
		}()
	}

	slog.Info("Aegis ready. Press Ctrl+C to terminate.")

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Termination signal received")
	case runErr = <-errChan:
	}

	app.Simulator.Stop()
	return runErr
}

// stopGrpc drains in-flight calls and force-closes whatever is left after
// timeout. Event streams only end when their clients go away.
func (app *Application) stopGrpc(timeout time.Duration) {
	stopped := make(chan struct{})
	go func() {
		app.GrpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(timeout):
		slog.Warn("gRPC graceful stop timed out; closing remaining streams")
		app.GrpcServer.Stop()
	}
}
