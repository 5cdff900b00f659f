package main

import (
	"context"
	"fmt"
	"log"

	"go-adrules/internal/api"
	"go-adrules/internal/config"
	"go-adrules/internal/database"
	"go-adrules/internal/features/account"
	"go-adrules/internal/features/metric"
	"go-adrules/internal/features/report"
	"go-adrules/internal/features/rule"
	"go-adrules/internal/features/settings"
	"go-adrules/internal/features/system"
	"go-adrules/internal/logger"
	"go-adrules/internal/metaapi"
	"go-adrules/internal/middleware"
	"go-adrules/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute tags a constructor so Fx adds its result to the "routes" group
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes takes the "routes" group and calls Setup on each one
func RegisterAllRoutes(app *fiber.App, routes []api.Route) {
	for _, route := range routes {
		route.Setup(app)
	}
}

var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer starts Fiber in a goroutine and shuts it down on app exit
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			utils.SetSecret(cfg.JWTSecret)

			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// StartScheduler ties the rule scheduler to the application lifecycle
func StartScheduler(lc fx.Lifecycle, scheduler *rule.Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			scheduler.Stop()
			return nil
		},
	})
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			logger.NewLogger,
			NewFiberServer,
			database.NewDatabase,

			// Graph API collaborator
			metaapi.NewClient,

			// Repositories
			settings.NewSettingsRepository,
			metric.NewCustomMetricRepository,
			rule.NewRuleRepository,
			rule.NewRunLogRepository,
			account.NewAccountRepository,

			// Rule engine
			rule.NewInFlightSet,
			system.NewHub,
			func(h *system.Hub) rule.RunEventPublisher { return h },
			rule.NewExecutor,
			rule.NewScheduler,

			// Services
			metric.NewCatalogService,
			func(s metric.CatalogService) metric.CatalogProvider { return s },
			rule.NewRuleService,
			account.NewAccountService,
			report.NewReportService,

			// Controllers
			metric.NewMetricController,
			rule.NewRuleController,
			account.NewAccountController,
			report.NewReportController,
			system.NewSystemController,

			// Routes
			AsRoute(metric.NewMetricApi),
			AsRoute(rule.NewRuleApi),
			AsRoute(account.NewAccountApi),
			AsRoute(report.NewReportApi),
			AsRoute(system.NewSystemApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			RegisterAllRoutesWithAnnotation,
			StartServer,
			StartScheduler,
		),
	)

	app.Run()
}
