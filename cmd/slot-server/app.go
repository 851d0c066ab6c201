package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinic/slotengine/internal/config"
	"github.com/clinic/slotengine/internal/domain/appointment"
	"github.com/clinic/slotengine/internal/domain/calendar"
	"github.com/clinic/slotengine/internal/domain/generation"
	"github.com/clinic/slotengine/internal/domain/leave"
	"github.com/clinic/slotengine/internal/domain/preference"
	"github.com/clinic/slotengine/internal/domain/slot"
	"github.com/clinic/slotengine/internal/platform/auth"
	"github.com/clinic/slotengine/internal/platform/clock"
	"github.com/clinic/slotengine/internal/platform/db"
	"github.com/clinic/slotengine/internal/platform/middleware"
	"github.com/clinic/slotengine/internal/platform/scheduler"
)

const tickJob = "generation-tick"

type stores struct {
	slots    slot.Repository
	holidays calendar.HolidayRepository
	leaves   leave.Repository
	prefs    preference.Repository
	appts    appointment.Repository
	runner   db.Runner
}

func pgStores(pool *pgxpool.Pool) stores {
	return stores{
		slots:    slot.NewRepoPG(pool),
		holidays: calendar.NewHolidayRepoPG(pool),
		leaves:   leave.NewRepoPG(pool),
		prefs:    preference.NewRepoPG(pool),
		appts:    appointment.NewRepoPG(pool),
		runner:   db.NewTxRunner(pool),
	}
}

func memoryStores() stores {
	return stores{
		slots:    slot.NewMemoryRepo(),
		holidays: calendar.NewMemoryHolidayRepo(),
		leaves:   leave.NewMemoryRepo(),
		prefs:    preference.NewMemoryRepo(),
		appts:    appointment.NewMemoryRepo(),
		runner:   db.NewLocalRunner(),
	}
}

type routeRegistrar interface {
	RegisterRoutes(api *echo.Group)
}

// app is the wired service graph shared by serve and the operational
// subcommands.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	clock  clock.Clock
	loc    *time.Location
	pinger db.Pinger
	pool   *pgxpool.Pool

	holidays   *calendar.HolidayService
	generation *generation.Service
	handlers   []routeRegistrar
}

func newApp(cfg *config.Config, log zerolog.Logger, c clock.Clock, st stores) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	rest, err := cfg.RestDay()
	if err != nil {
		return nil, err
	}
	templates, err := cfg.Templates()
	if err != nil {
		return nil, err
	}

	rules := calendar.NewRules(st.holidays, st.leaves, c, loc, rest)
	holidaySvc := calendar.NewHolidayService(st.holidays, rest)
	slotSvc := slot.NewService(st.slots, st.runner, c, loc)
	leaveSvc := leave.NewService(st.leaves, st.runner, c, loc)
	prefSvc := preference.NewService(st.prefs, st.runner, c, loc, preference.Defaults{
		DaysAhead: cfg.DefaultDaysAhead,
		Templates: templates,
	})
	engine := generation.NewEngine(st.slots, st.prefs, rules, st.runner)
	genSvc := generation.NewService(engine, prefSvc, st.prefs, st.runner, c, loc, generation.Config{
		Horizon:     cfg.MaxGenerationDays,
		Concurrency: cfg.SchedulerConcurrency,
	}, log.With().Str("component", "generation").Logger())
	apptSvc := appointment.NewService(st.appts, st.slots, st.runner, c, loc)

	return &app{
		cfg:        cfg,
		log:        log,
		clock:      c,
		loc:        loc,
		pinger:     noopPinger{},
		holidays:   holidaySvc,
		generation: genSvc,
		handlers: []routeRegistrar{
			slot.NewHandler(slotSvc),
			calendar.NewHandler(holidaySvc),
			leave.NewHandler(leaveSvc),
			generation.NewHandler(genSvc, prefSvc, c),
			appointment.NewHandler(apptSvc),
		},
	}, nil
}

type noopPinger struct{}

func (noopPinger) Ping(context.Context) error { return nil }

func (a *app) withPool(pool *pgxpool.Pool) *app {
	a.pool = pool
	a.pinger = pool
	return a
}

func (a *app) poolStats() *db.PoolStats {
	if a.pool == nil {
		return nil
	}
	return db.GetPoolStats(a.pool)
}

// echo builds the HTTP server with every handler mounted under /api/v1.
func (a *app) echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(a.log))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.log))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", "X-Dev-User", "X-Dev-Role"},
	}))

	if a.cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     a.cfg.AuthIssuer,
			Audience:   a.cfg.AuthAudience,
			JWKSURL:    a.cfg.AuthJWKSURL,
			SigningKey: []byte(a.cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: a.cfg.RateLimitRPS,
		BurstSize:         a.cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	var stats func() *db.PoolStats
	if a.pool != nil {
		stats = a.poolStats
	}
	e.GET("/health/db", db.HealthHandler(a.pinger, stats))

	api := e.Group("/api/v1", middleware.RequestTimeout(30*time.Second, "/api/v1/admin/"))
	for _, h := range a.handlers {
		h.RegisterRoutes(api)
	}
	return e
}

// scheduler registers the daily catch-up tick.
func (a *app) scheduler() (*scheduler.Scheduler, error) {
	s := scheduler.New(a.loc, a.log)
	err := s.Add(tickJob, a.cfg.SchedulerCron, func(ctx context.Context) error {
		_, err := a.generation.Tick(ctx, a.clock.Now())
		if errors.Is(err, generation.ErrTickInProgress) {
			a.log.Warn().Msg("previous generation tick still running, skipped")
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
