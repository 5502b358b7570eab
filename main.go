package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/derbyfab/derby-tickets/internal/audit"
	"github.com/derbyfab/derby-tickets/internal/auth"
	"github.com/derbyfab/derby-tickets/internal/common"
	"github.com/derbyfab/derby-tickets/internal/config"
	"github.com/derbyfab/derby-tickets/internal/handlers/api"
	"github.com/derbyfab/derby-tickets/internal/mail"
	"github.com/derbyfab/derby-tickets/internal/middlewares"
	"github.com/derbyfab/derby-tickets/internal/related"
	"github.com/derbyfab/derby-tickets/internal/security"
	"github.com/derbyfab/derby-tickets/internal/store"
	"github.com/derbyfab/derby-tickets/internal/tickets"
	"github.com/derbyfab/derby-tickets/internal/users"
	"github.com/derbyfab/derby-tickets/model"
	"github.com/derbyfab/derby-tickets/params"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/storage/memory/v2"
	"github.com/gofiber/storage/redis/v3"
	goredis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/plugin/dbresolver"
)

var (
	app       *cli.App
	gitCommit string
	gitDate   string
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML config file",
		Value: "config.yaml",
	}
	debugFlag = &cli.BoolFlag{
		Name:  "debug",
		Usage: "Enable debug logging",
	}
)

func init() {
	app = cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = "derby-tickets - helpdesk security core and ticket service"
	app.Flags = []cli.Flag{
		configFileFlag,
		debugFlag,
	}
	app.Commands = []*cli.Command{
		{
			Name: "version",
			Action: func(ctx *cli.Context) error {
				fmt.Println(params.VersionWithCommit(gitCommit, gitDate))
				return nil
			},
		},
		securityCommand,
		userCommand,
	}
	app.Action = run
}

func mustInitLogger(debug bool) {
	logLevel := slog.LevelInfo
	if debug {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(handler))
}

func mustInitDatabase(dbConfig config.MySQLConfig) *gorm.DB {
	db, err := gorm.Open(mysql.Open(dbConfig.Dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{
			TablePrefix: dbConfig.TablePrefix,
		},
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if len(dbConfig.ReplicaDsns) > 0 {
		replicas := make([]gorm.Dialector, 0, len(dbConfig.ReplicaDsns))
		for _, dsn := range dbConfig.ReplicaDsns {
			replicas = append(replicas, mysql.Open(dsn))
		}
		if err := db.Use(dbresolver.Register(dbresolver.Config{Replicas: replicas})); err != nil {
			slog.Error("Failed to register read replicas", "error", err)
			os.Exit(1)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Failed to access database pool", "error", err)
		os.Exit(1)
	}
	if dbConfig.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(dbConfig.MaxIdleConns)
	}
	if dbConfig.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(dbConfig.MaxOpenConns)
	}
	if dbConfig.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(dbConfig.ConnMaxIdleTime) * time.Second)
	}
	if dbConfig.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Second)
	}

	if err := model.AutoMigrate(db); err != nil {
		slog.Error("Database migration failed", "error", err)
		os.Exit(1)
	}
	return db
}

// mustInitCounterStorage picks the lockout counter backend: redis when
// configured, otherwise a process-local in-memory store. Losing the
// store on restart resets lockouts, which is acceptable degradation.
func mustInitCounterStorage(redisCfg config.RedisConfig) (store.Storage, goredis.UniversalClient, fiber.Storage) {
	if redisCfg.URL == "" {
		slog.Warn("No redis configured, lockout counters are process-local")
		return store.NewMemoryStorage(), nil, memory.New()
	}
	redisStorage := redis.New(redis.Config{
		URL:           redisCfg.URL,
		PoolSize:      redisCfg.PoolSize,
		IsClusterMode: redisCfg.ClusterMode,
	})
	return store.NewRedisStorage(redisStorage.Conn()), redisStorage.Conn(), redisStorage
}

func mustInitMailSender(mailCfg config.MailConfig) mail.MailSender {
	switch mailCfg.Backend {
	case "", "log":
		return mail.LogMailSender{}
	case "smtp":
		sender, err := mail.NewSMTPMailSender(mail.SMTPConfig{
			Host:     mailCfg.SMTP.Host,
			Port:     mailCfg.SMTP.Port,
			Username: mailCfg.SMTP.Username,
			Password: mailCfg.SMTP.Password,
			TLS:      mailCfg.SMTP.TLS,
			CertFile: mailCfg.SMTP.CertFile,
			KeyFile:  mailCfg.SMTP.KeyFile,
			CAFile:   mailCfg.SMTP.CAFile,
		}, mailCfg.From)
		if err != nil {
			slog.Error("Failed to initialize SMTP sender", "error", err)
			os.Exit(1)
		}
		return sender
	default:
		slog.Error("Unsupported mail backend", "backend", mailCfg.Backend)
		os.Exit(1)
		return nil
	}
}

func mustInitTokenSecret(tokenCfg config.TokenConfig) string {
	if tokenCfg.Secret != "" {
		return tokenCfg.Secret
	}
	secret, err := common.GenerateSecret(48)
	if err != nil {
		slog.Error("Failed to generate token secret", "error", err)
		os.Exit(1)
	}
	slog.Warn("No token secret configured, using an ephemeral secret; tokens will not survive restarts")
	return secret
}

func setupAPIRoutes(
	router fiber.Router,
	authHandler *api.AuthHandler,
	securityHandler *api.SecurityHandler,
	ticketHandler *api.TicketHandler,
	tokenAuth fiber.Handler,
	loginLimiter fiber.Handler,
) {
	apiGroup := router.Group("/api")
	apiGroup.Post("/login", loginLimiter, authHandler.PostLogin)

	apiGroup.Use(tokenAuth)
	apiGroup.Post("/logout", authHandler.PostLogout)
	apiGroup.Get("/tickets/:id/related", ticketHandler.GetRelated)

	securityGroup := apiGroup.Group("/security", middlewares.RequireStaff())
	securityGroup.Get("/summary", securityHandler.GetSummary)
	securityGroup.Get("/events", securityHandler.GetEvents)
	securityGroup.Post("/events/:id/resolve", securityHandler.PostResolveEvent)
	securityGroup.Get("/sessions", securityHandler.GetSessions)
}

func run(ctx *cli.Context) error {
	cfg, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		slog.Error("Could not load config file.", "error", err)
		return err
	}
	mustInitLogger(cfg.Debug || ctx.IsSet(debugFlag.Name))

	db := mustInitDatabase(cfg.MySQL)
	counterStorage, redisConn, limiterStorage := mustInitCounterStorage(cfg.Redis)

	mail.SetDefaultFromAddress(cfg.Mail.From)
	mailQueue := mail.NewQueue(mustInitMailSender(cfg.Mail))
	mailQueue.Start()
	defer mailQueue.Stop()

	// services
	var (
		auditMgr    = audit.NewManager(db)
		recorder    = audit.NewNotifier(auditMgr, mailQueue, cfg.Mail.AlertAddr, cfg.Security.LoginLockoutTime)
		securityMgr = security.NewManager(counterStorage, security.Config{
			AllowedEmailDomains: cfg.Security.AllowedEmailDomains,
			MaxAttempts:         cfg.Security.MaxLoginAttempts,
			LockoutTime:         cfg.Security.LoginLockoutTime,
			SuspiciousThreshold: cfg.Security.SuspiciousActivityThreshold,
		}, recorder)
		userService  = users.NewUserService(users.NewUserRepository(db))
		loginService = auth.NewLoginService(securityMgr, auditMgr, userService)
		tokenService = auth.NewTokenService(mustInitTokenSecret(cfg.Token), cfg.Token.MaxAge)
		ticketRepo   = tickets.NewTicketRepository(db)
		finder       = related.NewFinder(ticketRepo)
	)

	// handlers
	var (
		authHandler     = api.NewAuthHandler(loginService, tokenService)
		securityHandler = api.NewSecurityHandler(auditMgr)
		ticketHandler   = api.NewTicketHandler(ticketRepo, finder)
	)

	router := fiber.New(fiber.Config{
		Prefork:       false,
		CaseSensitive: true,
		BodyLimit:     params.ServerBodyLimit,
		IdleTimeout:   params.ServerIdleTimeout,
		ReadTimeout:   params.ServerReadTimeout,
		WriteTimeout:  params.ServerWriteTimeout,
		ErrorHandler:  middlewares.ErrorHandler,
	})

	router.Use(recover.New())
	router.Use(logger.New())
	router.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.AllowOrigins, ", "),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	router.Use(middlewares.SecurityMonitor(securityMgr, auditMgr))

	loginLimiter := limiter.New(limiter.Config{
		Max:        params.RateLimitMaxRequests,
		Expiration: params.RateLimitWindow,
		Storage:    limiterStorage,
		KeyGenerator: func(ctx *fiber.Ctx) string {
			return common.ClientIP(ctx)
		},
	})
	tokenAuth := middlewares.TokenAuth(tokenService, loginService, userService)
	setupAPIRoutes(router, authHandler, securityHandler, ticketHandler, tokenAuth, loginLimiter)

	// periodic forced close of sessions idle past the maximum age
	cleanupCtx, stopCleanup := context.WithCancel(ctx.Context)
	defer stopCleanup()
	go runSessionCleanup(cleanupCtx, auditMgr, cfg.Session.MaxIdleTime)

	go startHealthCheckServer(params.HealthCheckServerAddr, redisConn, db)
	return router.Listen(cfg.ListenAddr)
}

func runSessionCleanup(ctx context.Context, auditMgr *audit.Manager, maxIdle time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := auditMgr.CleanupInactiveSessions(ctx, maxIdle); err != nil {
				slog.Error("Session cleanup failed", "error", err)
			}
		}
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
