package main

import (
	"context"
	"fmt"
	"time"

	"github.com/derbyfab/derby-tickets/internal/audit"
	"github.com/derbyfab/derby-tickets/internal/config"
	"github.com/derbyfab/derby-tickets/internal/security"
	"github.com/derbyfab/derby-tickets/internal/users"
	"github.com/derbyfab/derby-tickets/model"
	"github.com/derbyfab/derby-tickets/params"
	"github.com/urfave/cli/v2"
)

// adminEnv carries the wired services the admin subcommands operate on.
type adminEnv struct {
	cfg         *config.Config
	auditMgr    *audit.Manager
	securityMgr *security.Manager
	userService *users.UserService
}

func initAdminEnv(ctx *cli.Context) (*adminEnv, error) {
	cfg, err := config.LoadConfig(ctx.String(configFileFlag.Name))
	if err != nil {
		return nil, fmt.Errorf("could not load config file: %w", err)
	}
	mustInitLogger(cfg.Debug || ctx.IsSet(debugFlag.Name))

	db := mustInitDatabase(cfg.MySQL)
	counterStorage, _, _ := mustInitCounterStorage(cfg.Redis)

	auditMgr := audit.NewManager(db)
	securityMgr := security.NewManager(counterStorage, security.Config{
		AllowedEmailDomains: cfg.Security.AllowedEmailDomains,
		MaxAttempts:         cfg.Security.MaxLoginAttempts,
		LockoutTime:         cfg.Security.LoginLockoutTime,
		SuspiciousThreshold: cfg.Security.SuspiciousActivityThreshold,
	}, auditMgr)
	return &adminEnv{
		cfg:         cfg,
		auditMgr:    auditMgr,
		securityMgr: securityMgr,
		userService: users.NewUserService(users.NewUserRepository(db)),
	}, nil
}

// unlockIdentifier clears the failure history for one identifier and
// leaves an UNLOCK entry in the audit trail.
func (env *adminEnv) unlockIdentifier(ctx context.Context, identifier string) error {
	env.securityMgr.ClearAttempts(ctx, identifier, params.AttemptTypeLogin)
	return env.auditMgr.LogAction(ctx, &model.AuditLog{
		Action:      model.ActionUnlock,
		ObjectType:  "LockoutIdentifier",
		ObjectID:    identifier,
		Description: fmt.Sprintf("Manually cleared lockout and attempt counter for %q", identifier),
		RiskLevel:   model.RiskMedium,
	})
}

// lockedIdentifiers enumerates identifiers with recent failed attempts
// and returns those currently locked. Candidates come from the attempt
// log, so the counter store is never scanned.
func (env *adminEnv) lockedIdentifiers(ctx context.Context) ([]string, error) {
	since := time.Now().Add(-params.SecuritySummaryWindow)
	usernames, ips, err := env.auditMgr.LockoutCandidates(ctx, since)
	if err != nil {
		return nil, err
	}
	var locked []string
	for _, identifier := range append(usernames, ips...) {
		if env.securityMgr.IsLockedOut(ctx, identifier, params.AttemptTypeLogin) {
			locked = append(locked, identifier)
		}
	}
	return locked, nil
}

var securityCommand = &cli.Command{
	Name:  "security",
	Usage: "Inspect and manage lockout state",
	Subcommands: []*cli.Command{
		{
			Name:      "show-attempts",
			Usage:     "Print the failed attempt count and lockout state for an identifier",
			ArgsUsage: "<identifier>",
			Action: func(ctx *cli.Context) error {
				identifier := ctx.Args().First()
				if identifier == "" {
					return cli.Exit("identifier required", 1)
				}
				env, err := initAdminEnv(ctx)
				if err != nil {
					return err
				}
				count := env.securityMgr.GetAttemptCount(ctx.Context, identifier, params.AttemptTypeLogin)
				locked := env.securityMgr.IsLockedOut(ctx.Context, identifier, params.AttemptTypeLogin)
				fmt.Printf("%s: %d failed attempts, locked=%v\n", identifier, count, locked)
				since := time.Now().Add(-params.SecuritySummaryWindow)
				durable, err := env.auditMgr.RecentFailureCount(ctx.Context, identifier, since)
				if err != nil {
					return err
				}
				fmt.Printf("audit trail: %d failed attempts in the last %s\n", durable, params.SecuritySummaryWindow)
				return nil
			},
		},
		{
			Name:      "unlock",
			Usage:     "Clear the lockout and attempt counter for a username or IP",
			ArgsUsage: "<identifier>",
			Action: func(ctx *cli.Context) error {
				identifier := ctx.Args().First()
				if identifier == "" {
					return cli.Exit("identifier required", 1)
				}
				env, err := initAdminEnv(ctx)
				if err != nil {
					return err
				}
				if err := env.unlockIdentifier(ctx.Context, identifier); err != nil {
					return err
				}
				fmt.Printf("cleared %s\n", identifier)
				return nil
			},
		},
		{
			Name:  "unlock-all",
			Usage: "Clear every currently locked identifier",
			Action: func(ctx *cli.Context) error {
				env, err := initAdminEnv(ctx)
				if err != nil {
					return err
				}
				locked, err := env.lockedIdentifiers(ctx.Context)
				if err != nil {
					return err
				}
				for _, identifier := range locked {
					if err := env.unlockIdentifier(ctx.Context, identifier); err != nil {
						return err
					}
					fmt.Printf("cleared %s\n", identifier)
				}
				fmt.Printf("%d identifiers cleared\n", len(locked))
				return nil
			},
		},
		{
			Name:  "list-locked",
			Usage: "List identifiers currently locked out",
			Action: func(ctx *cli.Context) error {
				env, err := initAdminEnv(ctx)
				if err != nil {
					return err
				}
				locked, err := env.lockedIdentifiers(ctx.Context)
				if err != nil {
					return err
				}
				for _, identifier := range locked {
					fmt.Println(identifier)
				}
				return nil
			},
		},
		{
			Name:  "summary",
			Usage: "Print the security summary for the last 24 hours",
			Action: func(ctx *cli.Context) error {
				env, err := initAdminEnv(ctx)
				if err != nil {
					return err
				}
				summary, err := env.auditMgr.SecuritySummary(ctx.Context, params.SecuritySummaryWindow)
				if err != nil {
					return err
				}
				fmt.Printf("window: %s - %s\n", summary.WindowStart.Format(time.RFC3339), summary.WindowEnd.Format(time.RFC3339))
				fmt.Printf("events by type: %v\n", summary.EventsByType)
				fmt.Printf("events by severity: %v\n", summary.EventsBySeverity)
				fmt.Printf("attempts by status: %v\n", summary.AttemptsByStatus)
				fmt.Printf("suspicious attempts: %d\n", summary.SuspiciousAttempts)
				fmt.Printf("unique failure sources: %d IPs, %d usernames\n", summary.UniqueFailureIPs, summary.UniqueFailureUsers)
				fmt.Printf("active sessions: %d (%d long-running)\n", summary.ActiveSessions, summary.LongRunningSessions)
				fmt.Printf("unresolved critical events: %d\n", summary.UnresolvedCritical)
				return nil
			},
		},
		{
			Name:  "cleanup-sessions",
			Usage: "Force-close sessions idle past the maximum age",
			Action: func(ctx *cli.Context) error {
				env, err := initAdminEnv(ctx)
				if err != nil {
					return err
				}
				closed, err := env.auditMgr.CleanupInactiveSessions(ctx.Context, env.cfg.Session.MaxIdleTime)
				if err != nil {
					return err
				}
				fmt.Printf("%d sessions closed\n", closed)
				return nil
			},
		},
	},
}

var userCommand = &cli.Command{
	Name:  "user",
	Usage: "Manage helpdesk accounts",
	Subcommands: []*cli.Command{
		{
			Name:  "create",
			Usage: "Create a helpdesk account",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "username", Required: true},
				&cli.StringFlag{Name: "fullname", Required: true},
				&cli.StringFlag{Name: "email", Required: true},
				&cli.StringFlag{Name: "password", Required: true},
				&cli.BoolFlag{Name: "staff"},
			},
			Action: func(ctx *cli.Context) error {
				env, err := initAdminEnv(ctx)
				if err != nil {
					return err
				}
				user, err := env.userService.CreateUser(ctx.Context, users.CreateUserOptions{
					Username: ctx.String("username"),
					FullName: ctx.String("fullname"),
					Email:    ctx.String("email"),
					Password: ctx.String("password"),
					IsStaff:  ctx.Bool("staff"),
				})
				if err != nil {
					return err
				}
				if err := env.auditMgr.RecordEvent(ctx.Context, &model.SecurityEvent{
					EventType:   model.EventTypeAccountCreated,
					Severity:    model.SeverityLow,
					UserID:      &user.ID,
					IPAddress:   "127.0.0.1",
					Description: fmt.Sprintf("Account %s created via CLI", user.Username),
					Success:     true,
				}); err != nil {
					return err
				}
				fmt.Printf("created user %s (id %d)\n", user.Username, user.ID)
				return nil
			},
		},
		{
			Name:      "disable",
			Usage:     "Disable a helpdesk account",
			ArgsUsage: "<username>",
			Action: func(ctx *cli.Context) error {
				username := ctx.Args().First()
				if username == "" {
					return cli.Exit("username required", 1)
				}
				env, err := initAdminEnv(ctx)
				if err != nil {
					return err
				}
				user, err := env.userService.GetUserByUsernameOrEmail(ctx.Context, username)
				if err != nil {
					return err
				}
				if err := env.userService.SetActive(ctx.Context, user.ID, false); err != nil {
					return err
				}
				if err := env.auditMgr.RecordEvent(ctx.Context, &model.SecurityEvent{
					EventType:   model.EventTypeAccountDisabled,
					Severity:    model.SeverityMedium,
					UserID:      &user.ID,
					IPAddress:   "127.0.0.1",
					Description: fmt.Sprintf("Account %s disabled via CLI", user.Username),
				}); err != nil {
					return err
				}
				fmt.Printf("disabled user %s\n", user.Username)
				return nil
			},
		},
	},
}
