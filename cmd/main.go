package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/HibiKier/wuthering-waves/internal/config"
	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/kuro"
	"github.com/HibiKier/wuthering-waves/internal/metrics"
	"github.com/HibiKier/wuthering-waves/internal/repository/sqlstore"
	"github.com/HibiKier/wuthering-waves/internal/service"
	"github.com/HibiKier/wuthering-waves/internal/telemetry"
	"github.com/HibiKier/wuthering-waves/pkg/cache"
	"github.com/HibiKier/wuthering-waves/pkg/captcha"
	"github.com/HibiKier/wuthering-waves/pkg/notify"
)

const usage = `usage: waves [command]

commands:
  serve                                 run the scheduled refresh (default)
  bind -user ID -token TOKEN [-device]  bind a companion session token
  refresh -user ID [-player ID] [-ids]  refresh one player's characters once
  info -user ID -player ID [-tower]     show a player's profile or tower progress
  account -user ID -player ID           renew the login and calculator data of a bound account
  catalog                               list released characters and weapons`

type app struct {
	refresh *service.RefreshService
	login   *service.LoginService
	account *service.AccountService
	catalog *service.CatalogService
	cfg     *config.Config
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	setupLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		Enabled:     cfg.Telemetry.Enabled,
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to flush traces")
		}
	}()

	db, err := sqlstore.Open(ctx, sqlstore.Options{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectRetries:  cfg.Database.ConnectRetries,
		RetryInterval:   cfg.Database.RetryInterval,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}
	defer closeDB(db)
	log.Info().Str("driver", cfg.Database.Driver).Msg("database connection established")

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = initRedis(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize redis")
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis connection")
			}
		}()
		log.Info().Str("addr", cfg.Redis.Addr()).Msg("redis connection established")
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, registry); err != nil {
				log.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	a, err := build(cfg, db, redisClient, m)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build services")
	}

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		err = a.serve(ctx)
	case "bind":
		err = a.bind(ctx, args)
	case "refresh":
		err = a.refreshOnce(ctx, args)
	case "info":
		err = a.info(ctx, args)
	case "account":
		err = a.refreshAccount(ctx, args)
	case "catalog":
		err = a.listCatalog(ctx)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Error().Err(err).Str("command", command).Msg("command failed")
		stop()
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// build wires the repositories, caches and companion client into the
// services. Caches are shared through redis when it is enabled.
func build(cfg *config.Config, db *sqlx.DB, redisClient *redis.Client, m *metrics.Metrics) (*app, error) {
	sessions := sqlstore.NewSessionRepository(db)
	characters := sqlstore.NewCharacterRepository(db)

	var tokenStore, guardStore cache.Store
	if redisClient != nil {
		tokenStore = cache.NewRedisStore(redisClient, "access_token")
		guardStore = cache.NewRedisStore(redisClient, "refresh_guard")
	} else {
		tokenStore = cache.NewMemoryStore(cfg.Credential.CacheMaxSize)
		// Unbounded: evicting a live cooldown would let its player refresh early.
		guardStore = cache.NewMemoryStore(0)
	}

	notifier, err := buildNotifier(cfg.Notify)
	if err != nil {
		return nil, err
	}

	var solver captcha.Solver
	if cfg.Captcha.Provider != "" {
		solver, err = captcha.DefaultRegistry().New(cfg.Captcha.Provider, captcha.Config{
			AppKey:   cfg.Captcha.AppKey,
			Endpoint: cfg.Captcha.Endpoint,
			Timeout:  cfg.Kuro.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build captcha solver: %w", err)
		}
		log.Info().Str("provider", solver.Name()).Msg("captcha solver enabled")
	}

	client := kuro.New(kuro.Options{
		BaseURL:         cfg.Kuro.BaseURL,
		Timeout:         cfg.Kuro.Timeout,
		Platform:        cfg.Kuro.Platform,
		MaxAttempts:     cfg.Kuro.MaxAttempts,
		Solver:          solver,
		CaptchaAttempts: cfg.Captcha.MaxAttempts,
		Notifier:        notifier,
		OnExpired:       service.ExpireSessionHook(sessions, tokenStore),
		Metrics:         m,
	})

	policy, err := service.ParseWritePolicy(cfg.Refresh.WritePolicy)
	if err != nil {
		return nil, err
	}

	tokens := service.NewAccessTokenService(client, sessions, tokenStore, cfg.Credential.AccessTokenTTL, m)
	credentials := service.NewCredentialService(sessions, client, cfg.Credential.PoolSize, m)
	fetcher := service.NewFetchService(client, tokens, cfg.Fetch.Concurrency, m)
	reconciler := service.NewReconcileService(characters, policy, m)

	return &app{
		refresh: service.NewRefreshService(sessions, credentials, fetcher, reconciler, guardStore, service.RefreshOptions{
			Cooldown:     cfg.Refresh.Cooldown,
			SingleFlight: cfg.Refresh.SingleFlight,
		}, m),
		login: service.NewLoginService(client, sessions, tokens, service.LoginOptions{
			Timeout:    cfg.Login.Timeout,
			MaxPending: cfg.Login.MaxPending,
		}),
		account: service.NewAccountService(sessions, credentials, tokens, client),
		catalog: service.NewCatalogService(sessions, client),
		cfg:     cfg,
	}, nil
}

func buildNotifier(cfg config.NotifyConfig) (notify.Notifier, error) {
	notifiers := notify.Multi{notify.LogNotifier{}}
	ncfg := &notify.Config{
		WebhookURL: cfg.WebhookURL,
		Timeout:    cfg.Timeout,
		APIKey:     cfg.ResendAPIKey,
		FromEmail:  cfg.FromEmail,
		FromName:   cfg.FromName,
		To:         cfg.To,
	}

	if cfg.WebhookURL != "" {
		webhook, err := notify.NewWebhookNotifier(ncfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build webhook notifier: %w", err)
		}
		notifiers = append(notifiers, webhook)
	}
	if cfg.ResendAPIKey != "" {
		mail, err := notify.NewResendNotifier(ncfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build email notifier: %w", err)
		}
		notifiers = append(notifiers, mail)
	}
	return notifiers, nil
}

func (a *app) serve(ctx context.Context) error {
	if a.cfg.Refresh.Interval <= 0 {
		log.Info().Msg("scheduled refresh disabled (set REFRESH_INTERVAL to enable)")
	} else {
		log.Info().Dur("interval", a.cfg.Refresh.Interval).Msg("scheduled refresh started")
		go a.refresh.Schedule(ctx, a.cfg.Refresh.Interval)
	}
	if a.cfg.Refresh.KeepAliveInterval > 0 {
		log.Info().Dur("interval", a.cfg.Refresh.KeepAliveInterval).Msg("scheduled keep alive started")
		go a.account.ScheduleKeepAlive(ctx, a.cfg.Refresh.KeepAliveInterval)
	}

	<-ctx.Done()
	log.Info().Msg("shutting down")
	return nil
}

func (a *app) bind(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("bind", flag.ContinueOnError)
	user := fs.String("user", "", "chat user id owning the session")
	token := fs.String("token", "", "companion session token")
	device := fs.String("device", "", "device id the token was issued to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" || *token == "" {
		return errors.New("bind needs -user and -token")
	}

	record, err := a.login.Bind(ctx, *user, *token, *device)
	if err != nil {
		return err
	}
	log.Info().Str("player_id", record.PlayerID).Str("server_id", record.ServerID).Msg("bound")
	return nil
}

func (a *app) refreshOnce(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("refresh", flag.ContinueOnError)
	user := fs.String("user", "", "chat user id requesting the refresh")
	player := fs.String("player", "", "player id, defaults to the user's first bound account")
	ids := fs.String("ids", "", "comma separated character ids, defaults to all")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return errors.New("refresh needs -user")
	}

	selector, err := parseSelector(*ids)
	if err != nil {
		return err
	}

	result, err := a.refresh.Refresh(ctx, *user, *player, selector)
	if err != nil {
		return err
	}
	log.Info().
		Ints("changed", result.ChangedIDs).
		Ints("unchanged", result.UnchangedIDs).
		Msg("refresh finished")
	return nil
}

func (a *app) info(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	user := fs.String("user", "", "chat user id asking")
	player := fs.String("player", "", "player id to read")
	tower := fs.Bool("tower", false, "show tower progress instead of the profile")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" || *player == "" {
		return errors.New("info needs -user and -player")
	}

	if *tower {
		data, err := a.account.Tower(ctx, *user, *player)
		if err != nil {
			return err
		}
		for _, d := range data.Difficulties {
			for _, area := range d.Areas {
				log.Info().Str("difficulty", d.Name).Str("area", area.Name).Int("star", area.Star).Int("max_star", area.MaxStar).Msg("tower")
			}
		}
		return nil
	}

	info, err := a.account.BaseInfo(ctx, *user, *player)
	if err != nil {
		return err
	}
	log.Info().
		Str("player_id", info.PlayerID).
		Str("name", info.Name).
		Int("level", info.Level).
		Int("active_days", info.ActiveDays).
		Int("characters", info.CharacterCount).
		Msg("profile")
	return nil
}

func (a *app) refreshAccount(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("account", flag.ContinueOnError)
	user := fs.String("user", "", "chat user id owning the account")
	player := fs.String("player", "", "bound player id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" || *player == "" {
		return errors.New("account needs -user and -player")
	}

	if err := a.account.RefreshLogin(ctx, *user, *player); err != nil {
		return err
	}
	if err := a.account.RefreshCalculator(ctx, *user, *player); err != nil {
		return err
	}
	log.Info().Str("player_id", *player).Msg("account refreshed")
	return nil
}

func (a *app) listCatalog(ctx context.Context) error {
	characters, err := a.catalog.Characters(ctx)
	if err != nil {
		return err
	}
	weapons, err := a.catalog.Weapons(ctx)
	if err != nil {
		return err
	}
	for _, c := range characters {
		log.Info().Int("id", c.CharacterID).Str("name", c.Name).Int("star", c.StarLevel).Bool("preview", c.Preview).Msg("character")
	}
	log.Info().Int("characters", len(characters)).Int("weapons", len(weapons)).Msg("catalog")
	return nil
}

func parseSelector(raw string) (domain.CharacterSelector, error) {
	if strings.TrimSpace(raw) == "" {
		return domain.SelectAll(), nil
	}

	var ids []int
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return domain.CharacterSelector{}, fmt.Errorf("invalid character id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return domain.SelectIDs(ids...), nil
}

func closeDB(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("error closing database connection")
	}
}

// initRedis initializes the redis client and verifies the connection
func initRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			log.Error().Err(closeErr).Msg("error closing redis after ping failure")
		}
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
