// Server runs the registration HTTP API and the gRPC health service.
//
// Without DATABASE_URL and REDIS_ADDR it keeps everything in process memory, which is
// only allowed outside production (see config.Load).
package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	grpchealth "google.golang.org/grpc/health"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/account"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/audit"
	auditrepo "github.com/MatanSaban/GhostPostWebsite-sub000/internal/audit/repository"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/config"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/db"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/devotp"
	devotphandler "github.com/MatanSaban/GhostPostWebsite-sub000/internal/devotp/handler"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/health"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/interview"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/logging"
	membershiprepo "github.com/MatanSaban/GhostPostWebsite-sub000/internal/membership/repository"
	orgrepo "github.com/MatanSaban/GhostPostWebsite-sub000/internal/organization/repository"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/otp"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/otp/email"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/otp/sms"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/payment"
	plandomain "github.com/MatanSaban/GhostPostWebsite-sub000/internal/plan/domain"
	planrepo "github.com/MatanSaban/GhostPostWebsite-sub000/internal/plan/repository"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/policy/engine"
	reghandler "github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/handler"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/repository"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/service"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/security"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/server"
	subscriptionrepo "github.com/MatanSaban/GhostPostWebsite-sub000/internal/subscription/repository"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/telemetry"
	telemetryotel "github.com/MatanSaban/GhostPostWebsite-sub000/internal/telemetry/otel"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/telemetry/producer"
	userrepo "github.com/MatanSaban/GhostPostWebsite-sub000/internal/user/repository"
)

const (
	serviceName         = "onboarding"
	healthWatchInterval = 15 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logging.Setup(cfg.LogLevel, cfg.Env)
	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server")
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Options{
		Endpoint:       cfg.OTelEndpoint,
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    cfg.Env,
		Insecure:       cfg.OTelInsecure,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	if err != nil {
		return err
	}
	providers.SetGlobal()

	checker := health.NewChecker()
	deps := service.Deps{Hasher: security.NewHasher(cfg.BcryptCost)}

	var (
		conn      *sql.DB
		auditRepo auditrepo.Repository
	)
	if cfg.DatabaseURL != "" {
		conn, err = db.Open(ctx, cfg.DatabaseURL, db.Pool{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxIdleTime: cfg.DBIdleTime(),
		})
		if err != nil {
			return err
		}
		defer conn.Close()
		checker.AddPinger("postgres", conn)
		orgs := orgrepo.NewPostgresRepository(conn)
		deps.Materializer = repository.NewPostgresMaterializer(conn)
		deps.SlugLookup = orgs
		deps.Users = userrepo.NewPostgresRepository(conn)
		deps.Plans = planrepo.NewPostgresRepository(conn)
		auditRepo = auditrepo.NewPostgresRepository(conn)
	} else {
		log.Warn().Msg("DATABASE_URL not set; permanent entities are kept in memory")
		mat := repository.NewMemoryMaterializer()
		deps.Materializer = mat
		deps.SlugLookup = mat
		deps.Users = mat
		deps.Plans = planrepo.NewMemoryCatalog(plandomain.DefaultPlans())
		auditRepo = auditrepo.NewMemoryRepository()
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return err
		}
		checker.Add("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		deps.Store = repository.NewRedisStore(rdb)
		deps.Slugs = repository.NewRedisReserver(rdb, repository.SlugNamespace)
		deps.Emails = repository.NewRedisReserver(rdb, repository.EmailNamespace)
	} else {
		log.Warn().Msg("REDIS_ADDR not set; registrations are kept in memory (single instance only)")
		deps.Store = repository.NewMemoryStore(nil)
		deps.Slugs = repository.NewMemoryReserver(nil)
		deps.Emails = repository.NewMemoryReserver(nil)
	}

	deps.Interview = interview.Default()
	if cfg.InterviewQuestionsFile != "" {
		if deps.Interview, err = interview.Load(cfg.InterviewQuestionsFile); err != nil {
			return err
		}
	}

	var devOTP *devotphandler.Handler
	if cfg.OTPReturnToClient {
		log.Warn().Msg("dev OTP mode: codes are not dispatched and are readable at GET /api/v1/dev/otp")
		codes := devotp.NewMemoryStore()
		deps.Sender = devotp.NewCaptureSender(codes)
		devOTP = devotphandler.NewHandler(codes, cfg.SessionCookieName)
	} else {
		deps.Sender = newDispatcher(cfg)
	}

	if cfg.PaymentGatewayURL != "" {
		deps.Payments = payment.NewGatewayClient(cfg.PaymentGatewayURL, cfg.PaymentGatewayKey)
	} else {
		if cfg.IsProduction() {
			return errors.New("PAYMENT_GATEWAY_URL must be set when APP_ENV=production")
		}
		log.Warn().Msg("PAYMENT_GATEWAY_URL not set; using the sandbox authorizer")
		deps.Payments = payment.SandboxAuthorizer{}
	}

	policy, err := newPolicy(ctx, cfg)
	if err != nil {
		return err
	}
	deps.Policy = policy
	checker.AddPolicy("policy", policy)

	privPEM, pubPEM := cfg.JWTPrivateKey, cfg.JWTPublicKey
	if privPEM == "" && !cfg.IsProduction() {
		if privPEM, pubPEM, err = security.GenerateKeyPEM(); err != nil {
			return err
		}
		log.Warn().Msg("JWT_PRIVATE_KEY not set; signing owner tokens with an ephemeral key")
	}
	var tokens *security.TokenProvider
	if privPEM != "" {
		tokens, err = security.NewTokenProviderFromPEM(privPEM, pubPEM, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())
		if err != nil {
			return err
		}
		deps.Tokens = tokens
	}

	auditLogger := audit.NewLogger(auditRepo, nil)
	deps.Audit = auditLogger

	events, kafkaProducer, err := newEmitter(cfg, providers)
	if err != nil {
		return err
	}
	deps.Events = events

	svc := service.New(service.Config{
		RegistrationTTL: cfg.RegistrationLifetime(),
		OTPTTL:          cfg.OTPLifetime(),
		OTPDigits:       cfg.OTPDigits,
		OTPMaxAttempts:  cfg.OTPMaxAttempts,
		ResendCooldown:  cfg.ResendCooldown(),
	}, deps)

	routes := server.Deps{
		Registration: reghandler.NewHandler(svc, reghandler.CookieConfig{
			Name:   cfg.SessionCookieName,
			Secure: cfg.SessionCookieSecure,
			Domain: cfg.SessionCookieDomain,
			MaxAge: cfg.RegistrationLifetime(),
		}),
		Audit:       auditLogger,
		Health:      checker,
		DevOTP:      devOTP,
		CORSOrigins: cfg.CORSOrigins(),
	}
	if conn != nil && tokens != nil {
		routes.Tokens = tokens
		routes.Account = account.NewHandler(account.NewService(account.Repos{
			Users:         userrepo.NewPostgresRepository(conn),
			Orgs:          orgrepo.NewPostgresRepository(conn),
			Memberships:   membershiprepo.NewPostgresRepository(conn),
			Subscriptions: subscriptionrepo.NewPostgresRepository(conn),
			Audit:         auditRepo,
		}))
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(routes),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	hs := grpchealth.NewServer()
	grpcSrv := server.NewGRPCServer(hs)
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return err
		}
		go checker.Watch(ctx, hs, healthWatchInterval)
		go func() {
			log.Info().Str("addr", cfg.GRPCAddr).Msg("gRPC health server listening")
			if err := grpcSrv.Serve(lis); err != nil {
				errc <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errc:
		log.Error().Err(err).Msg("server failed; shutting down")
	}

	log.Info().Msg("shutting down...")
	hs.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP shutdown")
	}
	grpcSrv.GracefulStop()

	// Let in-flight async telemetry emits finish before closing their sinks.
	time.Sleep(telemetry.ShutdownDrainDuration)
	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			log.Warn().Err(err).Msg("kafka producer close")
		}
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("otel shutdown")
	}
	log.Info().Msg("server stopped")
	return nil
}

func newDispatcher(cfg *config.Config) *otp.Dispatcher {
	var smsSender otp.SMSSender
	switch {
	case cfg.SMSProvider == "twilio" && cfg.TwilioAccountSID != "":
		smsSender = sms.NewTwilioClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	case cfg.SMSProvider == "smslocal" && cfg.SMSLocalAPIKey != "":
		smsSender = sms.NewSMSLocalClient(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender)
	default:
		log.Warn().Str("provider", cfg.SMSProvider).Msg("SMS provider not configured; SMS codes cannot be sent")
	}
	var mailSender otp.EmailSender
	if cfg.SMTPHost != "" {
		mailSender = email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	} else {
		log.Warn().Msg("SMTP_HOST not set; EMAIL codes cannot be sent")
	}
	return otp.NewDispatcher(smsSender, mailSender)
}

func newPolicy(ctx context.Context, cfg *config.Config) (*engine.OPAEvaluator, error) {
	if cfg.SignupPolicyFile != "" {
		return engine.NewOPAEvaluatorFromFile(ctx, cfg.BlockedEmailDomains(), cfg.SignupPolicyFile)
	}
	return engine.NewOPAEvaluator(ctx, cfg.BlockedEmailDomains())
}

// newEmitter fans funnel events out to OTel logs and metrics, and to Kafka when brokers are set.
func newEmitter(cfg *config.Config, providers *telemetryotel.Providers) (telemetry.EventEmitter, producer.Producer, error) {
	metrics, err := telemetryotel.NewFunnelMetrics(providers.MeterProvider)
	if err != nil {
		return nil, nil, err
	}
	fanout := telemetry.Fanout{telemetryotel.NewEventEmitter(providers.LoggerProvider), metrics}
	brokers := cfg.TelemetryKafkaBrokersList()
	if len(brokers) == 0 {
		return fanout, nil, nil
	}
	kp := producer.NewKafkaProducer(brokers, cfg.TelemetryKafkaTopic)
	log.Info().Strs("brokers", brokers).Str("topic", cfg.TelemetryKafkaTopic).Msg("funnel events go to Kafka")
	return append(fanout, kp), kp, nil
}
