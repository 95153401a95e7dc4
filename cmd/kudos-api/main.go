package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/kudos/internal/auth"
	"github.com/MarcoPoloResearchLab/kudos/internal/config"
	"github.com/MarcoPoloResearchLab/kudos/internal/database"
	"github.com/MarcoPoloResearchLab/kudos/internal/ids"
	"github.com/MarcoPoloResearchLab/kudos/internal/logging"
	"github.com/MarcoPoloResearchLab/kudos/internal/points"
	"github.com/MarcoPoloResearchLab/kudos/internal/realtime"
	"github.com/MarcoPoloResearchLab/kudos/internal/reviews"
	"github.com/MarcoPoloResearchLab/kudos/internal/server"
	"github.com/MarcoPoloResearchLab/kudos/internal/users"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kudos-api",
		Short: "Kudos performance review backend",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newUserCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-dsn", defaults.GetString("database.dsn"), "Database DSN or SQLite path")
	cmd.PersistentFlags().String("cognito-region", defaults.GetString("cognito.region"), "AWS region of the Cognito user pool")
	cmd.PersistentFlags().String("cognito-client-id", "", "Cognito app client ID")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Backend token TTL in minutes")
	cmd.PersistentFlags().Duration("publish-interval", defaults.GetDuration("realtime.publish_interval"), "Periodic like-count broadcast interval")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Backend signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "cognito.region", "cognito-region")
	bindFlag(cmd, "cognito.client_id", "cognito-client-id")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "realtime.publish_interval", "publish-interval")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	config.LoadDotEnv()
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(database.Config{Driver: appConfig.DatabaseDriver, DSN: appConfig.DatabaseDSN}, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokenManager, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        appConfig.TokenIssuer,
		Audience:      appConfig.TokenAudience,
		TokenTTL:      appConfig.TokenTTL,
	})
	if err != nil {
		return err
	}

	cognitoClient, err := auth.NewCognitoClient(signalCtx, appConfig.CognitoRegion)
	if err != nil {
		return err
	}
	identityProvider, err := auth.NewCognitoProvider(auth.CognitoConfig{
		Client:       cognitoClient,
		ClientID:     appConfig.CognitoClientID,
		ClientSecret: appConfig.CognitoClientSecret,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	idProvider := ids.NewUUIDProvider()
	usersService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
		Clock:      time.Now,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	pointsService, err := points.NewService(points.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
		Clock:      time.Now,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	registry := realtime.NewRegistry(realtime.RegistryConfig{Logger: logger})
	notifier, err := realtime.NewNotifier(realtime.NotifierConfig{
		Registry: registry,
		Buffer:   appConfig.NotifyBuffer,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	reviewsService, err := reviews.NewService(reviews.ServiceConfig{
		Database:   db,
		Ledger:     pointsService,
		Notifier:   notifier,
		IDProvider: idProvider,
		Clock:      time.Now,
		Logger:     logger,
		Rewards: reviews.Rewards{
			ReviewSubmitted: appConfig.ReviewReward,
			LikeReceived:    appConfig.LikeReward,
		},
	})
	if err != nil {
		return err
	}
	likeAggregator, err := reviews.NewLikeAggregator(db)
	if err != nil {
		return err
	}

	sessions, err := realtime.NewSessionHandler(realtime.SessionConfig{
		Registry:     registry,
		Snapshots:    likeAggregator,
		WriteTimeout: appConfig.WriteTimeout,
		CheckOrigin:  originChecker(appConfig.AllowedOrigins),
		Clock:        time.Now,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	publisher, err := realtime.NewPublisher(realtime.PublisherConfig{
		Registry:  registry,
		Snapshots: likeAggregator,
		Interval:  appConfig.PublishInterval,
		Clock:     time.Now,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		IdentityProvider: identityProvider,
		TokenManager:     tokenManager,
		UsersService:     usersService,
		ReviewsService:   reviewsService,
		PointsService:    pointsService,
		Realtime:         sessions,
		AllowedOrigins:   appConfig.AllowedOrigins,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	go notifier.Run(signalCtx)
	if err := publisher.Start(signalCtx); err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		registry.CloseAll()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// originChecker mirrors the CORS allow-list for WebSocket upgrades. Requests without an
// Origin header come from non-browser clients and are accepted.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}
