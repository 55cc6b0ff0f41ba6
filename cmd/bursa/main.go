package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"

	"github.com/core-coin/bursa/internal/blockchain"
	"github.com/core-coin/bursa/internal/bursa"
	"github.com/core-coin/bursa/internal/config"
	"github.com/core-coin/bursa/internal/connection"
	"github.com/core-coin/bursa/internal/connector"
	"github.com/core-coin/bursa/internal/controller"
	"github.com/core-coin/bursa/internal/http_api"
	"github.com/core-coin/bursa/internal/metrics"
	"github.com/core-coin/bursa/internal/models"
	"github.com/core-coin/bursa/internal/notificator"
	"github.com/core-coin/bursa/internal/repository"
	"github.com/core-coin/bursa/internal/tui"
	"github.com/core-coin/bursa/pkg/logger"
)

const defaultTUILogFile = "bursa.log"

func main() {
	app := &cli.App{
		Name:  "bursa",
		Usage: "Bursa connects a Core wallet and shows its balance",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "connector", Aliases: []string{"c"}, Usage: "Connector variant (node, watch)"},
			&cli.StringFlag{Name: "watch-address", Aliases: []string{"w"}, Usage: "Address followed by the watch connector"},
			&cli.StringFlag{Name: "blockchain-service-url", Aliases: []string{"b"}, Usage: "Blockchain service URL"},
			&cli.Uint64Flag{Name: "network-id", Aliases: []string{"n"}, Usage: "Default network id"},
			&cli.StringFlag{Name: "supported-networks", Aliases: []string{"s"}, Usage: "Comma separated list of allowed network ids"},
			&cli.DurationFlag{Name: "polling-interval", Aliases: []string{"i"}, Usage: "Chain polling interval"},
			&cli.StringFlag{Name: "log-file", Aliases: []string{"l"}, Usage: "Log output path"},
			&cli.StringFlag{Name: "postgres-user", Aliases: []string{"u"}, Usage: "Postgres user"},
			&cli.StringFlag{Name: "postgres-password", Aliases: []string{"p"}, Usage: "Postgres password"},
			&cli.StringFlag{Name: "postgres-host", Aliases: []string{"t"}, Usage: "Postgres host, history is disabled without it"},
			&cli.IntFlag{Name: "postgres-port", Aliases: []string{"P"}, Usage: "Postgres port"},
			&cli.StringFlag{Name: "postgres-db", Aliases: []string{"d"}, Usage: "Postgres database name"},
			&cli.BoolFlag{Name: "development", Aliases: []string{"D"}, Usage: "Development mode"},
		},
		Action: runTUI,
		Commands: []*cli.Command{
			{
				Name:   "tui",
				Usage:  "Run the terminal front-end (default)",
				Action: runTUI,
			},
			{
				Name:  "serve",
				Usage: "Serve the HTTP API",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "api-port", Aliases: []string{"a"}, Usage: "HTTP API port"},
				},
				Action: runServe,
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %v", err)
	}

	// Override with flags if set
	if c.IsSet("connector") {
		cfg.Connector = c.String("connector")
	}
	if c.IsSet("watch-address") {
		cfg.WatchAddress = c.String("watch-address")
	}
	if c.IsSet("blockchain-service-url") {
		cfg.BlockchainServiceURL = c.String("blockchain-service-url")
	}
	if c.IsSet("network-id") {
		cfg.NetworkID = c.Uint64("network-id")
	}
	if c.IsSet("supported-networks") {
		list, err := config.ParseNetworkList(c.String("supported-networks"))
		if err != nil {
			return nil, err
		}
		cfg.SupportedNetworks = list
	}
	if c.IsSet("polling-interval") {
		cfg.PollingInterval = c.Duration("polling-interval")
	}
	if c.IsSet("log-file") {
		cfg.LogFile = c.String("log-file")
	}
	if c.IsSet("postgres-user") {
		cfg.PostgresUser = c.String("postgres-user")
	}
	if c.IsSet("postgres-password") {
		cfg.PostgresPassword = c.String("postgres-password")
	}
	if c.IsSet("postgres-host") {
		cfg.PostgresHost = c.String("postgres-host")
	}
	if c.IsSet("postgres-port") {
		cfg.PostgresPort = c.Int("postgres-port")
	}
	if c.IsSet("postgres-db") {
		cfg.PostgresDB = c.String("postgres-db")
	}
	if c.IsSet("development") {
		cfg.Development = c.Bool("development")
	}
	if c.IsSet("api-port") {
		cfg.APIPort = c.Int("api-port")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Apply()
	return cfg, nil
}

// build wires the application. The returned cleanup releases what build opened.
func build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bursa.Bursa, *metrics.Metrics, func(), error) {
	conn, err := connector.New(cfg, blockchain.Dial)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create connector: %v", err)
	}

	store := connection.NewStore(blockchain.LibraryFactory(cfg.PollingInterval, log), cfg.SupportedNetworks, log)
	ctrl := controller.New(conn, store)

	// Initialize database
	var repo models.Repository
	if cfg.HistoryEnabled() {
		repo, err = repository.NewPostgresDB(cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDB, cfg.PostgresHost, cfg.PostgresPort, log)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to connect to database: %v", err)
		}
	}

	// Initialize notificator
	var app *bursa.Bursa
	var notifier models.NotificationService
	if cfg.NotificationsEnabled() {
		telegram, err := notificator.NewTelegramNotificator(ctx, log, cfg.TelegramBotToken, cfg.TelegramChatID, func() models.View {
			return app.View()
		})
		if err != nil {
			log.Error("Telegram notifications disabled: ", err)
		} else {
			notifier = notificator.NewNotificator(log, telegram)
		}
	}

	m := metrics.New()
	app = bursa.NewBursa(store, ctrl, repo, notifier, m, log, cfg)

	cleanup := func() {
		app.Stop()
		if repo != nil {
			if err := repo.Close(); err != nil {
				log.Error("Failed to close database: ", err)
			}
		}
	}
	return app, m, cleanup, nil
}

func runTUI(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if cfg.LogFile == "" {
		cfg.LogFile = defaultTUILogFile
	}

	// Initialize logger, away from the terminal
	log, err := logger.NewLogger(cfg.Development, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	app, _, cleanup, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()
	app.Start()

	model := tui.New(app)
	defer model.Close()

	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("terminal UI failed: %v", err)
	}
	return nil
}

func runServe(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	// Initialize logger
	var outputs []string
	if cfg.LogFile != "" {
		outputs = append(outputs, cfg.LogFile)
	}
	log, err := logger.NewLogger(cfg.Development, outputs...)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %v", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, m, cleanup, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()
	app.Start()

	var apiServer models.APIServer = http_api.NewHTTPServer(app, m.Handler(), cfg.APIPort, log)
	go apiServer.Start()

	<-ctx.Done()
	log.Info("Shutting down...")
	return apiServer.Shutdown()
}
