package main

import (
	"context"
	"net/http"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/avrlab/lab-projects-backend/db"
	"github.com/avrlab/lab-projects-backend/logger"
	middle "github.com/avrlab/lab-projects-backend/middleware"
	"github.com/avrlab/lab-projects-backend/service"
)

type appConfig struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DBDriver    string `env:"DB_DRIVER" envDefault:"postgres"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`
}

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.Warnf("error loading .env file: %v", err)
	}

	var cfg appConfig
	if err := env.Parse(&cfg); err != nil {
		logrus.Fatalf("error parsing config: %v", err)
	}

	var logCfg logger.Config
	if err := env.Parse(&logCfg); err != nil {
		logrus.Fatalf("error parsing log config: %v", err)
	}
	log, err := logger.New(logCfg)
	if err != nil {
		logrus.Fatalf("error creating logger: %v", err)
	}

	database := initDatabase(cfg, log)
	defer database.Close()

	if err := database.Ping(context.Background()); err != nil {
		log.Fatalf("error pinging database: %v", err)
	}

	var poolCfg service.PoolConfig
	if err := env.Parse(&poolCfg); err != nil {
		log.Fatalf("error parsing pool config: %v", err)
	}

	pool := service.NewClientPool(database.DB(), log, poolCfg)
	platform := service.NewYouTubeService(pool, log)
	pipeline := service.NewVideoPipeline(database.DB(), platform, log)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})

	mux := http.NewServeMux()
	registerProjectRoutes(mux, database.DB(), pipeline, log)
	registerAuthRoutes(mux, pool, cfg.FrontendURL, log)

	handler := middle.RequestLogger(log, corsHandler.Handler(mux))

	log.Infof("listening on http://localhost:%s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, handler))
}

func initDatabase(cfg appConfig, log *logrus.Logger) db.Database {
	var (
		database db.Database
		err      error
	)

	switch db.DBType(cfg.DBDriver) {
	case db.SqliteType:
		var liteCfg db.SqliteConfig
		if err := env.Parse(&liteCfg); err != nil {
			log.Fatalf("error parsing sqlite config: %v", err)
		}
		database, err = db.NewDatabase(db.SqliteType, &liteCfg)
	default:
		var pgCfg db.PostgresConfig
		if err := env.Parse(&pgCfg); err != nil {
			log.Fatalf("error parsing postgres config: %v", err)
		}
		database, err = db.NewDatabase(db.PostgresType, &pgCfg)
	}
	if err != nil {
		log.Fatalf("error creating database: %v", err)
	}

	if err := database.Connect(); err != nil {
		log.Fatalf("error connecting to database: %v", err)
	}

	log.Infof("connected to %s database", database.GetDriver())
	return database
}
