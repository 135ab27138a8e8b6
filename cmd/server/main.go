package main

import (
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"dinesync/internal/config"
	httpctl "dinesync/internal/controllers/http"
	"dinesync/internal/infra"
	"dinesync/internal/infra/mysql"
	"dinesync/internal/infra/rabbitmq"
	mysqlrepo "dinesync/internal/repository/mysql"
	"dinesync/internal/services"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "dinesync-gateway").Logger()

	cfg := config.FromEnv()

	db, err := mysql.New(cfg.MySQL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}

	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetMaxIdleConns(20)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	orderRepo := mysqlrepo.NewOrderRepository(db)
	sessionRepo := mysqlrepo.NewSessionRepository(db)
	tableRepo := mysqlrepo.NewTableRepository(db)

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	events := infra.NewRedisEventPublisher(rdb, log)

	backend, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.Exchange)
	if err != nil {
		log.Fatal().Err(err).Msg("rabbitmq connect failed")
	}
	defer backend.Close()

	service := services.NewOrderService(orderRepo, sessionRepo, tableRepo, events, backend, log)
	handler := httpctl.NewHandler(service, log)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	handler.RegisterRoutes(r)

	log.Info().Str("port", cfg.HTTPPort).Msg("starting gateway")
	if err := r.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatal().Err(err).Msg("server run failed")
	}
}
