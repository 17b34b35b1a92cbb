package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"littlelemon/internal/config"
	"littlelemon/internal/es"
	"littlelemon/internal/handlers"
	"littlelemon/internal/handlers/cart"
	"littlelemon/internal/handlers/orders"
	"littlelemon/internal/logging"
	authmw "littlelemon/internal/middleware/auth"
	"littlelemon/internal/mykafka"
	httpserver "littlelemon/internal/transport/http"
)

const menuIndex = "menu_items"

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	slog.SetDefault(logger)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	jwtSecret := []byte(configuration.JWT_SECRET)

	var prod *mykafka.Producer
	if configuration.KAFKA_ADDRESS != "" {
		prod, err = mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
		if err != nil {
			log.Fatalf("kafka init error: %v", err)
		}
	} else {
		logger.Warn("KAFKA_ADDRESS not set, events disabled")
	}

	var esClient *elasticsearch.Client
	if configuration.ES_URL != "" {
		esClient, err = es.NewClient(configuration)
		if err != nil {
			log.Fatalf("elasticsearch init error: %v", err)
		}
	} else {
		logger.Warn("ES_URL not set, menu search disabled")
	}

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())

	deps := httpserver.Deps{
		Auth:            &authmw.Middleware{DB: db, JWTSecret: jwtSecret},
		AuthHandler:     &handlers.AuthHandler{DB: db, JWTSecret: jwtSecret, Producer: prod},
		MenuHandler:     &handlers.MenuHandler{DB: db, Producer: prod, ES: esClient, Index: menuIndex},
		CategoryHandler: &handlers.CategoryHandler{DB: db},
		SearchHandler:   &handlers.SearchHandler{ES: esClient, Index: menuIndex},
		GroupHandler:    &handlers.GroupHandler{DB: db},
		CartHandler:     &cart.CartHandler{DB: db, Producer: prod},
		OrderHandler:    &orders.OrderHandler{DB: db, Producer: prod},
	}
	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         configuration.HTTP_ADDR,
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	}

	if prod != nil {
		if err := prod.Close(); err != nil {
			log.Printf("kafka close error: %v", err)
		}
	}

	log.Println("shutdown complete")
}
