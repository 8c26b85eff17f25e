package database

import (
	"context"
	"time"

	config "github.com/anjiri1684/school_cbt/configs"
	"github.com/anjiri1684/school_cbt/logger"
	"github.com/anjiri1684/school_cbt/models"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// Redis stays nil when REDIS_URL is unset.
var Redis *redis.Client

func ConnectDB() {
	var err error
	dsn := config.Config("DATABASE_URL")

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		PrepareStmt:                              false,
		SkipDefaultTransaction:                   true,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to database")
	}

	sqlDB, err := DB.DB()
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to access database pool")
	}
	sqlDB.SetMaxOpenConns(config.ConfigInt("DB_MAX_OPEN_CONNS", 25))
	sqlDB.SetMaxIdleConns(config.ConfigInt("DB_MAX_IDLE_CONNS", 10))
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	logger.Log.Info("database connected")
}

func Migrate() {
	err := DB.AutoMigrate(
		&models.TestCode{},
		&models.Question{},
		&models.TestResult{},
		&models.AnswerMapping{},
	)
	if err != nil {
		logger.Log.WithError(err).Fatal("failed to migrate database")
	}
	logger.Log.Info("database migration successful")
}

func ConnectRedis() {
	url := config.Config("REDIS_URL")
	if url == "" {
		logger.Log.Info("REDIS_URL not set, answer keys will be stored in the database")
		return
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid REDIS_URL")
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Log.WithError(err).Fatal("failed to connect to redis")
	}

	Redis = client
	logger.Log.Info("redis connected")
}

func Close() {
	if Redis != nil {
		_ = Redis.Close()
	}
	if DB != nil {
		if sqlDB, err := DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
