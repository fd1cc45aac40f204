package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"wedlink/bot"
	"wedlink/entity"
	"wedlink/impl/auth"
	"wedlink/impl/core"
	"wedlink/internal/assets"
	"wedlink/internal/cache"
	"wedlink/internal/config"
	"wedlink/internal/database"
	"wedlink/internal/editor"
	"wedlink/internal/http-server/api"
	"wedlink/internal/lifecycle"
	"wedlink/internal/mailer"
	"wedlink/internal/slug"
	"wedlink/lib/logger"
	"wedlink/lib/sl"

	"github.com/joho/godotenv"
)

const logFileName = "wedlink.log"

// Database is everything the service needs from the document store.
type Database interface {
	core.Repository
	lifecycle.Store
	slug.Finder
	bot.Database
	GetUser(ctx context.Context, id string) (*entity.User, error)
}

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	conf := config.MustLoad(*configPath)
	log := logger.SetupLogger(conf.Env, filepath.Join(*logPath, logFileName))
	log.Info("starting wedlink", slog.String("config", *configPath), slog.String("env", conf.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db Database
	mongo, err := database.NewMongoClient(ctx, conf)
	if err != nil {
		log.Error("mongo client", sl.Err(err))
		return
	}
	if mongo != nil {
		defer func() { _ = mongo.Close(context.Background()) }()
		if err = mongo.EnsureIndexes(ctx); err != nil {
			log.Error("mongo indexes", sl.Err(err))
			return
		}
		db = mongo
		log.With(slog.String("database", conf.Mongo.Database)).Info("mongo connected")
	} else {
		db = database.NewMemoryStore()
		log.Warn("mongo disabled, invitations are kept in memory")
	}

	var lookups cache.Cache = cache.NewMemory()
	if conf.Redis.Enabled {
		client, err := cache.Connect(ctx, conf.Redis.Addr, conf.Redis.Password, conf.Redis.DB)
		if err != nil {
			log.Error("redis", sl.Err(err))
			return
		}
		defer func() { _ = client.Close() }()
		lookups = cache.NewRedis(client, conf.Redis.Prefix)
		log.With(slog.String("addr", conf.Redis.Addr)).Info("redis connected")
	}

	var tgBot *bot.TgBot
	if conf.Telegram.Enabled {
		tgBot, err = bot.NewTgBot(conf.Telegram.ApiKey, db, conf.PublicBaseURL, log)
		if err != nil {
			log.Error("telegram bot", sl.Err(err))
			return
		}
		level := logLevel(conf.Telegram.LogLevel)
		tgBot.SetMinLogLevel(level)
		log = slog.New(logger.NewTelegramHandler(log.Handler(), tgBot, bot.Sanitize, level))
	}

	resolver := slug.NewResolver(db, lookups, conf.Cache.TTL, log)
	service := lifecycle.NewService(db, resolver, log)

	if m := mailer.New(conf.SendGrid, conf.PublicBaseURL, db, log); m != nil {
		service.AddNotifier(m)
	} else {
		log.Info("sendgrid api key not set, owner emails disabled")
	}

	host, err := assets.NewCloudinary(conf.Cloudinary, log)
	if err != nil {
		log.Error("asset host", sl.Err(err))
		return
	}
	sessions := editor.NewRegistry(db, resolver, host, conf.Editor.SessionIdle, log)
	if err = sessions.StartSweeper(conf.Editor.SweepSchedule); err != nil {
		log.Error("session sweeper", sl.Err(err))
		return
	}
	defer sessions.Stop()

	handler := core.New(db, service, sessions, resolver, log)
	handler.SetAuthService(auth.New(db, conf.Auth))

	if tgBot != nil {
		tgBot.SetReviewer(handler)
		service.AddNotifier(tgBot)
		go func() {
			if err := tgBot.Start(); err != nil {
				log.Error("telegram bot", sl.Err(err))
			}
		}()
		defer tgBot.Stop()
	}

	if err = api.New(ctx, conf, log, handler); err != nil {
		log.Error("api server", sl.Err(err))
	}
	log.Info("stopped")
}

func logLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelWarn
	}
	return l
}
