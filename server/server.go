package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"weradio/cluster"
	"weradio/config"
	"weradio/core/audio"
	"weradio/core/radio"
	"weradio/db"
	"weradio/logger"
	"weradio/repository"
	"weradio/storage"

	"github.com/gorilla/mux"
)

// Start initializes the full node (storage, replication, playback pipeline)
// and runs the HTTP server until SIGINT/SIGTERM.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.InfoLevel,
		OutputPath: "logs/weradio.log",
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	})

	store, err := storage.New(cfg)
	if err != nil {
		logger.Fatal("初始化存储后端失败", logger.ErrorField(err))
	}

	processor := audio.NewFFmpegProcessor(
		cfg.FFmpegPath, cfg.AACBitrate, cfg.SampleRate, cfg.AudioChannels, cfg.ConversionTimeout)

	bus := cluster.NewRedisBus(cluster.RedisOptions{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer bus.Close()
	channel := cluster.NewChannel(bus, cfg.SnapshotTTL)

	// 用户系统可选：数据库不可用时电台照常播放，仅认证接口降级
	var userRepo *repository.UserRepository
	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Warn("用户数据库不可用，认证接口降级", logger.ErrorField(err))
	} else {
		defer db.CloseGormDB()
		if err := db.AutoMigrate(); err != nil {
			logger.Warn("用户表迁移失败", logger.ErrorField(err))
		}
		userRepo = repository.NewUserRepository(db.GormDB)
	}

	station := radio.New(cfg, store, processor, channel)
	station.Start()
	defer station.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 本地文件库的带外变动监听（仅生产节点）
	if cfg.Role == "producer" && !cfg.UseObjectStorage {
		if watcher, err := radio.NewWatcher(station, cfg.LibraryDir); err != nil {
			logger.Warn("启动音乐库监听失败", logger.ErrorField(err))
		} else {
			go watcher.Run(ctx)
		}
	}

	api := NewAPIHandler(cfg, station, channel, userRepo, store, processor)

	hub := NewStatusHub(api)
	go hub.Run(ctx, cfg.PublishInterval)

	router := mux.NewRouter()

	// CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	router.HandleFunc("/", api.IndexHandler).Methods(http.MethodGet)
	router.HandleFunc("/status", api.StatusHandler).Methods(http.MethodGet)
	router.HandleFunc("/tracks", api.TracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/queue/add", api.AddToQueueHandler).Methods(http.MethodPost)
	router.HandleFunc("/queue/remove", api.RemoveFromQueueHandler).Methods(http.MethodPost)
	router.HandleFunc("/track/remove", api.AuthMiddleware(api.AdminOnly(api.RemoveTrackHandler))).Methods(http.MethodPost)
	router.HandleFunc("/upload", api.AuthMiddleware(api.UploadHandler)).Methods(http.MethodPost)

	router.HandleFunc("/playlist.m3u8", api.PlaylistHandler).Methods(http.MethodGet)
	router.HandleFunc("/hls/{segment}", api.SegmentHandler).Methods(http.MethodGet)

	router.HandleFunc("/api/auth/register", api.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", api.LoginHandler).Methods(http.MethodPost)

	router.HandleFunc("/ws/status", hub.HandleWS)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("HTTP服务启动",
			logger.String("addr", server.Addr),
			logger.String("role", cfg.Role))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP服务启动失败", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("收到退出信号，开始优雅关闭")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP服务强制关闭", logger.ErrorField(err))
	}
	logger.Info("HTTP服务已停止")
}
