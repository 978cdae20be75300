package main

import (
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/swaggo/swag" // 导入 swag

	"coin_tracker/collector"
	"coin_tracker/config"
	"coin_tracker/db"
	_ "coin_tracker/docs" // 导入 swagger 文档
	"coin_tracker/handlers"
	"coin_tracker/logger"
	"coin_tracker/repository"
	"coin_tracker/scheduler"
	"coin_tracker/services"
)

func main() {
	cfg := config.Load()

	// 初始化日志系统
	if err := logger.Init(cfg); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	logger.Info("日志系统初始化成功", "level", cfg.Log.Level, "format", cfg.Log.Format, "output", cfg.Log.Output)

	if err := db.InitMySQLWithConfig(cfg); err != nil {
		logger.Error("初始化MySQL失败", "error", err)
		os.Exit(1)
	}
	logger.Info("MySQL连接成功",
		"max_open_conns", cfg.DB.MaxOpenConns,
		"max_idle_conns", cfg.DB.MaxIdleConns,
		"conn_max_lifetime", cfg.DB.ConnMaxLifetime)

	// 组装采集分析流水线
	search := collector.NewClient(cfg)
	classify := services.NewClassifyService(cfg)
	store := repository.NewAnalysisRepo()
	analysis := services.NewAnalysisService(cfg, search, classify, store)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	handlers.RegisterRoutes(r, cfg, analysis, search)

	// start cron
	scheduler.Start(cfg, analysis)

	logger.Info("服务器启动", "address", cfg.Server.Addr)
	logger.Info("Swagger文档可访问", "url", "http://localhost"+cfg.Server.Addr+"/swagger/index.html")
	log.Fatal(http.ListenAndServe(cfg.Server.Addr, r))
}
