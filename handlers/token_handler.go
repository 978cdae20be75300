package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	"coin_tracker/collector"
	"coin_tracker/config"
	"coin_tracker/db"
	_ "coin_tracker/docs" // 导入 swagger 文档
	"coin_tracker/models"
	"coin_tracker/repository"
	"coin_tracker/services"
	"coin_tracker/utils"
)

// validTimeRanges 合法的时间窗口取值
var validTimeRanges = map[string]bool{
	"hour": true,
	"3hr":  true,
	"6hr":  true,
	"12hr": true,
	"day":  true,
}

// parseTimeRange 读取time_range查询参数，非法取值返回false
func parseTimeRange(r *http.Request) (string, bool) {
	timeRange := r.URL.Query().Get("time_range")
	if timeRange == "" {
		timeRange = "day"
	}
	return timeRange, validTimeRanges[timeRange]
}

// TopTokensHandler godoc
// @Summary 按情绪得分获取热门币种
// @Description 获取时间窗口内情绪得分最高的N个币种
// @Tags 币种
// @Produce json
// @Param limit query int false "返回数量(1-100)" default(10)
// @Param time_range query string false "时间窗口" Enums(hour, 3hr, 6hr, 12hr, day) default(day)
// @Success 200 {object} models.APIResponse "成功"
// @Failure 400 {object} models.APIResponse "参数错误"
// @Failure 500 {object} models.APIResponse "服务器错误"
// @Router /api/tokens/top [get]
func TopTokensHandler(w http.ResponseWriter, r *http.Request) {
	timeRange, ok := parseTimeRange(r)
	if !ok {
		utils.WriteErrorResponse(w, models.CodeInvalidParams, map[string]interface{}{"param": "time_range"})
		return
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			utils.WriteErrorResponse(w, models.CodeInvalidParams, map[string]interface{}{"param": "limit"})
			return
		}
		limit = n
	}

	tokens, err := repository.GetTokensByScore(timeRange, limit)
	if err != nil {
		utils.WriteCustomErrorResponse(w, models.CodeDatabaseError, err.Error(), map[string]interface{}{})
		return
	}

	utils.WriteSuccessResponse(w, tokens)
}

// TokenInfoHandler godoc
// @Summary 获取币种聚合信息
// @Description 获取时间窗口内某个币种的提及数、情绪分布和热门关键词
// @Tags 币种
// @Produce json
// @Param coin_name path string true "币种"
// @Param time_range query string false "时间窗口" Enums(hour, 3hr, 6hr, 12hr, day) default(day)
// @Success 200 {object} models.APIResponse "成功"
// @Failure 400 {object} models.APIResponse "参数错误"
// @Failure 500 {object} models.APIResponse "服务器错误"
// @Router /api/tokens/{coin_name}/info [get]
func TokenInfoHandler(w http.ResponseWriter, r *http.Request) {
	coinName := chi.URLParam(r, "coin_name")
	if !utils.ValidateCoinName(w, coinName) {
		return
	}

	timeRange, ok := parseTimeRange(r)
	if !ok {
		utils.WriteErrorResponse(w, models.CodeInvalidParams, map[string]interface{}{"param": "time_range"})
		return
	}

	info, err := repository.GetTokenAggregateInfo(coinName, timeRange)
	if err != nil {
		utils.HandleServiceError(w, err, models.CodeTokenNotFound)
		return
	}
	if info == nil {
		utils.WriteErrorResponse(w, models.CodeTokenNotFound, map[string]interface{}{"coin_name": coinName})
		return
	}

	utils.WriteSuccessResponse(w, info)
}

// TokenTweetsHandler godoc
// @Summary 获取币种最新推文
// @Description 获取某个币种最新的5条推文
// @Tags 币种
// @Produce json
// @Param coin_name path string true "币种"
// @Success 200 {object} models.APIResponse "成功"
// @Failure 400 {object} models.APIResponse "参数错误"
// @Failure 500 {object} models.APIResponse "服务器错误"
// @Router /api/tokens/{coin_name}/tweets [get]
func TokenTweetsHandler(w http.ResponseWriter, r *http.Request) {
	coinName := chi.URLParam(r, "coin_name")
	if !utils.ValidateCoinName(w, coinName) {
		return
	}

	tweets, err := repository.GetLatestTweetsByCoin(coinName, 5)
	if err != nil {
		utils.WriteCustomErrorResponse(w, models.CodeDatabaseError, err.Error(), map[string]interface{}{})
		return
	}

	utils.WriteSuccessResponse(w, tweets)
}

// TokenHourlySentimentHandler godoc
// @Summary 获取币种按小时聚合的情绪数据
// @Description 获取某个币种最近24小时按小时聚合的情绪数据
// @Tags 币种
// @Produce json
// @Param coin_name path string true "币种"
// @Success 200 {object} models.APIResponse "成功"
// @Failure 400 {object} models.APIResponse "参数错误"
// @Failure 500 {object} models.APIResponse "服务器错误"
// @Router /api/tokens/{coin_name}/sentiment/hourly [get]
func TokenHourlySentimentHandler(w http.ResponseWriter, r *http.Request) {
	coinName := chi.URLParam(r, "coin_name")
	if !utils.ValidateCoinName(w, coinName) {
		return
	}

	sentiment, err := repository.GetHourlySentimentByCoin(coinName)
	if err != nil {
		utils.WriteCustomErrorResponse(w, models.CodeDatabaseError, err.Error(), map[string]interface{}{})
		return
	}

	utils.WriteSuccessResponse(w, sentiment)
}

// RunIngestionHandler godoc
// @Summary 手动触发一轮采集分析
// @Description 手动触发一轮推文采集分析，后台异步执行
// @Tags 采集
// @Produce json
// @Success 200 {object} models.APIResponse "成功"
// @Router /api/ingest/run [post]
func RunIngestionHandler(w http.ResponseWriter, r *http.Request, analysis *services.AnalysisService) {
	go func() {
		if err := analysis.RunIngestionCycle(context.Background()); err != nil {
			// 错误已在流水线内部记录，这里不再处理
			_ = err
		}
	}()

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"message": "采集分析已触发",
	})
}

// NewsSearchHandler godoc
// @Summary 搜索加密货币相关新闻
// @Description 通过ScrapeStorm搜索Google News
// @Tags 新闻
// @Produce json
// @Param query query string true "搜索关键词"
// @Param date_range query string false "时间范围" Enums(anytime, 1h, 1d, 7d, 1y) default(anytime)
// @Success 200 {object} models.APIResponse "成功"
// @Failure 400 {object} models.APIResponse "参数错误"
// @Failure 500 {object} models.APIResponse "服务器错误"
// @Router /api/news/search [get]
func NewsSearchHandler(w http.ResponseWriter, r *http.Request, search *collector.Client) {
	query := r.URL.Query().Get("query")
	if query == "" {
		utils.WriteErrorResponse(w, models.CodeMissingParams, map[string]interface{}{"param": "query"})
		return
	}

	result, err := search.SearchGoogleNews(r.Context(), query, r.URL.Query().Get("date_range"))
	if err != nil {
		utils.WriteCustomErrorResponse(w, models.CodeServerError, err.Error(), map[string]interface{}{})
		return
	}

	utils.WriteSuccessResponse(w, result.Data.Entries)
}

// HealthHandler godoc
// @Summary 健康检查
// @Tags 健康检查
// @Produce json
// @Success 200 {object} map[string]interface{} "成功"
// @Router /health [get]
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	utils.WriteFormattedJSON(w, map[string]interface{}{"status": "healthy"})
}

// ReadyHandler godoc
// @Summary 就绪检查
// @Description 就绪检查，验证数据库连通性
// @Tags 健康检查
// @Produce json
// @Success 200 {object} map[string]interface{} "成功"
// @Failure 503 {object} map[string]interface{} "数据库不可用"
// @Router /ready [get]
func ReadyHandler(w http.ResponseWriter, r *http.Request) {
	if err := db.DB.Ping(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		utils.WriteFormattedJSON(w, map[string]interface{}{"status": "not ready", "error": err.Error()})
		return
	}
	utils.WriteFormattedJSON(w, map[string]interface{}{"status": "ready", "database": "connected"})
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *chi.Mux, cfg *config.Config, analysis *services.AnalysisService, search *collector.Client) {
	// Swagger文档
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	r.Get("/api/tokens/top", TopTokensHandler)
	r.Get("/api/tokens/{coin_name}/info", TokenInfoHandler)
	r.Get("/api/tokens/{coin_name}/tweets", TokenTweetsHandler)
	r.Get("/api/tokens/{coin_name}/sentiment/hourly", TokenHourlySentimentHandler)

	r.Post("/api/ingest/run", func(w http.ResponseWriter, r *http.Request) {
		RunIngestionHandler(w, r, analysis)
	})
	r.Get("/api/news/search", func(w http.ResponseWriter, r *http.Request) {
		NewsSearchHandler(w, r, search)
	})

	r.Get("/health", HealthHandler)
	r.Get("/ready", ReadyHandler)
}
