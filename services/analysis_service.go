package services

import (
	"context"

	"coin_tracker/config"
	"coin_tracker/logger"
	"coin_tracker/models"
)

// AnalysisService 推文采集分析流水线
// 流程: 抓取 → 过滤 → 去重 → 分类 → 入库，每个阶段消费上一阶段的完整输出
type AnalysisService struct {
	cfg        *config.Config
	searcher   Searcher
	filter     *FilterService
	classifier *ClassifyService
	store      AnalysisStore
}

// NewAnalysisService 创建采集分析流水线
func NewAnalysisService(cfg *config.Config, searcher Searcher, classifier *ClassifyService, store AnalysisStore) *AnalysisService {
	return &AnalysisService{
		cfg:        cfg,
		searcher:   searcher,
		filter:     NewFilterService(),
		classifier: classifier,
		store:      store,
	}
}

// RunIngestionCycle 执行一轮完整的采集分析
// 没有候选推文时直接结束，属于正常的空转；只有存储层错误会返回
func (s *AnalysisService) RunIngestionCycle(ctx context.Context) error {
	// 阶段1: 抓取。单个关键词失败只影响该关键词，不中断本轮
	raws := s.fetchAll(ctx)
	if len(raws) == 0 {
		logger.Info("没有抓取到推文，本轮结束")
		return nil
	}

	// 阶段2: 过滤
	tweets := s.filter.FilterTweets(raws)
	if len(tweets) == 0 {
		logger.Info("过滤后没有剩余推文，本轮结束")
		return nil
	}

	// 阶段3: 去重
	existingIDs, err := s.store.GetExistingTweetIDs()
	if err != nil {
		logger.Error("读取已入库推文ID失败", "error", err)
		return err
	}
	newTweets := FilterNewTweets(tweets, existingIDs)
	logger.Info("已入库推文去重完成", "in", len(tweets), "existing", len(tweets)-len(newTweets), "out", len(newTweets))
	if len(newTweets) == 0 {
		logger.Info("没有新推文需要分析，本轮结束")
		return nil
	}

	// 阶段4: 分类
	outcomes := s.classifier.ClassifyBatch(ctx, newTweets)
	rows := buildAnalysisRows(outcomes)

	// 阶段5: 入库。写失败对本轮是致命错误，由调度方决定是否重试
	inserted, err := s.store.BulkInsertAnalyses(rows)
	if err != nil {
		logger.Error("批量写入分析结果失败", "error", err)
		return err
	}

	logger.Info("本轮采集分析完成",
		"fetched", len(raws),
		"filtered", len(tweets),
		"new", len(newTweets),
		"accepted", len(rows),
		"inserted", inserted)
	return nil
}

// fetchAll 按配置的所有关键词抓取推文
func (s *AnalysisService) fetchAll(ctx context.Context) []models.RawTweet {
	var raws []models.RawTweet
	for _, query := range s.cfg.Pipeline.SearchQueries {
		found, err := s.searcher.SearchTweets(ctx, query, s.cfg.ScrapeStorm.NumPages)
		if err != nil {
			logger.Error("抓取推文失败", "query", query, "error", err)
			continue
		}
		logger.Info("抓取推文完成", "query", query, "count", len(found))
		raws = append(raws, found...)
	}
	logger.Info("全部关键词抓取完成", "queries", len(s.cfg.Pipeline.SearchQueries), "total", len(raws))
	return raws
}

// buildAnalysisRows 把分类结果转成待入库的行
// 分类失败的推文记录日志后跳过；未命中投机币种的结果静默丢弃
func buildAnalysisRows(outcomes []ClassifyOutcome) []models.CoinTweetAnalysis {
	rows := make([]models.CoinTweetAnalysis, 0, len(outcomes))
	failed := 0
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			logger.Error("推文分类失败", "tweet_id", outcome.Tweet.ID, "error", outcome.Err)
			failed++
			continue
		}
		if !outcome.Result.Accepted() {
			continue
		}

		rows = append(rows, models.CoinTweetAnalysis{
			TwitterID:   outcome.Tweet.ID,
			CoinName:    outcome.Result.CoinName,
			PublishDate: outcome.Tweet.CreatedAt,
			Sentiment:   outcome.Result.Sentiment,
			Keywords:    outcome.Result.Keywords,
			Text:        outcome.Tweet.Text,
			Author:      outcome.Tweet.Author.Name,
		})
	}

	logger.Info("分类结果汇总", "classified", len(outcomes), "failed", failed, "accepted", len(rows))
	return rows
}
