package services

import (
	"context"

	"coin_tracker/models"
)

// Searcher 推文搜索能力
type Searcher interface {
	// 按关键词搜索推文并翻页
	SearchTweets(ctx context.Context, query string, numPages int) ([]models.RawTweet, error)
}

// Classifier 推文结构化分析能力
type Classifier interface {
	// 对单条推文文本做结构化分析
	Classify(ctx context.Context, text string) (*models.TweetClassification, error)
}

// AnalysisStore 分析结果的持久化能力
type AnalysisStore interface {
	// 读取所有已入库的推文ID
	GetExistingTweetIDs() (map[string]bool, error)

	// 单事务批量写入，twitter_id已存在的行静默跳过，返回实际插入行数
	BulkInsertAnalyses(rows []models.CoinTweetAnalysis) (int64, error)
}
