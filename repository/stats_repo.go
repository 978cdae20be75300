package repository

import (
	"database/sql"
	"encoding/json"
	"sort"
	"time"

	"coin_tracker/db"
	"coin_tracker/models"
)

// sentimentWeightSQL 情绪权重的SQL表达: positive=1, negative=-1, neutral=0
const sentimentWeightSQL = `CASE sentiment WHEN 'positive' THEN 1 WHEN 'negative' THEN -1 ELSE 0 END`

// timeRangeStart 把时间窗口标识转成起始时间，不认识的窗口返回false
func timeRangeStart(timeRange string) (time.Time, bool) {
	now := time.Now().UTC()
	switch timeRange {
	case "hour":
		return now.Add(-1 * time.Hour), true
	case "3hr":
		return now.Add(-3 * time.Hour), true
	case "6hr":
		return now.Add(-6 * time.Hour), true
	case "12hr":
		return now.Add(-12 * time.Hour), true
	case "day":
		return now.Add(-24 * time.Hour), true
	}
	return time.Time{}, false
}

// GetTokensByScore 按情绪得分取时间窗口内前N个币种
// 得分 = 情绪权重之和 × (去重作者数 / 提及数)，惩罚单一账号刷量
func GetTokensByScore(timeRange string, limit int) ([]models.TokenScore, error) {
	start, ok := timeRangeStart(timeRange)
	if !ok {
		return []models.TokenScore{}, nil
	}

	rows, err := db.DB.Query(`
		SELECT coin_name,
			SUM(`+sentimentWeightSQL+`) * (COUNT(DISTINCT author) / COUNT(id)) AS score
		FROM coin_tweet_analysis
		WHERE publish_date >= ?
		GROUP BY coin_name
		ORDER BY score DESC
		LIMIT ?
	`, start, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tokens := make([]models.TokenScore, 0, limit)
	for rows.Next() {
		var t models.TokenScore
		if err := rows.Scan(&t.CoinName, &t.Score); err != nil {
			continue
		}
		tokens = append(tokens, t)
	}

	return tokens, rows.Err()
}

// GetTokenAggregateInfo 获取某个币种在时间窗口内的聚合信息
// 窗口内没有提及时返回nil
func GetTokenAggregateInfo(coinName string, timeRange string) (*models.TokenAggregateInfo, error) {
	start, ok := timeRangeStart(timeRange)
	if !ok {
		return nil, nil
	}

	info := models.TokenAggregateInfo{CoinName: coinName}
	err := db.DB.QueryRow(`
		SELECT COUNT(id),
			COALESCE(SUM(CASE WHEN sentiment = 'positive' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN sentiment = 'negative' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN sentiment = 'neutral' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(`+sentimentWeightSQL+`), 0)
		FROM coin_tweet_analysis
		WHERE coin_name = ? AND publish_date >= ?
	`, coinName, start).Scan(
		&info.TotalMentions,
		&info.PositiveMentions,
		&info.NegativeMentions,
		&info.NeutralMentions,
		&info.SentimentScore,
	)
	if err != nil {
		return nil, err
	}
	if info.TotalMentions == 0 {
		return nil, nil
	}

	info.AverageSentimentScore = float64(info.SentimentScore) / float64(info.TotalMentions)

	topKeywords, err := getTopKeywords(coinName, start, 10)
	if err != nil {
		return nil, err
	}
	info.TopKeywords = topKeywords

	return &info, nil
}

// getTopKeywords 汇总时间窗口内出现最多的关键词
func getTopKeywords(coinName string, start time.Time, limit int) ([]models.KeywordCount, error) {
	rows, err := db.DB.Query(`
		SELECT keywords
		FROM coin_tweet_analysis
		WHERE coin_name = ? AND publish_date >= ?
	`, coinName, start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var keywordsJSON string
		if err := rows.Scan(&keywordsJSON); err != nil {
			continue
		}

		var keywords []string
		if err := json.Unmarshal([]byte(keywordsJSON), &keywords); err != nil {
			continue
		}
		for _, keyword := range keywords {
			counts[keyword]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]models.KeywordCount, 0, len(counts))
	for keyword, count := range counts {
		result = append(result, models.KeywordCount{Keyword: keyword, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Keyword < result[j].Keyword
	})
	if len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// GetLatestTweetsByCoin 获取某个币种最新的N条推文
func GetLatestTweetsByCoin(coinName string, limit int) ([]models.TweetView, error) {
	rows, err := db.DB.Query(`
		SELECT text, publish_date, sentiment, author, twitter_id
		FROM coin_tweet_analysis
		WHERE coin_name = ?
		ORDER BY publish_date DESC
		LIMIT ?
	`, coinName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tweets := make([]models.TweetView, 0, limit)
	for rows.Next() {
		var view models.TweetView
		var sentiment string
		var author sql.NullString
		if err := rows.Scan(&view.Text, &view.PublishDate, &sentiment, &author, &view.TwitterID); err != nil {
			continue
		}
		view.Sentiment = models.Sentiment(sentiment)
		view.Weight = view.Sentiment.Weight()
		view.Author = author.String
		tweets = append(tweets, view)
	}

	return tweets, rows.Err()
}

// GetHourlySentimentByCoin 获取某个币种最近24小时按小时聚合的情绪数据
func GetHourlySentimentByCoin(coinName string) ([]models.HourlySentiment, error) {
	start := time.Now().UTC().Add(-24 * time.Hour)

	rows, err := db.DB.Query(`
		SELECT DATE_FORMAT(publish_date, '%Y-%m-%d %H:00:00') AS hour,
			COUNT(*),
			AVG(`+sentimentWeightSQL+`),
			SUM(`+sentimentWeightSQL+`)
		FROM coin_tweet_analysis
		WHERE coin_name = ? AND publish_date >= ?
		GROUP BY hour
		ORDER BY hour
	`, coinName, start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]models.HourlySentiment, 0, 24)
	for rows.Next() {
		var hourStr string
		var h models.HourlySentiment
		if err := rows.Scan(&hourStr, &h.Mentions, &h.AverageSentimentScore, &h.SentimentScore); err != nil {
			continue
		}
		if hour, err := time.Parse("2006-01-02 15:04:05", hourStr); err == nil {
			h.Hour = hour
		}
		result = append(result, h)
	}

	return result, rows.Err()
}
