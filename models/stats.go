package models

import "time"

// TokenScore 某个币种的情绪得分
type TokenScore struct {
	CoinName string  `json:"coin_name"`
	Score    float64 `json:"score"`
}

// KeywordCount 关键词出现次数
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// TokenAggregateInfo 某个币种在时间窗口内的聚合信息
type TokenAggregateInfo struct {
	CoinName              string         `json:"coin_name"`
	TotalMentions         int            `json:"total_mentions"`
	PositiveMentions      int            `json:"positive_mentions"`
	NegativeMentions      int            `json:"negative_mentions"`
	NeutralMentions       int            `json:"neutral_mentions"`
	SentimentScore        int            `json:"sentiment_score"`
	AverageSentimentScore float64        `json:"average_sentiment_score"`
	TopKeywords           []KeywordCount `json:"top_keywords"`
}

// TweetView API返回的推文视图
type TweetView struct {
	Text        string    `json:"text"`
	PublishDate time.Time `json:"publish_date"`
	Sentiment   Sentiment `json:"sentiment"`
	Weight      int       `json:"weight"`
	Author      string    `json:"author"`
	TwitterID   string    `json:"twitter_id"`
}

// HourlySentiment 按小时聚合的情绪数据
type HourlySentiment struct {
	Hour                  time.Time `json:"hour"`
	Mentions              int       `json:"mentions"`
	AverageSentimentScore float64   `json:"average_sentiment_score"`
	SentimentScore        int       `json:"sentiment_score"`
}
