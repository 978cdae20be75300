package models

import "time"

// Sentiment 推文情绪分类
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Valid 判断是否为合法的情绪取值
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// Weight 情绪对应的数值权重: positive=1, negative=-1, neutral=0
func (s Sentiment) Weight() int {
	switch s {
	case SentimentPositive:
		return 1
	case SentimentNegative:
		return -1
	}
	return 0
}

// TweetClassification LLM对单条推文的结构化分析结果
type TweetClassification struct {
	IsSpeculativeCoin bool      `json:"is_speculative_coin"`
	CoinName          string    `json:"coin_name"`
	Sentiment         Sentiment `json:"sentiment"`
	Keywords          []string  `json:"keywords"`
}

// Accepted 只有明确提到投机币种的结果才进入持久化
func (c *TweetClassification) Accepted() bool {
	return c != nil && c.IsSpeculativeCoin && c.CoinName != ""
}

// CoinTweetAnalysis coin_tweet_analysis表的一行分析结果
type CoinTweetAnalysis struct {
	ID          string    `json:"id"`
	TwitterID   string    `json:"twitter_id"`
	CoinName    string    `json:"coin_name"`
	PublishDate time.Time `json:"publish_date"`
	Sentiment   Sentiment `json:"sentiment"`
	Keywords    []string  `json:"keywords"`
	Text        string    `json:"text"`
	Author      string    `json:"author"`
	CreatedAt   time.Time `json:"created_at"`
}
