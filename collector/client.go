package collector

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"coin_tracker/config"
	"coin_tracker/logger"
	"coin_tracker/models"
)

// SearchResponse ScrapeStorm推文搜索接口的响应结构
type SearchResponse struct {
	Data struct {
		Entries []models.RawTweet `json:"entries"`
	} `json:"data"`
	Pagination struct {
		NextCursor string `json:"next_cursor"`
	} `json:"pagination"`
}

// NewsSearchResponse ScrapeStorm Google News搜索接口的响应结构
type NewsSearchResponse struct {
	Data struct {
		Entries []NewsEntry `json:"entries"`
	} `json:"data"`
	Pagination struct {
		NextCursor string `json:"next_cursor"`
	} `json:"pagination"`
}

// NewsEntry Google News搜索结果中的一条新闻
type NewsEntry struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
	Snippet     string `json:"snippet"`
}

// Client ScrapeStorm API客户端
type Client struct {
	client *resty.Client
	token  string
	tag    string
}

// NewClient 创建ScrapeStorm客户端，瞬时故障自动重试并指数退避
func NewClient(cfg *config.Config) *Client {
	client := resty.New()
	client.SetBaseURL(cfg.ScrapeStorm.BaseURL)
	client.SetTimeout(time.Duration(cfg.ScrapeStorm.TimeoutSec) * time.Second)
	client.SetRetryCount(cfg.Pipeline.MaxAttempts - 1)
	client.SetRetryWaitTime(cfg.BackoffBase())
	client.SetRetryMaxWaitTime(cfg.BackoffMax())
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		// 服务端错误和限流视为瞬时故障
		return r.StatusCode() >= http.StatusInternalServerError || r.StatusCode() == http.StatusTooManyRequests
	})

	return &Client{
		client: client,
		token:  cfg.ScrapeStorm.APIKey,
		tag:    cfg.ScrapeStorm.Tag,
	}
}

// SearchTweetsPage 按关键词搜索单页推文
// tag取值top或latest，cursor为空表示第一页
func (c *Client) SearchTweetsPage(ctx context.Context, query string, tag string, cursor string) (*SearchResponse, error) {
	params := map[string]string{
		"token": c.token,
		"query": query,
		"tag":   tag,
	}
	if cursor != "" {
		params["cursor"] = cursor
	}

	var result SearchResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&result).
		Get("/twitter.com/api/v2.1/search_tweets_by_query/")
	if err != nil {
		logger.Error("搜索推文请求失败", "query", query, "error", err)
		return nil, err
	}
	if resp.IsError() {
		logger.Error("搜索推文返回错误状态", "query", query, "status", resp.StatusCode())
		return nil, fmt.Errorf("搜索推文返回错误状态: %d", resp.StatusCode())
	}

	return &result, nil
}

// SearchTweets 按配置的默认tag搜索推文并翻页，翻页数达到numPages或没有下一页时停止
func (c *Client) SearchTweets(ctx context.Context, query string, numPages int) ([]models.RawTweet, error) {
	var tweets []models.RawTweet
	cursor := ""
	for page := 0; page < numPages; page++ {
		resp, err := c.SearchTweetsPage(ctx, query, c.tag, cursor)
		if err != nil {
			return nil, err
		}
		tweets = append(tweets, resp.Data.Entries...)

		cursor = resp.Pagination.NextCursor
		if cursor == "" {
			break
		}
	}
	return tweets, nil
}

// SearchGoogleNews 按关键词搜索Google News
// dateRange取值: anytime, 1h, 1d, 7d, 1y
func (c *Client) SearchGoogleNews(ctx context.Context, query string, dateRange string) (*NewsSearchResponse, error) {
	if dateRange == "" {
		dateRange = "anytime"
	}
	params := map[string]string{
		"token":      c.token,
		"query":      query,
		"date_range": dateRange,
	}

	var result NewsSearchResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&result).
		Get("/google.com/api/v2.1/search_google_news/")
	if err != nil {
		logger.Error("搜索新闻请求失败", "query", query, "error", err)
		return nil, err
	}
	if resp.IsError() {
		logger.Error("搜索新闻返回错误状态", "query", query, "status", resp.StatusCode())
		return nil, fmt.Errorf("搜索新闻返回错误状态: %d", resp.StatusCode())
	}

	return &result, nil
}
