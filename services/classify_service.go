package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"coin_tracker/config"
	"coin_tracker/logger"
	"coin_tracker/models"
)

// classifyPrompt 推文结构化分析提示词，{tweet}会被替换为推文文本
const classifyPrompt = `You are a crypto-savvy analyst.
Given **one tweet** about crypto, extract structured information and return it **exactly** in the JSON schema shown below.

# 1. Identify whether a **specific cryptocurrency** is mentioned
- Look only for explicit tickers ($PEPE, PEPE/USDT, #PEPE) **or** well-known coin names (Bitcoin, Solana, XRP, etc.).
- Ignore generic words like "shitcoin" when no concrete ticker follows.
- If no specific coin is found, leave coin_name an empty string and set is_speculative_coin to **false**.

# 2. Determine the most important coin (coin_name)
- If several $-tickers appear, choose the one that appears **earliest** in the tweet.
- Return only the **uppercase** ticker (strip $, #, or pair suffixes like /USDT).

# 3. Classify is_speculative_coin (boolean)
Set **true** if the selected coin falls in any of these categories:
1. **Memecoin** by reputation (DOGE, PEPE, SHIB, FLOKI, BONK, BART, MOOP, etc.).
2. **Shitcoin** (the tweet explicitly calls the coin a "shitcoin" or similar slur).
3. **Altcoin** - i.e., any smaller-cap or mid-cap crypto that is **not** among the top blue chips (BTC or ETH).
A hashtag like #memecoin alone is **not** enough; decide based on the coin itself.
If no coin or the coin is BTC/ETH (or another blue-chip) -> is_speculative_coin: false.

# 4. Sentiment (positive | negative | neutral)
- Use overall tone.
- Sarcasm: if the surface text is praise but includes cues like "yeah right", "LMAO", treat as **negative**.

# 5. Keywords
- Provide **2-3** concise nouns or noun-phrases that describe the coin's context (e.g., "pump", "creator rewards", "airdrop").
- **Do not include** generic trading boiler-plate: vip, tp, signal, invest, join, trading, forex, pumpfun, pump, TP5/TP10, giveaways, "join telegram", etc.

# 6. Output
Return **only** the following JSON object (no extra keys, no commentary; booleans in lowercase):

{
  "is_speculative_coin": true | false,
  "coin_name": "TICKER" | "",
  "sentiment": "positive" | "negative" | "neutral",
  "keywords": ["kw1", "kw2", "kw3"]
}

# Example

Input tweet:
> I'm seeing a lot of hype around $DOGE lately, is it still a good buy?

Expected JSON:

{
  "is_speculative_coin": true,
  "coin_name": "DOGE",
  "sentiment": "neutral",
  "keywords": ["hype", "buy"]
}

---

### Now analyze this tweet:

{tweet}
`

// 定义OpenAI chat completions请求和响应结构
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// LLMClient OpenAI兼容接口的推文分类客户端
type LLMClient struct {
	client *resty.Client
	model  string
}

// NewLLMClient 创建LLM客户端，瞬时故障自动重试并指数退避
func NewLLMClient(cfg *config.Config) *LLMClient {
	client := resty.New()
	client.SetBaseURL(cfg.OpenAI.BaseURL)
	client.SetTimeout(time.Duration(cfg.OpenAI.TimeoutSec) * time.Second)
	client.SetAuthToken(cfg.OpenAI.APIKey)
	client.SetRetryCount(cfg.Pipeline.MaxAttempts - 1)
	client.SetRetryWaitTime(cfg.BackoffBase())
	client.SetRetryMaxWaitTime(cfg.BackoffMax())
	client.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() >= http.StatusInternalServerError || r.StatusCode() == http.StatusTooManyRequests
	})

	return &LLMClient{
		client: client,
		model:  cfg.OpenAI.Model,
	}
}

// Classify 对单条推文做结构化分析
func (c *LLMClient) Classify(ctx context.Context, text string) (*models.TweetClassification, error) {
	reqBody := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{
				Role:    "user",
				Content: strings.Replace(classifyPrompt, "{tweet}", text, 1),
			},
		},
		Temperature: 0,
	}

	var llmResp chatCompletionResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		SetResult(&llmResp).
		Post("/v1/chat/completions")
	if err != nil {
		logger.Error("LLM请求失败", "error", err)
		return nil, err
	}
	if resp.IsError() {
		// 记录错误响应内容前500字符，避免日志过长
		responsePreview := resp.String()
		if len(responsePreview) > 500 {
			responsePreview = responsePreview[:500] + "..."
		}
		logger.Error("LLM请求返回错误状态", "status", resp.StatusCode(), "response", responsePreview)
		return nil, fmt.Errorf("LLM请求失败: %d", resp.StatusCode())
	}

	if len(llmResp.Choices) == 0 {
		logger.Error("LLM响应中没有内容")
		return nil, fmt.Errorf("LLM响应中没有内容")
	}

	content := llmResp.Choices[0].Message.Content
	logger.Debug("LLM响应",
		"tokens_total", llmResp.Usage.TotalTokens,
		"finish_reason", llmResp.Choices[0].FinishReason)

	// 解析LLM返回的JSON内容
	jsonContent := extractJSONFromText(content)

	var result models.TweetClassification
	if err := json.Unmarshal([]byte(jsonContent), &result); err != nil {
		logger.Error("解析LLM返回的JSON内容失败", "error", err, "content", content)
		return nil, err
	}
	if !result.Sentiment.Valid() {
		logger.Error("LLM返回了非法的情绪取值", "sentiment", result.Sentiment)
		return nil, fmt.Errorf("非法的情绪取值: %q", result.Sentiment)
	}

	return &result, nil
}

// extractJSONFromText 从文本中提取JSON部分
func extractJSONFromText(text string) string {
	// 查找文本中的JSON部分
	startIdx := strings.Index(text, "{")
	endIdx := strings.LastIndex(text, "}")

	if startIdx >= 0 && endIdx > startIdx {
		return text[startIdx : endIdx+1]
	}

	// 如果找不到JSON部分，尝试查找```json和```之间的内容
	startMarker := "```json"
	endMarker := "```"
	startIdx = strings.Index(text, startMarker)
	if startIdx >= 0 {
		startIdx += len(startMarker)
		endIdx = strings.Index(text[startIdx:], endMarker)
		if endIdx > 0 {
			return strings.TrimSpace(text[startIdx : startIdx+endIdx])
		}
	}

	// 如果仍然找不到，返回原始文本
	logger.Warn("无法从文本中提取JSON部分，返回原始文本")
	return text
}

// ClassifyOutcome 单条推文的分类结果，Result与Err二选一
type ClassifyOutcome struct {
	Tweet  models.Tweet
	Result *models.TweetClassification
	Err    error
}

// ClassifyService 分批并发调用LLM对推文做结构化分析
type ClassifyService struct {
	llm       Classifier
	batchSize int
}

// NewClassifyService 创建分类服务
func NewClassifyService(cfg *config.Config) *ClassifyService {
	return &ClassifyService{
		llm:       NewLLMClient(cfg),
		batchSize: cfg.Pipeline.BatchSize,
	}
}

// ClassifyBatch 分批并发分类推文
// 结果按输入顺序逐条配对，单条失败不影响同批其他推文
func (s *ClassifyService) ClassifyBatch(ctx context.Context, tweets []models.Tweet) []ClassifyOutcome {
	outcomes := make([]ClassifyOutcome, len(tweets))

	batchSize := s.batchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	totalBatches := (len(tweets) + batchSize - 1) / batchSize
	for start := 0; start < len(tweets); start += batchSize {
		end := start + batchSize
		if end > len(tweets) {
			end = len(tweets)
		}
		batch := tweets[start:end]
		logger.Info("分析推文批次", "batch", start/batchSize+1, "total_batches", totalBatches, "size", len(batch))

		var wg sync.WaitGroup
		for offset, tweet := range batch {
			wg.Add(1)
			go func(idx int, tweet models.Tweet) {
				defer wg.Done()

				text := strings.ReplaceAll(tweet.Text, "\n", " ")
				result, err := s.llm.Classify(ctx, text)
				outcomes[idx] = ClassifyOutcome{Tweet: tweet, Result: result, Err: err}
			}(start+offset, tweet)
		}
		wg.Wait()
	}

	return outcomes
}
