package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"coin_tracker/config"
	"coin_tracker/models"
)

// fakeSearcher 按关键词返回预设抓取结果
type fakeSearcher struct {
	results map[string][]models.RawTweet
	errs    map[string]error
	queries []string
}

func (f *fakeSearcher) SearchTweets(_ context.Context, query string, _ int) ([]models.RawTweet, error) {
	f.queries = append(f.queries, query)
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	return f.results[query], nil
}

// fakeStore 用内存map模拟twitter_id唯一键的写入语义
// staleRead开启时读取返回空集合，模拟去重读与写入之间的竞态
type fakeStore struct {
	existing       map[string]bool
	staleRead      bool
	readErr        error
	writeErr       error
	readCalls      int
	writeCalls     int
	insertedCounts []int64
	lastInserts    []models.CoinTweetAnalysis
}

func newFakeStore() *fakeStore {
	return &fakeStore{existing: map[string]bool{}}
}

func (f *fakeStore) GetExistingTweetIDs() (map[string]bool, error) {
	f.readCalls++
	if f.readErr != nil {
		return nil, f.readErr
	}
	if f.staleRead {
		return map[string]bool{}, nil
	}
	ids := make(map[string]bool, len(f.existing))
	for id := range f.existing {
		ids[id] = true
	}
	return ids, nil
}

func (f *fakeStore) BulkInsertAnalyses(rows []models.CoinTweetAnalysis) (int64, error) {
	f.writeCalls++
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	var inserted int64
	f.lastInserts = nil
	for _, row := range rows {
		if f.existing[row.TwitterID] {
			continue
		}
		f.existing[row.TwitterID] = true
		f.lastInserts = append(f.lastInserts, row)
		inserted++
	}
	f.insertedCounts = append(f.insertedCounts, inserted)
	return inserted, nil
}

func pipelineConfig(queries ...string) *config.Config {
	cfg := &config.Config{}
	cfg.Pipeline.SearchQueries = queries
	cfg.Pipeline.BatchSize = 10
	cfg.ScrapeStorm.NumPages = 1
	return cfg
}

func newPipeline(cfg *config.Config, searcher Searcher, classify func(string) (*models.TweetClassification, error), store AnalysisStore) *AnalysisService {
	classifier := &ClassifyService{
		llm:       &fakeClassifier{classify: classify},
		batchSize: cfg.Pipeline.BatchSize,
	}
	return NewAnalysisService(cfg, searcher, classifier, store)
}

// spamOwner 得2分的账号: 注册超一年(+1)，状态数60(+1)，其余规则不命中
func spamOwner() *models.RawOwner {
	created := time.Now().Add(-400 * 24 * time.Hour)
	return &models.RawOwner{
		CreatedAt:        strPtr(created.Format(time.RFC3339)),
		Verified:         boolPtr(false),
		IsBlueVerified:   boolPtr(false),
		FollowersCount:   intPtr(20),
		FriendsCount:     intPtr(10),
		StatusesCount:    intPtr(60),
		ScreenName:       strPtr("shiller"),
		ProfileImageURL:  strPtr("https://example.com/p.jpg"),
		ProfileBannerURL: strPtr("https://example.com/b.jpg"),
	}
}

func trustedOwner() *models.RawOwner {
	return rawOwner(time.Now().Add(-400 * 24 * time.Hour))
}

func TestRunIngestionCycleEndToEnd(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.RawTweet{
		"meme coin": {
			rawTweet(1, "DOGE to the moon", trustedOwner()),
			rawTweet(2, "buy my coin now", spamOwner()),
			rawTweet(3, "nice weather today", trustedOwner()),
		},
	}}
	store := newFakeStore()

	svc := newPipeline(pipelineConfig("meme coin"), searcher, func(text string) (*models.TweetClassification, error) {
		if text == "DOGE to the moon" {
			return &models.TweetClassification{
				IsSpeculativeCoin: true,
				CoinName:          "DOGE",
				Sentiment:         models.SentimentPositive,
				Keywords:          []string{"moon"},
			}, nil
		}
		return &models.TweetClassification{IsSpeculativeCoin: false, Sentiment: models.SentimentNeutral}, nil
	}, store)

	if err := svc.RunIngestionCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.lastInserts) != 1 {
		t.Fatalf("expected 1 inserted row, got %d", len(store.lastInserts))
	}
	row := store.lastInserts[0]
	if row.TwitterID != "1" || row.CoinName != "DOGE" {
		t.Fatalf("unexpected row inserted: %+v", row)
	}
	if row.Sentiment != models.SentimentPositive || row.Author != "analyst" {
		t.Fatalf("row fields not carried over: %+v", row)
	}
}

func TestRunIngestionCycleIsIdempotent(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.RawTweet{
		"meme coin": {rawTweet(1, "DOGE to the moon", trustedOwner())},
	}}
	store := newFakeStore()

	svc := newPipeline(pipelineConfig("meme coin"), searcher, func(string) (*models.TweetClassification, error) {
		return &models.TweetClassification{
			IsSpeculativeCoin: true,
			CoinName:          "DOGE",
			Sentiment:         models.SentimentPositive,
		}, nil
	}, store)

	for i := 0; i < 2; i++ {
		if err := svc.RunIngestionCycle(context.Background()); err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
	}

	if len(store.existing) != 1 {
		t.Fatalf("expected exactly 1 stored row after two runs, got %d", len(store.existing))
	}
	// 第二轮去重后没有新推文，不应再写库
	if store.writeCalls != 1 {
		t.Fatalf("expected 1 write call, got %d", store.writeCalls)
	}
}

// 去重读到过期快照时，重复行必须由存储层的唯一键兜住
func TestRunIngestionCycleUniqueKeyBacksStaleRead(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.RawTweet{
		"meme coin": {rawTweet(1, "DOGE to the moon", trustedOwner())},
	}}
	store := newFakeStore()
	store.existing["1"] = true
	store.staleRead = true

	svc := newPipeline(pipelineConfig("meme coin"), searcher, func(string) (*models.TweetClassification, error) {
		return &models.TweetClassification{
			IsSpeculativeCoin: true,
			CoinName:          "DOGE",
			Sentiment:         models.SentimentPositive,
		}, nil
	}, store)

	if err := svc.RunIngestionCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.writeCalls != 1 {
		t.Fatalf("the duplicate should reach the store, got %d write calls", store.writeCalls)
	}
	if len(store.insertedCounts) != 1 || store.insertedCounts[0] != 0 {
		t.Fatalf("duplicate row should be skipped with 0 inserted, got %v", store.insertedCounts)
	}
	if len(store.existing) != 1 {
		t.Fatalf("expected no duplicate row, got %d stored rows", len(store.existing))
	}
}

func TestRunIngestionCycleNothingFetched(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.RawTweet{}}
	store := newFakeStore()

	svc := newPipeline(pipelineConfig("meme coin"), searcher, func(string) (*models.TweetClassification, error) {
		t.Fatal("classifier should not be called")
		return nil, nil
	}, store)

	if err := svc.RunIngestionCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.readCalls != 0 || store.writeCalls != 0 {
		t.Fatalf("store should not be contacted, got reads=%d writes=%d", store.readCalls, store.writeCalls)
	}
}

func TestRunIngestionCycleAllExisting(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.RawTweet{
		"meme coin": {rawTweet(1, "DOGE to the moon", trustedOwner())},
	}}
	store := newFakeStore()
	store.existing["1"] = true

	svc := newPipeline(pipelineConfig("meme coin"), searcher, func(string) (*models.TweetClassification, error) {
		t.Fatal("classifier should not be called")
		return nil, nil
	}, store)

	if err := svc.RunIngestionCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.writeCalls != 0 {
		t.Fatalf("expected no write call, got %d", store.writeCalls)
	}
}

func TestRunIngestionCycleQueryFailureIsolated(t *testing.T) {
	searcher := &fakeSearcher{
		results: map[string][]models.RawTweet{
			"good": {rawTweet(1, "DOGE to the moon", trustedOwner())},
		},
		errs: map[string]error{"bad": errors.New("upstream down")},
	}
	store := newFakeStore()

	svc := newPipeline(pipelineConfig("bad", "good"), searcher, func(string) (*models.TweetClassification, error) {
		return &models.TweetClassification{
			IsSpeculativeCoin: true,
			CoinName:          "DOGE",
			Sentiment:         models.SentimentNeutral,
		}, nil
	}, store)

	if err := svc.RunIngestionCycle(context.Background()); err != nil {
		t.Fatalf("one failing query should not fail the cycle: %v", err)
	}
	if len(store.existing) != 1 {
		t.Fatalf("tweets from the healthy query should be stored, got %d", len(store.existing))
	}
	if len(searcher.queries) != 2 {
		t.Fatalf("all queries should be attempted, got %v", searcher.queries)
	}
}

func TestRunIngestionCycleStoreReadError(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.RawTweet{
		"meme coin": {rawTweet(1, "DOGE to the moon", trustedOwner())},
	}}
	store := newFakeStore()
	store.readErr = errors.New("connection lost")

	svc := newPipeline(pipelineConfig("meme coin"), searcher, func(string) (*models.TweetClassification, error) {
		t.Fatal("classifier should not be called")
		return nil, nil
	}, store)

	if err := svc.RunIngestionCycle(context.Background()); !errors.Is(err, store.readErr) {
		t.Fatalf("expected read error to propagate, got %v", err)
	}
}

func TestRunIngestionCycleStoreWriteError(t *testing.T) {
	searcher := &fakeSearcher{results: map[string][]models.RawTweet{
		"meme coin": {rawTweet(1, "DOGE to the moon", trustedOwner())},
	}}
	store := newFakeStore()
	store.writeErr = errors.New("deadlock")

	svc := newPipeline(pipelineConfig("meme coin"), searcher, func(string) (*models.TweetClassification, error) {
		return &models.TweetClassification{
			IsSpeculativeCoin: true,
			CoinName:          "DOGE",
			Sentiment:         models.SentimentNeutral,
		}, nil
	}, store)

	if err := svc.RunIngestionCycle(context.Background()); !errors.Is(err, store.writeErr) {
		t.Fatalf("expected write error to propagate, got %v", err)
	}
}

func TestBuildAnalysisRowsAcceptance(t *testing.T) {
	published := time.Date(2025, 5, 30, 10, 0, 0, 0, time.UTC)
	outcomes := []ClassifyOutcome{
		{
			Tweet: models.Tweet{ID: "1", Text: "t1", CreatedAt: published, Author: models.TwitterUser{Name: "a"}},
			Err:   errors.New("timeout"),
		},
		{
			Tweet:  models.Tweet{ID: "2", Text: "t2", CreatedAt: published},
			Result: &models.TweetClassification{IsSpeculativeCoin: false, Sentiment: models.SentimentNeutral},
		},
		{
			Tweet:  models.Tweet{ID: "3", Text: "t3", CreatedAt: published},
			Result: &models.TweetClassification{IsSpeculativeCoin: true, CoinName: "", Sentiment: models.SentimentNeutral},
		},
		{
			Tweet: models.Tweet{ID: "4", Text: "t4", CreatedAt: published, Author: models.TwitterUser{Name: "a"}},
			Result: &models.TweetClassification{
				IsSpeculativeCoin: true,
				CoinName:          "PEPE",
				Sentiment:         models.SentimentNegative,
				Keywords:          []string{"dump"},
			},
		},
	}

	rows := buildAnalysisRows(outcomes)
	if len(rows) != 1 {
		t.Fatalf("expected 1 accepted row, got %d", len(rows))
	}
	row := rows[0]
	if row.TwitterID != "4" || row.CoinName != "PEPE" || row.Sentiment != models.SentimentNegative {
		t.Fatalf("unexpected row: %+v", row)
	}
	if !row.PublishDate.Equal(published) || row.Author != "a" {
		t.Fatalf("tweet fields not mapped: %+v", row)
	}
}
