package services

import (
	"fmt"
	"strconv"
	"time"

	"coin_tracker/logger"
	"coin_tracker/models"
)

// SpamScoreThreshold 账号可信度低于该值视为垃圾账号
const SpamScoreThreshold = 4

// MalformedRecordError 原始推文记录缺少必填字段
type MalformedRecordError struct {
	Field string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("推文记录缺少必填字段: %s", e.Field)
}

// scoreRule 单条账号打分规则，按顺序折叠累加
type scoreRule struct {
	name  string
	apply func(u models.TwitterUser, ageDays int) float64
}

// 账号打分规则表。规则只依赖账号画像本身，顺序即求值顺序。
var accountScoreRules = []scoreRule{
	{"account_age", func(u models.TwitterUser, ageDays int) float64 {
		// 年龄分段互斥，按优先级取第一个命中的
		switch {
		case ageDays < 7:
			return -5
		case ageDays < 30:
			return -3
		case ageDays < 90:
			return -2
		case ageDays > 365:
			return 1
		}
		return 0
	}},
	{"verified", func(u models.TwitterUser, _ int) float64 {
		if u.IsVerified {
			return 10
		}
		return 0
	}},
	{"blue_verified", func(u models.TwitterUser, _ int) float64 {
		if u.IsBlueVerified {
			return 2
		}
		return 0
	}},
	{"followers", func(u models.TwitterUser, _ int) float64 {
		switch {
		case u.FollowersCount >= 500:
			return 2
		case u.FollowersCount >= 50:
			return 1
		case u.FollowersCount <= 10:
			return -1
		}
		return 0
	}},
	{"no_friends", func(u models.TwitterUser, _ int) float64 {
		if u.FriendsCount == 0 {
			return -1
		}
		return 0
	}},
	{"no_followers", func(u models.TwitterUser, _ int) float64 {
		if u.FollowersCount == 0 {
			return -1
		}
		return 0
	}},
	{"follower_ratio", func(u models.TwitterUser, _ int) float64 {
		if u.FriendsCount > 0 && u.FollowersCount > 0 {
			ratio := float64(u.FollowersCount) / float64(u.FriendsCount)
			if ratio < 0.2 {
				return -1
			}
			if ratio > 5 {
				return 1
			}
		}
		return 0
	}},
	{"statuses", func(u models.TwitterUser, _ int) float64 {
		switch {
		case u.StatusesCount >= 50:
			return 1
		case u.StatusesCount <= 10:
			return -1
		}
		return 0
	}},
	{"no_photo", func(u models.TwitterUser, _ int) float64 {
		if !u.HasPhoto {
			return -1
		}
		return 0
	}},
	{"no_banner", func(u models.TwitterUser, _ int) float64 {
		if !u.HasBanner {
			return -1
		}
		return 0
	}},
}

// AccountScore 计算账号可信度，纯函数，结果限制在[0, 10]
func AccountScore(u models.TwitterUser, now time.Time) float64 {
	ageDays := int(now.Sub(u.CreatedAt).Hours() / 24)

	score := 0.0
	for _, rule := range accountScoreRules {
		score += rule.apply(u, ageDays)
	}

	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}

// IsSpamScore 可信度是否落在垃圾账号区间
func IsSpamScore(score float64) bool {
	return score < SpamScoreThreshold
}

// FilterService 推文归一化与垃圾账号过滤
type FilterService struct {
	now func() time.Time
}

// NewFilterService 创建过滤服务
func NewFilterService() *FilterService {
	return &FilterService{now: time.Now}
}

// Normalize 将原始推文归一化，缺少必填字段时返回MalformedRecordError
func (s *FilterService) Normalize(raw models.RawTweet) (models.Tweet, error) {
	switch {
	case raw.ID == nil:
		return models.Tweet{}, &MalformedRecordError{Field: "id"}
	case raw.Description == nil:
		return models.Tweet{}, &MalformedRecordError{Field: "description"}
	case raw.CreatedAt == nil:
		return models.Tweet{}, &MalformedRecordError{Field: "created_at"}
	case raw.Owner == nil:
		return models.Tweet{}, &MalformedRecordError{Field: "owner"}
	}

	author, err := normalizeOwner(raw.Owner)
	if err != nil {
		return models.Tweet{}, err
	}

	createdAt, err := parseTweetTime(*raw.CreatedAt)
	if err != nil {
		return models.Tweet{}, &MalformedRecordError{Field: "created_at"}
	}

	return models.Tweet{
		ID:            strconv.FormatInt(*raw.ID, 10),
		Text:          *raw.Description,
		Author:        author,
		CreatedAt:     createdAt,
		Views:         raw.ViewCount,
		Likes:         raw.LikedCount,
		Shares:        raw.ShareCount,
		Comments:      raw.CommentCount,
		Retweets:      raw.RetweetCount,
		HasAttachment: len(raw.Contents) > 0,
		TrustScore:    AccountScore(author, s.now()),
	}, nil
}

func normalizeOwner(owner *models.RawOwner) (models.TwitterUser, error) {
	switch {
	case owner.CreatedAt == nil:
		return models.TwitterUser{}, &MalformedRecordError{Field: "owner.created_at"}
	case owner.Verified == nil:
		return models.TwitterUser{}, &MalformedRecordError{Field: "owner.verified"}
	case owner.IsBlueVerified == nil:
		return models.TwitterUser{}, &MalformedRecordError{Field: "owner.is_blue_verified"}
	case owner.FollowersCount == nil:
		return models.TwitterUser{}, &MalformedRecordError{Field: "owner.followers_count"}
	case owner.FriendsCount == nil:
		return models.TwitterUser{}, &MalformedRecordError{Field: "owner.friends_count"}
	case owner.StatusesCount == nil:
		return models.TwitterUser{}, &MalformedRecordError{Field: "owner.statuses_count"}
	case owner.ScreenName == nil:
		return models.TwitterUser{}, &MalformedRecordError{Field: "owner.screen_name"}
	}

	createdAt, err := parseTweetTime(*owner.CreatedAt)
	if err != nil {
		return models.TwitterUser{}, &MalformedRecordError{Field: "owner.created_at"}
	}

	return models.TwitterUser{
		CreatedAt:      createdAt,
		IsVerified:     *owner.Verified,
		IsBlueVerified: *owner.IsBlueVerified,
		FollowersCount: *owner.FollowersCount,
		FriendsCount:   *owner.FriendsCount,
		StatusesCount:  *owner.StatusesCount,
		HasPhoto:       owner.ProfileImageURL != nil,
		HasBanner:      owner.ProfileBannerURL != nil,
		Name:           *owner.ScreenName,
	}, nil
}

// parseTweetTime 解析ScrapeStorm返回的时间字符串
func parseTweetTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	// 部分记录不带时区信息，按UTC处理
	return time.Parse("2006-01-02T15:04:05", value)
}

// FilterTweets 同批去重 → 归一化 → 剔除垃圾账号
// 重复ID保留首次出现的记录，坏记录和垃圾账号只影响自身
func (s *FilterService) FilterTweets(raws []models.RawTweet) []models.Tweet {
	deduped := dedupeByID(raws)

	tweets := make([]models.Tweet, 0, len(deduped))
	for _, raw := range deduped {
		tweet, err := s.Normalize(raw)
		if err != nil {
			logger.Warn("跳过格式异常的推文记录", "error", err)
			continue
		}
		if IsSpamScore(tweet.TrustScore) {
			continue
		}
		tweets = append(tweets, tweet)
	}

	logger.Info("垃圾账号过滤完成", "in", len(raws), "deduped", len(deduped), "out", len(tweets))
	return tweets
}

// dedupeByID 同一批次内按推文ID去重，保留首次出现
func dedupeByID(raws []models.RawTweet) []models.RawTweet {
	seen := make(map[int64]bool, len(raws))
	out := make([]models.RawTweet, 0, len(raws))
	for _, raw := range raws {
		if raw.ID != nil {
			if seen[*raw.ID] {
				continue
			}
			seen[*raw.ID] = true
		}
		out = append(out, raw)
	}
	return out
}

// FilterNewTweets 剔除已入库的推文，保持输入顺序
func FilterNewTweets(tweets []models.Tweet, existingIDs map[string]bool) []models.Tweet {
	out := make([]models.Tweet, 0, len(tweets))
	for _, tweet := range tweets {
		if existingIDs[tweet.ID] {
			continue
		}
		out = append(out, tweet)
	}
	return out
}
