package models

import (
	"encoding/json"
	"time"
)

// RawOwner ScrapeStorm返回的推文作者原始记录
// 必填字段用指针表示，便于识别缺失字段
type RawOwner struct {
	CreatedAt        *string `json:"created_at"`
	Verified         *bool   `json:"verified"`
	IsBlueVerified   *bool   `json:"is_blue_verified"`
	FollowersCount   *int    `json:"followers_count"`
	FriendsCount     *int    `json:"friends_count"`
	StatusesCount    *int    `json:"statuses_count"`
	ScreenName       *string `json:"screen_name"`
	ProfileImageURL  *string `json:"profile_image_url"`
	ProfileBannerURL *string `json:"profile_banner_url"`
}

// RawTweet ScrapeStorm返回的推文原始记录，仅在一次采集流程内存在
type RawTweet struct {
	ID           *int64            `json:"id"`
	Description  *string           `json:"description"`
	Owner        *RawOwner         `json:"owner"`
	CreatedAt    *string           `json:"created_at"`
	ViewCount    int               `json:"view_count"`
	LikedCount   int               `json:"liked_count"`
	ShareCount   int               `json:"share_count"`
	CommentCount int               `json:"comment_count"`
	RetweetCount int               `json:"retweet_count"`
	Contents     []json.RawMessage `json:"contents"`
}

// TwitterUser 归一化后的推文作者画像，仅用于计算账号可信度，不落库
type TwitterUser struct {
	CreatedAt      time.Time
	IsVerified     bool
	IsBlueVerified bool
	FollowersCount int
	FriendsCount   int
	StatusesCount  int
	HasPhoto       bool
	HasBanner      bool
	Name           string
}

// Tweet 归一化后的推文，生成后不可变
type Tweet struct {
	ID            string
	Text          string
	Author        TwitterUser
	CreatedAt     time.Time
	Views         int
	Likes         int
	Shares        int
	Comments      int
	Retweets      int
	HasAttachment bool
	TrustScore    float64 // 账号可信度 0-10，分数越高越可信
}
