package repository

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"coin_tracker/db"
	"coin_tracker/models"
)

// AnalysisRepo coin_tweet_analysis表的读写
type AnalysisRepo struct{}

// NewAnalysisRepo 创建分析结果仓库
func NewAnalysisRepo() *AnalysisRepo {
	return &AnalysisRepo{}
}

// GetExistingTweetIDs 读取所有已入库的推文ID
func (r *AnalysisRepo) GetExistingTweetIDs() (map[string]bool, error) {
	rows, err := db.DB.Query(`SELECT twitter_id FROM coin_tweet_analysis`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		ids[id] = true
	}

	return ids, rows.Err()
}

// BulkInsertAnalyses 单事务批量写入分析结果
// twitter_id已存在的行由INSERT IGNORE静默跳过，返回实际插入行数
// 任何错误都会回滚整批，空输入直接返回0且不访问数据库
func (r *AnalysisRepo) BulkInsertAnalyses(analyses []models.CoinTweetAnalysis) (int64, error) {
	if len(analyses) == 0 {
		return 0, nil
	}

	placeholders := make([]string, 0, len(analyses))
	args := make([]interface{}, 0, len(analyses)*8)
	for _, a := range analyses {
		keywordsJSON, err := json.Marshal(a.Keywords)
		if err != nil {
			return 0, err
		}

		id := a.ID
		if id == "" {
			id = uuid.NewString()
		}

		placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, id, a.TwitterID, a.CoinName, a.PublishDate, string(a.Sentiment), string(keywordsJSON), a.Text, a.Author)
	}

	query := `
		INSERT IGNORE INTO coin_tweet_analysis
			(id, twitter_id, coin_name, publish_date, sentiment, keywords, text, author)
		VALUES ` + strings.Join(placeholders, ", ")

	tx, err := db.DB.Begin()
	if err != nil {
		return 0, err
	}

	result, err := tx.Exec(query, args...)
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	return inserted, nil
}
