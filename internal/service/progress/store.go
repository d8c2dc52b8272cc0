package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	model "github.com/zhouzirui/swipesafe/backend/internal/model/progress"
)

var (
	ErrPlayerRequired = errors.New("player id is required")
	ErrInvalidState   = errors.New("game state must be a JSON object")
	ErrStateNotFound  = errors.New("game state not found")
)

// AllModels returns the tables managed by the progress store.
func AllModels() []interface{} {
	return []interface{}{
		&model.Attempt{},
		&model.GameState{},
	}
}

// Store persists finished attempts and client game-state snapshots.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open 打开 sqlite 数据库并迁移表结构。dsn 可以是文件路径或 ":memory:"。
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("progress: open %s: %w", dsn, err)
	}
	// sqlite 只允许单写连接；":memory:" 下多连接还会各自拿到独立的库。
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("progress: open %s: %w", dsn, err)
	}
	sqlDB.SetMaxOpenConns(1)
	return NewStore(db)
}

// NewStore wraps an existing connection and migrates the progress tables.
func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("progress: auto-migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordAttempt 写入一次通话结果。同一 SessionID 只记录一次，重复写入被忽略。
func (s *Store) RecordAttempt(ctx context.Context, attempt model.Attempt) error {
	attempt.PlayerID = normalizePlayer(attempt.PlayerID)
	if attempt.Mode == "" {
		attempt.Mode = model.ModeNetwork
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = s.now()
	}
	attempt.ID = 0

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "session_id"}}, DoNothing: true}).
		Create(&attempt)
	if result.Error != nil {
		return fmt.Errorf("progress: record attempt %s: %w", attempt.SessionID, result.Error)
	}
	return nil
}

// Attempts returns a player's attempts, oldest first.
func (s *Store) Attempts(ctx context.Context, playerID string) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := s.db.WithContext(ctx).
		Where("player_id = ?", normalizePlayer(playerID)).
		Order("created_at ASC, id ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("progress: list attempts: %w", err)
	}
	return attempts, nil
}

// Summary 汇总玩家的得分、正确率与连胜。
func (s *Store) Summary(ctx context.Context, playerID string) (model.Summary, error) {
	attempts, err := s.Attempts(ctx, playerID)
	if err != nil {
		return model.Summary{}, err
	}
	return Summarize(normalizePlayer(playerID), attempts), nil
}

// Summarize folds attempts (oldest first) into a summary.
func Summarize(playerID string, attempts []model.Attempt) model.Summary {
	sum := model.Summary{PlayerID: playerID}
	for _, a := range attempts {
		sum.TotalAttempts++
		sum.TotalScore += a.PointsEarned
		if a.Success {
			sum.CorrectAttempts++
			sum.CurrentStreak++
			sum.BestStreak = max(sum.BestStreak, sum.CurrentStreak)
		} else {
			sum.CurrentStreak = 0
		}
		if a.Mode == model.ModeNetwork {
			sum.NetworkCompleted++
		}
	}
	if sum.TotalAttempts > 0 {
		sum.Accuracy = sum.CorrectAttempts * 100 / sum.TotalAttempts
	}
	return sum
}

// SaveGameState 覆盖保存玩家的前端进度快照，data 必须是 JSON 对象。
func (s *Store) SaveGameState(ctx context.Context, playerID string, data json.RawMessage) (model.GameState, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return model.GameState{}, ErrPlayerRequired
	}

	var probe map[string]any
	if err := json.Unmarshal(data, &probe); err != nil || probe == nil {
		return model.GameState{}, ErrInvalidState
	}

	state := model.GameState{PlayerID: playerID, Data: string(data), UpdatedAt: s.now()}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "player_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).
		Create(&state).Error
	if err != nil {
		return model.GameState{}, fmt.Errorf("progress: save game state for %s: %w", playerID, err)
	}
	return state, nil
}

// LoadGameState returns the last snapshot saved for a player.
func (s *Store) LoadGameState(ctx context.Context, playerID string) (model.GameState, error) {
	var state model.GameState
	err := s.db.WithContext(ctx).Where("player_id = ?", strings.TrimSpace(playerID)).First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.GameState{}, ErrStateNotFound
	}
	if err != nil {
		return model.GameState{}, fmt.Errorf("progress: load game state for %s: %w", playerID, err)
	}
	return state, nil
}

func normalizePlayer(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return "anonymous"
	}
	return id
}
