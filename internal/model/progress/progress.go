package progress

import "time"

// ModeNetwork 是来电模拟器在进度记录中的模式名。
const ModeNetwork = "network"

// Attempt records one finished challenge.
type Attempt struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID        string    `gorm:"size:64;index" json:"playerId"`
	Mode            string    `gorm:"size:16;index" json:"mode"`
	SessionID       string    `gorm:"size:64;uniqueIndex" json:"sessionId"`
	ScenarioID      string    `gorm:"size:64" json:"scenarioId"`
	CallType        string    `gorm:"size:16" json:"callType"`
	Success         bool      `json:"success"`
	PointsEarned    int       `json:"pointsEarned"`
	Accuracy        int       `json:"accuracy"`
	DurationSeconds int       `json:"durationSeconds"`
	Declined        bool      `json:"declined"`
	Disclosed       bool      `json:"disclosed"`
	CreatedAt       time.Time `json:"createdAt"`
}

// GameState is the opaque client-side progress blob saved per player.
type GameState struct {
	PlayerID  string    `gorm:"primaryKey;size:64" json:"playerId"`
	Data      string    `gorm:"type:text" json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Summary aggregates a player's attempts.
type Summary struct {
	PlayerID         string `json:"playerId"`
	TotalAttempts    int    `json:"totalAttempts"`
	CorrectAttempts  int    `json:"correctAttempts"`
	TotalScore       int    `json:"totalScore"`
	Accuracy         int    `json:"accuracy"`
	CurrentStreak    int    `json:"currentStreak"`
	BestStreak       int    `json:"bestStreak"`
	NetworkCompleted int    `json:"networkCompleted"`
}
