package domain

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Quiz statuses
const (
	QuizOpen    = "open"
	QuizSettled = "settled"
)

// Quiz settlement methods
const (
	QuizTopScore = "top_score" // Whole pot to the single best scorer
	QuizSplit    = "split"     // Pot divided among all max scorers
)

// Quiz is a prize competition: the creator escrows a prize, participants pay
// an entry fee into the pot and answer the questions before the deadline.
type Quiz struct {
	ID         uint              `gorm:"primaryKey"`          // Primary key
	CreatorID  uint              `gorm:"index;not null"`      // User who created the quiz
	Title      string            `gorm:"size:120;not null"`   // Quiz title
	EntryFee   decimal.Decimal   `gorm:"type:decimal(20,2)"`  // Fee each participant pays (may be zero)
	Prize      decimal.Decimal   `gorm:"type:decimal(20,2)"`  // Prize escrowed from the creator
	Method     string            `gorm:"size:12;default:top_score"` // top_score or split
	Deadline   int64             `gorm:"index;not null"`      // Submission boundary, unix millis
	Status     string            `gorm:"size:12;index;default:open"` // open or settled
	Questions  []QuizQuestion    `gorm:"foreignKey:QuizID"`   // Ordered questions
	CreatedAt  int64             `gorm:"autoCreateTime:milli"` // Timestamp of creation in milliseconds
}

// QuizQuestion holds one prompt, its option list and the correct option index.
type QuizQuestion struct {
	ID       uint           `gorm:"primaryKey"`        // Primary key
	QuizID   uint           `gorm:"index"`             // Owning quiz
	Position int            `gorm:"not null"`          // Display order
	Prompt   string         `gorm:"size:255;not null"` // Question text
	Options  datatypes.JSON `gorm:"not null"`          // JSON array of option strings
	Correct  int            `gorm:"not null"`          // Index into Options; never sent to participants
}

// QuizParticipant is one user's entry and (once submitted) graded answers.
type QuizParticipant struct {
	ID          uint           `gorm:"primaryKey"`                       // Primary key
	QuizID      uint           `gorm:"index:idx_quiz_user,unique"`       // Quiz joined
	UserID      uint           `gorm:"index:idx_quiz_user,unique"`       // Participant; one entry per user per quiz
	Answers     datatypes.JSON // JSON array of chosen option indexes; null until submitted
	Score       int            `gorm:"default:0"`            // Number of correct answers
	SubmittedAt int64          `gorm:"default:0"`            // Unix millis of submission; 0 = not submitted
	CreatedAt   int64          `gorm:"autoCreateTime:milli"` // Timestamp of creation in milliseconds
}
