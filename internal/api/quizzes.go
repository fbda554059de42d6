package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"wagerhub/internal/apperror"
	"wagerhub/internal/domain"
	"wagerhub/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// QuizQuestionInput is one question in a create request
type QuizQuestionInput struct {
	Prompt  string   `json:"prompt" binding:"required"`  // Question text
	Options []string `json:"options" binding:"required"` // 2-6 option strings
	Correct int      `json:"correct"`                    // Index of the right option
}

// CreateQuizRequest describes a new quiz
type CreateQuizRequest struct {
	Title     string              `json:"title" binding:"required"`     // Quiz title
	EntryFee  decimal.Decimal     `json:"entry_fee"`                    // Fee per participant, may be zero
	Prize     decimal.Decimal     `json:"prize" binding:"required"`     // Prize escrowed from the creator
	Method    string              `json:"method"`                       // top_score (default) or split
	Deadline  int64               `json:"deadline" binding:"required"`  // Unix millis
	Questions []QuizQuestionInput `json:"questions" binding:"required"` // At least one question
}

// CreateQuizHandler escrows the prize from the creator and stores the quiz
func CreateQuizHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		var req CreateQuizRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperror.Respond(c, apperror.Validation("Invalid request"))
			return
		}
		if len(req.Title) < 5 || len(req.Title) > 120 {
			apperror.Respond(c, apperror.Validation("Title must be 5-120 characters"))
			return
		}
		if !req.Prize.IsPositive() {
			apperror.Respond(c, apperror.Validation("Prize must be positive"))
			return
		}
		if req.EntryFee.IsNegative() {
			apperror.Respond(c, apperror.Validation("Entry fee cannot be negative"))
			return
		}
		method := req.Method
		if method == "" {
			method = domain.QuizTopScore
		}
		if method != domain.QuizTopScore && method != domain.QuizSplit {
			apperror.Respond(c, apperror.Validation("Method must be top_score or split"))
			return
		}
		if req.Deadline <= time.Now().UnixMilli() {
			apperror.Respond(c, apperror.Validation("Deadline must be in the future"))
			return
		}
		if len(req.Questions) == 0 || len(req.Questions) > 50 {
			apperror.Respond(c, apperror.Validation("Quiz must have 1-50 questions"))
			return
		}
		questions := make([]domain.QuizQuestion, len(req.Questions))
		for i, q := range req.Questions {
			if len(q.Options) < 2 || len(q.Options) > 6 {
				apperror.Respond(c, apperror.Validation("Each question needs 2-6 options"))
				return
			}
			if q.Correct < 0 || q.Correct >= len(q.Options) {
				apperror.Respond(c, apperror.Validation("Correct index out of range"))
				return
			}
			opts, err := json.Marshal(q.Options)
			if err != nil {
				apperror.Respond(c, apperror.Validation("Invalid options"))
				return
			}
			questions[i] = domain.QuizQuestion{
				Position: i,
				Prompt:   q.Prompt,
				Options:  datatypes.JSON(opts),
				Correct:  q.Correct,
			}
		}
		wallet, err := walletFor(db, user.ID)
		if err != nil {
			apperror.Respond(c, apperror.NotFound("Wallet not found"))
			return
		}
		if wallet.Balance.LessThan(req.Prize) {
			apperror.Respond(c, apperror.InsufficientBalance("Insufficient funds for the prize"))
			return
		}
		quiz := domain.Quiz{
			CreatorID: user.ID,
			Title:     req.Title,
			EntryFee:  req.EntryFee,
			Prize:     req.Prize,
			Method:    method,
			Deadline:  req.Deadline,
			Status:    domain.QuizOpen,
			Questions: questions,
		}
		ref := uuid.New().String()
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&quiz).Error; err != nil {
				return err
			}
			return debitWallet(tx, &wallet, req.Prize, domain.TxQuizEscrow, ref, "Prize escrow for \""+req.Title+"\"")
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": user.ID,
				"prize":   req.Prize,
				"error":   err.Error(),
			}).Error("Quiz creation failed")
			apperror.Respond(c, err)
			return
		}
		invalidateWalletCaches(context.Background(), rdb, user.ID)
		c.JSON(http.StatusCreated, gin.H{"quiz": sanitizeQuiz(quiz, true)})
	}
}

// sanitizeQuiz strips correct answers unless the viewer owns the quiz
func sanitizeQuiz(quiz domain.Quiz, isOwner bool) gin.H {
	questions := make([]gin.H, len(quiz.Questions))
	for i, q := range quiz.Questions {
		item := gin.H{
			"id":       q.ID,
			"position": q.Position,
			"prompt":   q.Prompt,
			"options":  q.Options,
		}
		if isOwner {
			item["correct"] = q.Correct
		}
		questions[i] = item
	}
	return gin.H{
		"id":        quiz.ID,
		"title":     quiz.Title,
		"entry_fee": quiz.EntryFee,
		"prize":     quiz.Prize,
		"method":    quiz.Method,
		"deadline":  quiz.Deadline,
		"status":    quiz.Status,
		"questions": questions,
	}
}

// ListQuizzesHandler returns open quizzes, paginated
func ListQuizzesHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := c.DefaultQuery("status", domain.QuizOpen)
		page, pageSize := parsePagination(c)
		query := db.Model(&domain.Quiz{}).Where("status = ?", status)
		var total int64
		if err := query.Count(&total).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to count quizzes"))
			return
		}
		var quizzes []domain.Quiz
		if err := query.Order("created_at desc").Offset((page - 1) * pageSize).Limit(pageSize).Find(&quizzes).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to fetch quizzes"))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"quizzes":     quizzes,
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": totalPages(total, pageSize),
		})
	}
}

// GetQuizHandler returns one quiz; correct answers only for the creator
func GetQuizHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := currentUserID(c)
		var quiz domain.Quiz
		if err := db.Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position")
		}).First(&quiz, c.Param("id")).Error; err != nil {
			apperror.Respond(c, apperror.NotFound("Quiz not found"))
			return
		}
		var count int64
		db.Model(&domain.QuizParticipant{}).Where("quiz_id = ?", quiz.ID).Count(&count)
		resp := sanitizeQuiz(quiz, quiz.CreatorID == userID)
		resp["participants"] = count
		c.JSON(http.StatusOK, gin.H{"quiz": resp})
	}
}

// JoinQuizHandler pays the entry fee into the pot and registers the user
func JoinQuizHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		var quiz domain.Quiz
		if err := db.First(&quiz, c.Param("id")).Error; err != nil {
			apperror.Respond(c, apperror.NotFound("Quiz not found"))
			return
		}
		if quiz.Status != domain.QuizOpen || quiz.Deadline <= time.Now().UnixMilli() {
			apperror.Respond(c, apperror.WagerClosed("Quiz is no longer open"))
			return
		}
		if quiz.CreatorID == user.ID {
			apperror.Respond(c, apperror.Validation("Creators cannot join their own quiz"))
			return
		}
		var existing domain.QuizParticipant
		if err := db.Where("quiz_id = ? AND user_id = ?", quiz.ID, user.ID).First(&existing).Error; err == nil {
			apperror.Respond(c, apperror.Duplicate("You already joined this quiz"))
			return
		}
		wallet, err := walletFor(db, user.ID)
		if err != nil {
			apperror.Respond(c, apperror.NotFound("Wallet not found"))
			return
		}
		if wallet.Balance.LessThan(quiz.EntryFee) {
			apperror.Respond(c, apperror.InsufficientBalance("Insufficient funds for the entry fee"))
			return
		}
		err = db.Transaction(func(tx *gorm.DB) error {
			participant := domain.QuizParticipant{QuizID: quiz.ID, UserID: user.ID}
			if err := tx.Create(&participant).Error; err != nil {
				return err
			}
			if quiz.EntryFee.IsPositive() {
				ref := uuid.New().String()
				return debitWallet(tx, &wallet, quiz.EntryFee, domain.TxQuizEntry, ref, "Entry fee for \""+quiz.Title+"\"")
			}
			return nil
		})
		if err != nil {
			apperror.Respond(c, err)
			return
		}
		invalidateWalletCaches(context.Background(), rdb, user.ID)
		c.JSON(http.StatusOK, gin.H{"message": "Joined quiz"})
	}
}

// SubmitAnswersRequest carries the chosen option index per question, in
// question position order
type SubmitAnswersRequest struct {
	Answers []int `json:"answers" binding:"required"`
}

// SubmitAnswersHandler grades a participant's answers immediately
func SubmitAnswersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		var req SubmitAnswersRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperror.Respond(c, apperror.Validation("Invalid request"))
			return
		}
		var quiz domain.Quiz
		if err := db.Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position")
		}).First(&quiz, c.Param("id")).Error; err != nil {
			apperror.Respond(c, apperror.NotFound("Quiz not found"))
			return
		}
		if quiz.Status != domain.QuizOpen || quiz.Deadline <= time.Now().UnixMilli() {
			apperror.Respond(c, apperror.WagerClosed("Quiz is no longer open"))
			return
		}
		var participant domain.QuizParticipant
		if err := db.Where("quiz_id = ? AND user_id = ?", quiz.ID, user.ID).First(&participant).Error; err != nil {
			apperror.Respond(c, apperror.Validation("Join the quiz before answering"))
			return
		}
		if participant.SubmittedAt != 0 {
			apperror.Respond(c, apperror.Duplicate("Answers already submitted"))
			return
		}
		if len(req.Answers) != len(quiz.Questions) {
			apperror.Respond(c, apperror.Validation("Answer count must match question count"))
			return
		}
		score := 0
		for i, q := range quiz.Questions {
			if req.Answers[i] == q.Correct {
				score++
			}
		}
		answers, _ := json.Marshal(req.Answers)
		if err := db.Model(&participant).Updates(map[string]any{
			"answers":      datatypes.JSON(answers),
			"score":        score,
			"submitted_at": time.Now().UnixMilli(),
		}).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to record answers"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"score": score, "out_of": len(quiz.Questions)})
	}
}

// SettleQuizHandler pays out a finished quiz. top_score pays the entire pot
// (prize + entry fees) to the best scorer, earliest submission breaking
// ties; split divides it among all max scorers. A quiz nobody answered
// refunds the prize and all entry fees.
func SettleQuizHandler(db *gorm.DB, rdb *redis.Client, notifier *realtime.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			apperror.Respond(c, apperror.Unauthorized("Unauthorized"))
			return
		}
		var quiz domain.Quiz
		if err := db.First(&quiz, c.Param("id")).Error; err != nil {
			apperror.Respond(c, apperror.NotFound("Quiz not found"))
			return
		}
		if quiz.CreatorID != user.ID && user.Role != "admin" {
			apperror.Respond(c, apperror.Forbidden("Only the creator or an admin can settle"))
			return
		}
		if quiz.Status != domain.QuizOpen {
			apperror.Respond(c, apperror.WagerClosed("Quiz already settled"))
			return
		}
		if quiz.Deadline > time.Now().UnixMilli() {
			apperror.Respond(c, apperror.Validation("Cannot settle before the deadline"))
			return
		}
		var participants []domain.QuizParticipant
		if err := db.Where("quiz_id = ?", quiz.ID).Find(&participants).Error; err != nil {
			apperror.Respond(c, apperror.Database("Failed to load participants"))
			return
		}
		// Winners: submitted entries with the maximum score
		var winners []domain.QuizParticipant
		best := -1
		for _, p := range participants {
			if p.SubmittedAt == 0 {
				continue
			}
			switch {
			case p.Score > best:
				best = p.Score
				winners = []domain.QuizParticipant{p}
			case p.Score == best:
				winners = append(winners, p)
			}
		}
		if quiz.Method == domain.QuizTopScore && len(winners) > 1 {
			// Earliest submission wins ties
			earliest := winners[0]
			for _, p := range winners[1:] {
				if p.SubmittedAt < earliest.SubmittedAt {
					earliest = p
				}
			}
			winners = []domain.QuizParticipant{earliest}
		}
		pot := quiz.Prize.Add(quiz.EntryFee.Mul(decimal.NewFromInt(int64(len(participants)))))
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&quiz).Update("status", domain.QuizSettled).Error; err != nil {
				return err
			}
			// No submissions: prize back to the creator, fees back to entrants
			if len(winners) == 0 {
				creatorWallet, err := walletFor(tx, quiz.CreatorID)
				if err != nil {
					return err
				}
				if err := creditWallet(tx, &creatorWallet, quiz.Prize, domain.TxQuizEscrow, uuid.New().String(), "Prize refund for \""+quiz.Title+"\""); err != nil {
					return err
				}
				if quiz.EntryFee.IsPositive() {
					for _, p := range participants {
						w, err := walletFor(tx, p.UserID)
						if err != nil {
							return err
						}
						if err := creditWallet(tx, &w, quiz.EntryFee, domain.TxQuizPrize, uuid.New().String(), "Entry fee refund for \""+quiz.Title+"\""); err != nil {
							return err
						}
					}
				}
				return nil
			}
			// Split the pot, last winner absorbing rounding dust
			share := pot.Div(decimal.NewFromInt(int64(len(winners)))).RoundDown(2)
			paid := decimal.Zero
			for i, p := range winners {
				amount := share
				if i == len(winners)-1 {
					amount = pot.Sub(paid)
				}
				paid = paid.Add(amount)
				w, err := walletFor(tx, p.UserID)
				if err != nil {
					return err
				}
				if err := creditWallet(tx, &w, amount, domain.TxQuizPrize, uuid.New().String(), "Quiz prize for \""+quiz.Title+"\""); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"quiz_id": quiz.ID,
				"error":   err.Error(),
			}).Error("Quiz settlement failed")
			apperror.Respond(c, apperror.Database("Settlement failed"))
			return
		}
		ctx := context.Background()
		for _, p := range participants {
			invalidateWalletCaches(ctx, rdb, p.UserID)
			notifier.Notify(ctx, p.UserID, domain.NotifyQuiz, "Quiz settled", "\""+quiz.Title+"\" has been settled")
		}
		invalidateWalletCaches(ctx, rdb, quiz.CreatorID)
		c.JSON(http.StatusOK, gin.H{"message": "Quiz settled", "winners": len(winners), "pot": pot})
	}
}
