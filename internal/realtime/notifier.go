package realtime

import (
	"context"
	"encoding/json"
	"strconv"
	"wagerhub/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ChannelFor returns the redis pub/sub channel for one user's notifications.
func ChannelFor(userID uint) string {
	return "notify:user:" + strconv.Itoa(int(userID))
}

// Notifier stores notifications and broadcasts them over redis pub/sub.
// The broadcast is purely a cache-invalidation hint for connected clients;
// the row is the source of truth.
type Notifier struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewNotifier builds a Notifier.
func NewNotifier(db *gorm.DB, rdb *redis.Client) *Notifier {
	return &Notifier{db: db, rdb: rdb}
}

// Notify inserts the notification row and publishes it. Publish failures are
// logged only: a missed broadcast just delays the client until its next poll.
func (n *Notifier) Notify(ctx context.Context, userID uint, kind, title, body string) {
	note := domain.Notification{
		UserID: userID,
		Kind:   kind,
		Title:  title,
		Body:   body,
	}
	if err := n.db.Create(&note).Error; err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"kind":    kind,
			"error":   err.Error(),
		}).Error("Failed to store notification")
		return
	}
	payload, err := json.Marshal(note)
	if err != nil {
		return
	}
	if err := n.rdb.Publish(ctx, ChannelFor(userID), payload).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"kind":    kind,
			"error":   err.Error(),
		}).Warn("Failed to broadcast notification")
	}
}
