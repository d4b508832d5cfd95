package notifications

import "github.com/greattalk/feed-recommender/internal/models"

// NotificationInterface defines the contract for notification services
type NotificationInterface interface {
	SendReport(report *models.ModerationReport) error
	SendAlert(alert *models.Alert) error
}
