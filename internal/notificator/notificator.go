package notificator

import (
	"runtime/debug"

	"github.com/core-coin/bursa/internal/models"
	"github.com/core-coin/bursa/pkg/logger"
)

// Notificator fans a notification out to every configured provider.
type Notificator struct {
	logger    *logger.Logger
	providers []models.NotificationService
}

func NewNotificator(logger *logger.Logger, providers ...models.NotificationService) *Notificator {
	return &Notificator{logger: logger, providers: providers}
}

// safeCall runs a function with panic recovery (synchronous, no goroutine spawning)
func (n *Notificator) safeCall(fn func(), context string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Errorw("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

func (n *Notificator) SendNotification(notification *models.Notification) {
	if notification == nil {
		return
	}
	for _, provider := range n.providers {
		p := provider
		n.safeCall(func() { p.SendNotification(notification) }, "notification")
	}
}
