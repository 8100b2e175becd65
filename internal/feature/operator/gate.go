// Package operator restricts broadcast composition to the configured bot owner.
package operator

import (
	"errors"

	"github.com/sirupsen/logrus"

	"tg_broadcast_bot/internal/logging"
)

// Gate answers whether a Telegram user may drive the bot: the command set,
// the posting wizard, and broadcasts. Membership tracking is the only
// ungated surface.
type Gate struct {
	ownerID int64
	logger  *logrus.Entry
}

// NewGate constructs a Gate for the configured owner user id.
func NewGate(ownerID int64, logger *logrus.Entry) (*Gate, error) {
	if ownerID == 0 {
		return nil, errors.New("owner id is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	return &Gate{
		ownerID: ownerID,
		logger:  logger,
	}, nil
}

// Allow reports whether userID is the operator. Denials are logged so
// probing attempts are visible.
func (g *Gate) Allow(userID int64) bool {
	if g == nil {
		return false
	}

	if userID == g.ownerID {
		return true
	}

	g.logger.WithFields(logging.Fields{
		"event":   "operator_denied",
		"user_id": userID,
	}).Warn("non-operator attempted a restricted command")

	return false
}
