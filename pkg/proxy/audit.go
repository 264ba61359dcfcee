package proxy

import (
	"context"
	"fmt"

	"github.com/blihweb/blihweb/pkg/logging"
)

const statusError = "error"

func auditMessage(user, method, path, status string) string {
	return fmt.Sprintf("%s %s %s (%s)", user, method, path, status)
}

// audit writes the single line logged for every forwarded call.
func audit(ctx context.Context, user, method, path, status string) {
	log := logging.FromContext(ctx)
	if user == "" {
		log.Warn("Signed data has no user")
		user = logging.UnknownUser
	}
	log.WithFields(logging.Fields{
		logging.UserFieldKey:   user,
		logging.StatusFieldKey: status,
		logging.LogAudit:       true,
	}).Info(auditMessage(user, method, path, status))
}
