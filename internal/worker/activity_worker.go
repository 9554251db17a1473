package worker

import (
	"github.com/spec-kit/lead-manager/internal/service"
)

// StartActivityWorker registers the lead activity log handlers.
func StartActivityWorker(activityService *service.ActivityService) {
	if activityService == nil {
		return
	}
	activityService.RegisterHandlers()
}
