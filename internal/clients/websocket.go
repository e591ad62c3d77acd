package clients

import (
	"context"
	"fmt"

	ws "gremio-backoffice/internal/transport/websocket"
)

// ReportNotifier pushes report lifecycle events to the requesting user's sockets.
type ReportNotifier struct {
	hub *ws.Hub
}

func NewReportNotifier(hub *ws.Hub) *ReportNotifier {
	return &ReportNotifier{hub: hub}
}

func (c *ReportNotifier) NotifyReportProgress(ctx context.Context, userID int64, reportID string, progress float64, stage string) error {
	if c.hub == nil {
		return nil
	}

	data := map[string]any{
		"id":       reportID,
		"progress": progress,
	}
	if stage != "" {
		data["stage"] = stage
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    "report_progress",
		Channel: fmt.Sprintf("notify_user_of_report_progress#%d", userID),
		Data:    data,
	})
	return nil
}

func (c *ReportNotifier) NotifyReportComplete(ctx context.Context, userID int64, reportID, url, filename string) error {
	if c.hub == nil {
		return nil
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    "report_complete",
		Channel: fmt.Sprintf("notify_user_when_report_complete#%d", userID),
		Data: map[string]any{
			"id":       reportID,
			"url":      url,
			"filename": filename,
			"user_id":  userID,
		},
	})
	return nil
}

func (c *ReportNotifier) NotifyReportFailed(ctx context.Context, userID int64, reportID, errMsg string) error {
	if c.hub == nil {
		return nil
	}

	c.hub.Broadcast(userID, &ws.Message{
		Type:    "report_failed",
		Channel: fmt.Sprintf("notify_user_when_report_failed#%d", userID),
		Data: map[string]any{
			"id":      reportID,
			"message": errMsg,
			"user_id": userID,
		},
	})
	return nil
}
