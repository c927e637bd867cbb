package handlers

import (
	"net/http"

	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/model"
)

type notificationsResponse struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unread_count"`
}

func (a *API) ListNotifications(w http.ResponseWriter, r *http.Request) {
	unread, ok := queryBool(r, "unread")
	if !ok {
		badRequest(w, "unread must be a boolean")
		return
	}
	limit, ok := queryInt(r, "limit", 0)
	if !ok {
		badRequest(w, "limit must be an integer")
		return
	}
	list, err := a.notifications.ListForUser(r.Context(), unread, limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	count, err := a.notifications.UnreadCount(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, notificationsResponse{Notifications: nonNil(list), UnreadCount: count})
}

type markReadRequest struct {
	NotificationID string `json:"notification_id"`
}

func (a *API) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := a.notifications.MarkRead(r.Context(), req.NotificationID); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
