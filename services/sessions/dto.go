package sessions

import (
	"time"

	"github.com/tholdem/uniqn-sync/pkg/records"
)

type SessionResponse struct {
	ID          string               `json:"id"`
	UserID      string               `json:"userId"`
	Role        records.Role         `json:"role"`
	CreatedAt   time.Time            `json:"createdAt"`
	Listening   []records.Collection `json:"listening"`
	Subscribed  []records.Collection `json:"subscribed"`
	InitialLoad bool                 `json:"initialLoading"`
}

type WorkLogStatusRequest struct {
	EventID    string   `json:"eventId"`
	WorkLogIDs []string `json:"workLogIds" binding:"required,min=1,dive,required"`
	Status     string   `json:"status" binding:"required"`
}

type InvalidateResponse struct {
	Collection records.Collection `json:"collection"`
	Removed    int                `json:"removed"`
}
