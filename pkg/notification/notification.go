package notification

import "time"

// RefreshInterval is how long a fetched notification list is served before it is reloaded.
const RefreshInterval = 30 * time.Second

// PreviewSize is how many notifications the bell menu shows.
const PreviewSize = 10

type Notification struct {
	Id        int    `json:"id"`
	UserId    int    `json:"userId"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"createdAt"`
}

func UnreadCount(notifications []Notification) int {
	count := 0
	for _, n := range notifications {
		if !n.Read {
			count++
		}
	}
	return count
}
