package preferences

import "time"

// Preferences holds the user's execution defaults: generation parameters
// applied when a step does not override them, and whether live progress
// notifications are on.
type Preferences struct {
	Temperature          float64   `json:"temperature"`
	MaxTokens            int       `json:"maxTokens"`
	SamplingMode         string    `json:"samplingMode"`
	NotificationsEnabled bool      `json:"notificationsEnabled"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Defaults returns the out-of-the-box preference set.
func Defaults() Preferences {
	return Preferences{
		Temperature:          0.7,
		MaxTokens:            500,
		SamplingMode:         "random",
		NotificationsEnabled: true,
	}
}
