package types

import "time"

// LoginSession is an append-only audit record of one successful login.
type LoginSession struct {
	// SessionID is the unique identifier generated at login time.
	SessionID string `json:"sessionId" dynamodbav:"sessionId" db:"session_id"`

	// Email identifies the user that logged in.
	Email string `json:"email" dynamodbav:"email" db:"email"`

	// LoginTime is the moment the session was created.
	LoginTime time.Time `json:"loginTime" dynamodbav:"loginTime" db:"login_time"`

	// IP is the client address as seen by the server.
	IP string `json:"ip" dynamodbav:"ip" db:"ip"`

	// DeviceInfo is what the client reported about itself.
	DeviceInfo DeviceInfo `json:"deviceInfo" dynamodbav:"deviceInfo" db:"device_info"`
}

// DeviceInfo is client-reported and untrusted. It is stored for display
// only and must never take part in access decisions.
type DeviceInfo struct {
	Browser          string `json:"browser" dynamodbav:"browser"`
	OS               string `json:"os" dynamodbav:"os"`
	ScreenResolution string `json:"screenResolution" dynamodbav:"screenResolution"`
	Language         string `json:"language" dynamodbav:"language"`
	Timezone         string `json:"timezone" dynamodbav:"timezone"`
}

// LoginEvent is the message published after a successful login.
type LoginEvent struct {
	SessionID string    `json:"sessionId"`
	Email     string    `json:"email"`
	LoginTime time.Time `json:"loginTime"`
	IP        string    `json:"ip"`
}
