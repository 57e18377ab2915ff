package types

// PresenceInfo is a point-in-time view of one participant's derived presence state. It is
// served on the admin API, expiry is handled by the tracker itself.
type PresenceInfo struct {
	ConnId  string `json:"socketId"`
	Nick    string `json:"username"`
	Active  bool   `json:"active"`
	Typing  bool   `json:"typing"`
	Line    int    `json:"line"`
	HasLine bool   `json:"hasLine"`
}
