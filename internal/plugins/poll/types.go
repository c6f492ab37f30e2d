package poll

// Option is one answer and its vote count.
type Option struct {
	Answer string `json:"answer"`
	Score  int    `json:"score"`
}

// Poll is stored under Key in its room.
type Poll struct {
	Key      string   `json:"key"`
	Title    string   `json:"title"`
	Question string   `json:"question"`
	Options  []Option `json:"options"`
}

// ListEntry records a poll's creator in the room's poll list.
type ListEntry struct {
	Title    string `json:"title"`
	Question string `json:"question"`
	UserID   int64  `json:"uid"`
	UserName string `json:"username"`
}

// Definition is the JSON a user supplies to "poll add".
type Definition struct {
	Title    string   `json:"title"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}
