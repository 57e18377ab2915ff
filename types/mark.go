package types

// LineMark is a persistent, author-attributed annotation on a document line. Marks outlive
// the membership of their author, they are only removed explicitly or when the room is
// torn down.
type LineMark struct {
	Id         string `json:"id"`
	LineNumber int    `json:"lineNumber"`
	Nick       string `json:"username"`
	Comment    string `json:"comment"`
	Timestamp  int64  `json:"timestamp"` // unix milliseconds
	ConnId     string `json:"socketId"`
}
