// internal/workers/admin/create-weekly-questions/models.go
package createweeklyquestions

type Input struct {
	WeekNumber int    `json:"weekNumber"`
	Year       int    `json:"year"`
	Question1  string `json:"question1"`
	Question2  string `json:"question2"`
	Question3  string `json:"question3,omitempty"`
	Deadline   string `json:"deadline"` // RFC 3339
}

type Output struct {
	QuestionSetID string `json:"questionSetId"`
	WeekNumber    int    `json:"weekNumber"`
	Year          int    `json:"year"`
	Deadline      string `json:"deadline"`
	HasQuestion3  bool   `json:"hasQuestion3"`
}
