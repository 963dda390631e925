// internal/workers/intake/submit-application/models.go
package submitapplication

type Input struct {
	FullName string            `json:"fullName"`
	Email    string            `json:"email"`
	Answers  map[string]string `json:"answers"`
	Photo    *PhotoInput       `json:"photo,omitempty"`
	ClientIP string            `json:"clientIp,omitempty"`
}

// PhotoInput carries the image as standard base64.
type PhotoInput struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Data        string `json:"data"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	WeekNumber        int    `json:"weekNumber"`
	Year              int    `json:"year"`
	SubmittedAt       string `json:"submittedAt"` // ISO 8601
	PhotoURL          string `json:"photoUrl,omitempty"`
	PhotoUploadFailed bool   `json:"photoUploadFailed"`
}
