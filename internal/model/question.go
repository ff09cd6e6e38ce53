package model

// Question is the canonical form of a multiple-choice question.
// CorrectAnswer is expected to equal one of Options but this is not enforced.
type Question struct {
	Prompt        string   `json:"prompt"`
	ImageRef      string   `json:"image_ref,omitempty"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Subject       string   `json:"subject,omitempty"`
	Topic         string   `json:"topic,omitempty"`
}

// StudentQuestion is a question as shown during an attempt (no answer key).
type StudentQuestion struct {
	Prompt   string   `json:"prompt"`
	ImageRef string   `json:"image_ref,omitempty"`
	Options  []string `json:"options"`
	Subject  string   `json:"subject,omitempty"`
	Topic    string   `json:"topic,omitempty"`
}

// ForStudent drops the answer key.
func (q Question) ForStudent() StudentQuestion {
	return StudentQuestion{
		Prompt:   q.Prompt,
		ImageRef: q.ImageRef,
		Options:  q.Options,
		Subject:  q.Subject,
		Topic:    q.Topic,
	}
}

// AddQuestionRequest is the payload for appending a question to an exam.
// ImageData may carry a pasted image as a base64 data URI; it is uploaded
// before the question is stored and replaces ImageRef.
type AddQuestionRequest struct {
	Prompt        string   `json:"prompt" binding:"max=5000"`
	ImageRef      string   `json:"image_ref" binding:"omitempty,max=1024"`
	ImageData     string   `json:"image_data" binding:"omitempty,image_data_uri"`
	Options       []string `json:"options" binding:"required,min=2,max=10,dive,required,max=1000"`
	CorrectAnswer string   `json:"correct_answer" binding:"required,max=1000"`
	Subject       string   `json:"subject" binding:"omitempty,max=100"`
	Topic         string   `json:"topic" binding:"omitempty,max=100"`
}
