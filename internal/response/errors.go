package response

// ErrCode is a stable machine-readable error identifier.
type ErrCode string

const (
	// Authentication
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// Authorization
	ErrPermissionDenied  ErrCode = "PERMISSION_DENIED"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// Validation
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// Resources
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// Exams
	ErrExamNotFound      ErrCode = "EXAM_NOT_FOUND"
	ErrExamNotPublished  ErrCode = "EXAM_NOT_PUBLISHED"
	ErrNotInAudience     ErrCode = "NOT_IN_AUDIENCE"
	ErrMalformedQuestion ErrCode = "MALFORMED_QUESTION"
	ErrNoResult          ErrCode = "NO_RESULT"

	// Exam session
	ErrSessionState    ErrCode = "SESSION_STATE"
	ErrTimeUp          ErrCode = "TIME_UP"
	ErrAnswersLocked   ErrCode = "ANSWERS_LOCKED"
	ErrQuestionRange   ErrCode = "QUESTION_OUT_OF_RANGE"
	ErrNotInView       ErrCode = "NOT_IN_VIEW"
	ErrSubmitFailed    ErrCode = "SUBMIT_FAILED"
	ErrUnknownAction   ErrCode = "UNKNOWN_ACTION"
	ErrSessionDeclined ErrCode = "SESSION_DECLINED"

	// Media
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"
	ErrUploadFailed    ErrCode = "UPLOAD_FAILED"

	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"
	ErrInternal          ErrCode = "INTERNAL_ERROR"
)

var messages = map[ErrCode]string{
	ErrInvalidCredentials: "Incorrect roll number, email or password.",
	ErrSessionActive:      "You are already signed in on another device.",
	ErrSessionInvalidated: "Your session has ended. Please sign in again.",
	ErrTokenRequired:      "An authentication token is required.",
	ErrTokenInvalid:       "The authentication token is invalid.",
	ErrTokenExpired:       "The authentication token has expired.",

	ErrPermissionDenied:  "You do not have permission to do this.",
	ErrStudentAccessOnly: "This resource is for students only.",
	ErrAdminAccessOnly:   "This resource is for administrators only.",

	ErrValidation:     "Validation failed. Please check your input.",
	ErrInvalidID:      "The ID format is invalid.",
	ErrInvalidPayload: "The request body is invalid.",

	ErrNotFound: "Resource not found.",
	ErrConflict: "Resource already exists.",

	ErrExamNotFound:      "Exam not found.",
	ErrExamNotPublished:  "This exam is not open yet.",
	ErrNotInAudience:     "This exam is not assigned to your class.",
	ErrMalformedQuestion: "This exam contains a question that cannot be displayed.",
	ErrNoResult:          "You have not attempted this exam.",

	ErrSessionState:    "That action is not available right now.",
	ErrTimeUp:          "Time is up for this exam.",
	ErrAnswersLocked:   "Answers are locked while the exam is being submitted.",
	ErrQuestionRange:   "That question does not exist.",
	ErrNotInView:       "That question is hidden by the current subject filter.",
	ErrSubmitFailed:    "Your answers could not be saved. Please try submitting again.",
	ErrUnknownAction:   "Unknown action.",
	ErrSessionDeclined: "The exam was not started.",

	ErrFileRequired:    "A file upload is required.",
	ErrUnsupportedFile: "Unsupported file type.",
	ErrFileTooLarge:    "File size exceeds the limit.",
	ErrUploadFailed:    "Upload failed. Please try again.",

	ErrRateLimitExceeded: "Too many requests. Please try again later.",
	ErrInternal:          "Internal server error.",
}

// GetMessage returns the readable message for code.
func GetMessage(code ErrCode) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return "An unexpected error occurred."
}
