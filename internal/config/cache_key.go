package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey holds the JTI of the student's single active login.
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// ExamDocumentKey caches the raw exam document (metadata plus question documents).
func (r *CacheKeyStruct) ExamDocumentKey(examID string) string {
	return fmt.Sprintf("exam:%s:document", examID)
}

// ExamMonitorChannel is the Pub/Sub channel that feeds the admin live monitor.
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

// ExamLiveSessionsKey is a hash of student_id -> attempt_id for sockets currently in an exam.
func (r *CacheKeyStruct) ExamLiveSessionsKey(examID string) string {
	return fmt.Sprintf("exam:%s:live", examID)
}

var CacheKey = NewCacheKeyStruct()
