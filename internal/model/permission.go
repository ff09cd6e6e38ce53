package model

// Permission is a string code for an admin action.
type Permission string

const (
	// PermissionMediaUpload allows uploading question images.
	PermissionMediaUpload Permission = "media:upload"

	// PermissionExamsRead allows viewing exam details.
	PermissionExamsRead Permission = "exams:read"

	// PermissionExamsWrite allows creating exams and adding questions.
	PermissionExamsWrite Permission = "exams:write"

	// PermissionExamsPublish allows changing an exam's publication state.
	PermissionExamsPublish Permission = "exams:publish"

	// PermissionResultsRead allows viewing every student's results for an exam.
	PermissionResultsRead Permission = "results:read"

	// PermissionExamsMonitor allows attaching to the live exam monitor.
	PermissionExamsMonitor Permission = "exams:monitor"

	// PermissionStudentsWrite allows enrolling students and resetting their logins.
	PermissionStudentsWrite Permission = "students:write"
)

// AllPermissions lists every permission code.
var AllPermissions = []Permission{
	PermissionMediaUpload,
	PermissionExamsRead,
	PermissionExamsWrite,
	PermissionExamsPublish,
	PermissionResultsRead,
	PermissionExamsMonitor,
	PermissionStudentsWrite,
}

// PermissionStrings returns AllPermissions as plain strings.
func PermissionStrings() []string {
	out := make([]string, len(AllPermissions))
	for i, p := range AllPermissions {
		out[i] = string(p)
	}
	return out
}
