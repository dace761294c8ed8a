package queue

import (
	"errors"
	"fmt"
	"strconv"
)

type TaskType string

const (
	// TaskTypeDeployment renders and stores signatures for every enabled
	// directory user of an organization.
	TaskTypeDeployment TaskType = "deployment"
	// TaskTypeDirectorySync refreshes directory users from Azure AD.
	TaskTypeDirectorySync TaskType = "directory_sync"
)

func (t TaskType) IsValid() bool {
	switch t {
	case TaskTypeDeployment, TaskTypeDirectorySync:
		return true
	}
	return false
}

var ErrInvalidTask = errors.New("invalid task")

// Stream entry field names.
const (
	fieldTaskType     = "task_type"
	fieldOrganization = "organization_id"
	fieldDeployment   = "deployment_id"
	fieldAttempt      = "attempt"
	fieldTraceID      = "trace_id"
	fieldLastError    = "last_error"
	fieldError        = "error"
)

type Task struct {
	TaskType       TaskType
	OrganizationID int64
	DeploymentID   *int64
	TraceID        *string
	Attempt        int
}

func (t Task) Validate() error {
	if !t.TaskType.IsValid() {
		return fmt.Errorf("%w: unknown task_type %q", ErrInvalidTask, t.TaskType)
	}
	if t.OrganizationID <= 0 {
		return fmt.Errorf("%w: missing organization_id", ErrInvalidTask)
	}
	if t.TaskType == TaskTypeDeployment && t.DeploymentID == nil {
		return fmt.Errorf("%w: missing deployment_id", ErrInvalidTask)
	}
	return nil
}

// encode renders t as stream entry fields. Attempt defaults to 1.
func (t Task) encode() map[string]any {
	fields := map[string]any{
		fieldTaskType:     string(t.TaskType),
		fieldOrganization: t.OrganizationID,
		fieldAttempt:      max(t.Attempt, 1),
	}
	if t.DeploymentID != nil {
		fields[fieldDeployment] = *t.DeploymentID
	}
	if t.TraceID != nil && *t.TraceID != "" {
		fields[fieldTraceID] = *t.TraceID
	}
	return fields
}

// decodeTask reads stream entry fields back into a validated Task.
func decodeTask(fields map[string]any) (Task, error) {
	var t Task

	raw, ok := fields[fieldTaskType]
	if !ok {
		return Task{}, fmt.Errorf("%w: missing task_type", ErrInvalidTask)
	}
	t.TaskType = TaskType(fmt.Sprint(raw))

	if _, ok := fields[fieldOrganization]; !ok {
		return Task{}, fmt.Errorf("%w: missing organization_id", ErrInvalidTask)
	}
	org, err := intField(fields, fieldOrganization)
	if err != nil {
		return Task{}, err
	}
	t.OrganizationID = org

	if _, ok := fields[fieldDeployment]; ok {
		d, err := intField(fields, fieldDeployment)
		if err != nil {
			return Task{}, err
		}
		t.DeploymentID = &d
	}

	attempt, err := intField(fields, fieldAttempt)
	if err != nil {
		return Task{}, err
	}
	t.Attempt = max(int(attempt), 1)

	if s := stringField(fields, fieldTraceID); s != "" {
		t.TraceID = &s
	}

	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

// intField parses an integer field; absent fields read as zero.
func intField(fields map[string]any, key string) (int64, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(fmt.Sprint(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parsing %s: %v", ErrInvalidTask, key, err)
	}
	return n, nil
}

func stringField(fields map[string]any, key string) string {
	raw, ok := fields[key]
	if !ok {
		return ""
	}
	return fmt.Sprint(raw)
}
