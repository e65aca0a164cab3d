package domain

import (
	"fmt"
	"time"
)

// TaskType selects the pipeline branch for a task.
type TaskType string

const (
	TaskTypeDoc  TaskType = "doc"
	TaskTypeForm TaskType = "form"
	TaskTypeFill TaskType = "fill"
)

// Valid reports whether t is one of the supported task types.
func (t TaskType) Valid() bool {
	switch t {
	case TaskTypeDoc, TaskTypeForm, TaskTypeFill:
		return true
	default:
		return false
	}
}

// TaskStatus enumerates task lifecycle states.
type TaskStatus string

const (
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusError      TaskStatus = "error"
)

// Terminal reports whether the status will not change again.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusError
}

// TaskKey is the immutable identity of a cached task. ContentHash is the hex
// SHA-256 of the ciphertext the client sent, not of the plaintext.
type TaskKey struct {
	ClientID    string
	ContentHash string
	Type        TaskType
}

func (k TaskKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ClientID, k.ContentHash, k.Type)
}

// KeySuffix narrows a clear to a single task of a client.
type KeySuffix struct {
	ContentHash string
	Type        TaskType
}

// TaskRecord is the durable row backing a task key.
type TaskRecord struct {
	Key          TaskKey
	Status       TaskStatus
	Result       string
	ErrorDetail  ErrorCode
	CreatedAt    time.Time
	LastAccessed time.Time
}

// InFlightTask is an accepted task travelling through the queue. The
// symmetric key stays in memory only.
type InFlightTask struct {
	Key          TaskKey
	SymmetricKey []byte
	Content      Content
}
