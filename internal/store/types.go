package store

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors for store operations.
var (
	ErrNotFound       = errors.New("not found")
	ErrEmptyContent   = errors.New("context content cannot be empty")
	ErrEmptySessionID = errors.New("session ID cannot be empty")
	ErrEmptyPath      = errors.New("project path cannot be empty")
	ErrInvalidBackup  = errors.New("invalid backup document")
	ErrClosed         = errors.New("store is closed")
)

// SessionStatus represents the lifecycle state of a session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
	SessionPaused    SessionStatus = "paused"
)

// IndexerTool is the tool identifier used by the per-project singleton
// indexing session.
const IndexerTool = "codebase-indexer"

// ContextType enumerates the kinds of content a context can hold.
type ContextType string

const (
	TypeCode          ContextType = "code"
	TypeError         ContextType = "error"
	TypeSolution      ContextType = "solution"
	TypeDocumentation ContextType = "documentation"
	TypeConversation  ContextType = "conversation"
	TypeTest          ContextType = "test"
	TypeConfiguration ContextType = "configuration"
	TypeCommit        ContextType = "commit"

	// Fine-grained code-change subtypes produced by the classifier.
	TypeBugFix       ContextType = "bug_fix"
	TypeFeature      ContextType = "feature"
	TypeRefactor     ContextType = "refactor"
	TypeOptimization ContextType = "optimization"
)

// RelationshipType enumerates directed edge kinds between contexts.
type RelationshipType string

const (
	RelDependsOn  RelationshipType = "depends_on"
	RelFixes      RelationshipType = "fixes"
	RelRelatedTo  RelationshipType = "related_to"
	RelImplements RelationshipType = "implements"
	RelSupersedes RelationshipType = "supersedes"
	RelReferences RelationshipType = "references"
)

// defaultStrengths maps relationship types to their default edge strength
// when the caller does not supply one.
var defaultStrengths = map[RelationshipType]float64{
	RelDependsOn:  0.9,
	RelFixes:      0.85,
	RelImplements: 0.8,
	RelSupersedes: 0.7,
	RelRelatedTo:  0.5,
	RelReferences: 0.3,
}

// DefaultStrength returns the default strength for a relationship type.
// Unknown types default to 0.5.
func DefaultStrength(t RelationshipType) float64 {
	if s, ok := defaultStrengths[t]; ok {
		return s
	}
	return 0.5
}

// Project is a filesystem path the system has seen, with detected metadata.
// Projects are created on first encounter and never implicitly deleted.
type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Language     string    `json:"language,omitempty"`
	Framework    string    `json:"framework,omitempty"`
	GitRemote    string    `json:"git_remote,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
}

// Session groups contexts captured by one tool run within a project.
type Session struct {
	ID        string        `json:"id"`
	ProjectID string        `json:"project_id"`
	ToolUsed  string        `json:"tool_used"`
	Status    SessionStatus `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
}

// Embedding is an externally produced vector stored opaquely alongside a
// context. Model tags the producer so stale vectors can be detected.
type Embedding struct {
	Vector []float32 `json:"vector"`
	Source string    `json:"source"`
	Model  string    `json:"model"`
}

// Context is the atomic unit of memory.
//
// Deleting a session cascades to its contexts; deleting a context cascades
// to its relationships and file associations.
type Context struct {
	ID           string                 `json:"id"`
	SessionID    string                 `json:"session_id"`
	Type         ContextType            `json:"type"`
	Content      string                 `json:"content"`
	FilePath     string                 `json:"file_path,omitempty"`
	LineStart    int                    `json:"line_start,omitempty"`
	LineEnd      int                    `json:"line_end,omitempty"`
	Language     string                 `json:"language,omitempty"`
	Tags         []string               `json:"tags,omitempty"`
	QualityScore float64                `json:"quality_score"`
	Embedding    *Embedding             `json:"embedding,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	Archived     bool                   `json:"archived"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// Relationship is a directed, typed edge between two contexts.
// Unique per (from, to, type).
type Relationship struct {
	ID        string           `json:"id"`
	FromID    string           `json:"from_id"`
	ToID      string           `json:"to_id"`
	Type      RelationshipType `json:"type"`
	Strength  float64          `json:"strength"`
	CreatedAt time.Time        `json:"created_at"`
}

// FileEntry is one snapshot of a file in a project's codebase index,
// distinct from context rows.
type FileEntry struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	RelativePath string    `json:"relative_path"`
	Content      string    `json:"content"`
	Language     string    `json:"language,omitempty"`
	Size         int64     `json:"size"`
	ContentHash  string    `json:"content_hash"`
	ModifiedAt   time.Time `json:"modified_at"`
	IndexedAt    time.Time `json:"indexed_at"`
}

// ParameterKind distinguishes thresholds from weights.
type ParameterKind string

const (
	ParamThreshold ParameterKind = "threshold"
	ParamWeight    ParameterKind = "weight"
)

// LearningParameter is a named scalar that configures the scorer or the
// decision engine. Parameters are created with defaults at first startup
// and only ever updated in place.
type LearningParameter struct {
	Name          string        `json:"name"`
	Kind          ParameterKind `json:"kind"`
	Value         float64       `json:"value"`
	PreviousValue float64       `json:"previous_value"`
	UpdateReason  string        `json:"update_reason,omitempty"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// FeedbackAction enumerates user responses to a retention decision.
type FeedbackAction string

const (
	FeedbackAccept FeedbackAction = "accept"
	FeedbackReject FeedbackAction = "reject"
	FeedbackModify FeedbackAction = "modify"
)

// UserFeedback is an immutable log entry tying a context to a user action
// on a prior decision.
type UserFeedback struct {
	ID          string         `json:"id"`
	ContextID   string         `json:"context_id"`
	Action      FeedbackAction `json:"action"`
	ProcessType string         `json:"process_type,omitempty"`
	Score       float64        `json:"score,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewContext creates a context with a generated ID and timestamps.
func NewContext(sessionID string, typ ContextType, content string) (*Context, error) {
	if sessionID == "" {
		return nil, ErrEmptySessionID
	}
	if content == "" {
		return nil, ErrEmptyContent
	}
	now := time.Now().UTC()
	return &Context{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Type:      typ,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
