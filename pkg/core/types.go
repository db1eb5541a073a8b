package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SourceType records where a memory item came from
type SourceType string

const (
	SourceSuccess      SourceType = "success"
	SourceFailure      SourceType = "failure"
	SourceHuman        SourceType = "human"
	SourcePack         SourceType = "pack"
	SourceExemplar     SourceType = "exemplar"
	SourceMetaAnalysis SourceType = "meta-analysis"
	SourceManual       SourceType = "manual"
)

// SourceTypes lists every accepted SourceType in declaration order
var SourceTypes = []SourceType{
	SourceSuccess, SourceFailure, SourceHuman, SourcePack,
	SourceExemplar, SourceMetaAnalysis, SourceManual,
}

// Valid reports whether t is one of SourceTypes
func (t SourceType) Valid() bool {
	for _, v := range SourceTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Confidence is the judge's confidence in a Judgment
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Valid reports whether c is high, medium or low
func (c Confidence) Valid() bool {
	return c == ConfidenceHigh || c == ConfidenceMedium || c == ConfidenceLow
}

// Run is one agent session
type Run struct {
	RunID        string    `json:"run_id"`
	CreatedAt    time.Time `json:"created_at"`
	Model        string    `json:"model"`
	OntologyName string    `json:"ontology_name"`
	OntologyPath string    `json:"ontology_path"`
	Notes        string    `json:"notes"`
}

// Trajectory is one finished pass of the agent loop within a Run.
// Artifact is stored and returned byte-for-byte.
type Trajectory struct {
	TrajectoryID   string    `json:"trajectory_id"`
	RunID          string    `json:"run_id"`
	TaskQuery      string    `json:"task_query"`
	FinalAnswer    string    `json:"final_answer"`
	IterationCount int       `json:"iteration_count"`
	Converged      bool      `json:"converged"`
	Artifact       []byte    `json:"artifact,omitempty"`
	RLMLogPath     string    `json:"rlm_log_path,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Judgment is the success verdict for a Trajectory
type Judgment struct {
	TrajectoryID string     `json:"trajectory_id"`
	IsSuccess    bool       `json:"is_success"`
	Reason       string     `json:"reason"`
	Confidence   Confidence `json:"confidence"`
	Missing      []string   `json:"missing"`
}

// Scope describes where a memory applies.
// Keys not promoted to fields are preserved in Extra.
type Scope struct {
	Ontology        []string                   `json:"ontology,omitempty"`
	CurriculumLevel *int                       `json:"curriculum_level,omitempty"`
	Transferable    *bool                      `json:"transferable,omitempty"`
	TaskTypes       []string                   `json:"task_types,omitempty"`
	Extra           map[string]json.RawMessage `json:"-"`
}

type scopeFields Scope

// MarshalJSON merges Extra with the promoted fields
func (s Scope) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(scopeFields(s), s.Extra)
}

// UnmarshalJSON fills promoted fields and collects the rest into Extra
func (s *Scope) UnmarshalJSON(data []byte) error {
	var f scopeFields
	extra, err := unmarshalWithExtra(data, &f, "ontology", "curriculum_level", "transferable", "task_types")
	if err != nil {
		return err
	}
	*s = Scope(f)
	s.Extra = extra
	return nil
}

// HasOntology reports whether the scope lists name, case-insensitively
func (s Scope) HasOntology(name string) bool {
	for _, o := range s.Ontology {
		if strings.EqualFold(o, name) {
			return true
		}
	}
	return false
}

// Provenance records the origin of a memory.
// Keys not promoted to fields are preserved in Extra.
type Provenance struct {
	Source        string                     `json:"source,omitempty"`
	TrajectoryID  string                     `json:"trajectory_id,omitempty"`
	RunID         string                     `json:"run_id,omitempty"`
	SourceFile    string                     `json:"source_file,omitempty"`
	ExemplarLevel *int                       `json:"exemplar_level,omitempty"`
	Extra         map[string]json.RawMessage `json:"-"`
}

type provenanceFields Provenance

// MarshalJSON merges Extra with the promoted fields
func (p Provenance) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(provenanceFields(p), p.Extra)
}

// UnmarshalJSON fills promoted fields and collects the rest into Extra
func (p *Provenance) UnmarshalJSON(data []byte) error {
	var f provenanceFields
	extra, err := unmarshalWithExtra(data, &f, "source", "trajectory_id", "run_id", "source_file", "exemplar_level")
	if err != nil {
		return err
	}
	*p = Provenance(f)
	p.Extra = extra
	return nil
}

// MemoryItem is a stored, reusable procedural snippet
type MemoryItem struct {
	MemoryID     string     `json:"memory_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Content      string     `json:"content"`
	SourceType   SourceType `json:"source_type"`
	TaskQuery    string     `json:"task_query"`
	CreatedAt    time.Time  `json:"created_at"`
	Tags         []string   `json:"tags"`
	Scope        Scope      `json:"scope"`
	Provenance   Provenance `json:"provenance"`
	AccessCount  int        `json:"access_count"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
}

type memoryItemFields MemoryItem

// UnmarshalJSON accepts any ISO-8601 created_at, including timestamps without
// a UTC offset (read as UTC) and the space-separated SQL form.
func (m *MemoryItem) UnmarshalJSON(data []byte) error {
	aux := struct {
		*memoryItemFields
		CreatedAt *string `json:"created_at"`
	}{memoryItemFields: (*memoryItemFields)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.CreatedAt != nil && *aux.CreatedAt != "" {
		t, err := parseTimestamp(*aux.CreatedAt)
		if err != nil {
			return err
		}
		m.CreatedAt = t
	}
	return nil
}

// ComputeMemoryID derives the content address of a memory from its title and content
func ComputeMemoryID(title, content string) string {
	h := sha256.Sum256([]byte(title + "\n" + content))
	return hex.EncodeToString(h[:16])
}

// NewMemoryItem builds an item with its content-addressed ID and creation time set
func NewMemoryItem(title, description, content string, sourceType SourceType) *MemoryItem {
	return &MemoryItem{
		MemoryID:    ComputeMemoryID(title, content),
		Title:       title,
		Description: description,
		Content:     content,
		SourceType:  sourceType,
		CreatedAt:   time.Now().UTC(),
		Tags:        []string{},
	}
}

// Validate checks the fields a stored memory must carry
func (m *MemoryItem) Validate() error {
	if strings.TrimSpace(m.Title) == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidMemory)
	}
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("%w: missing content", ErrInvalidMemory)
	}
	if !m.SourceType.Valid() {
		return fmt.Errorf("%w: invalid source_type %q", ErrInvalidMemory, m.SourceType)
	}
	return nil
}

// SearchDocument is the text indexed for retrieval: title, description, tags
// and the scope's task types
func (m *MemoryItem) SearchDocument() string {
	parts := make([]string, 0, 2+len(m.Tags)+len(m.Scope.TaskTypes))
	parts = append(parts, m.Title, m.Description)
	parts = append(parts, m.Tags...)
	parts = append(parts, m.Scope.TaskTypes...)
	return strings.Join(parts, " ")
}

// UsageRecord notes that a memory was surfaced to a trajectory
type UsageRecord struct {
	TrajectoryID string   `json:"trajectory_id"`
	MemoryID     string   `json:"memory_id"`
	Rank         int      `json:"rank"`
	Score        *float64 `json:"score,omitempty"`
}

// ScoredMemory is a retrieval hit. Larger scores are more relevant.
type ScoredMemory struct {
	*MemoryItem
	Score float64 `json:"score"`
}

// MemoryFilter narrows ListMemories and Retrieve. Zero fields are ignored.
type MemoryFilter struct {
	SourceType SourceType
	// Ontology is matched as a substring of the serialized scope JSON
	Ontology string
	Limit    int
}

// StatsUpdate selects which lifetime counters UpdateMemoryStats increments
type StatsUpdate struct {
	Accessed bool
	Success  bool
	Failure  bool
}

// IsZero reports whether no counter is selected
func (u StatsUpdate) IsZero() bool {
	return !u.Accessed && !u.Success && !u.Failure
}

// Stats summarizes the contents of a store
type Stats struct {
	Runs                int            `json:"runs"`
	Trajectories        int            `json:"trajectories"`
	Judgments           int            `json:"judgments"`
	SuccessfulJudgments int            `json:"successful_judgments"`
	Memories            int            `json:"memories"`
	MemoriesBySource    map[string]int `json:"memories_by_source"`
	UsageRecords        int            `json:"usage_records"`
	SchemaVersion       int            `json:"schema_version"`
	FTSEnabled          bool           `json:"fts_enabled"`
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int { return &v }

// BoolPtr returns a pointer to v
func BoolPtr(v bool) *bool { return &v }
