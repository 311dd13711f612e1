package models

import (
	"slices"
	"time"

	"github.com/pgvector/pgvector-go"
)

// AccessAll grants a document to every role.
const AccessAll = "All"

// AccessLevels are the roles a shared document can be restricted to.
var AccessLevels = []string{AccessAll, "Founder", "CTO", "CFO", "CMO", "Employees"}

type Document struct {
	ID           string   `json:"id" validate:"required"`
	Name         string   `json:"name" validate:"required"`
	CreatedAt    string   `json:"created_at,omitempty"`
	AllowedRoles []string `json:"allowed_roles"`
}

// VisibleTo reports whether a caller with role may see the document.
func (d Document) VisibleTo(role string) bool {
	return slices.Contains(d.AllowedRoles, AccessAll) || slices.Contains(d.AllowedRoles, role)
}

// NormalizeAccess expands a selection containing All to every level and
// collapses a selection of every specific level back to All.
func NormalizeAccess(selected []string) []string {
	if slices.Contains(selected, AccessAll) {
		return slices.Clone(AccessLevels)
	}
	out := make([]string, 0, len(selected))
	for _, level := range AccessLevels[1:] {
		if slices.Contains(selected, level) {
			out = append(out, level)
		}
	}
	if len(out) == len(AccessLevels)-1 {
		return slices.Clone(AccessLevels)
	}
	return out
}

// DocumentEmbedding is one embedded chunk of a shared document.
type DocumentEmbedding struct {
	ID           string          `json:"id"`
	DocumentName string          `json:"document_name"`
	ChunkIndex   int             `json:"chunk_index"`
	Content      string          `json:"content"`
	Embedding    pgvector.Vector `json:"-"`
	AllowedRoles []string        `json:"allowed_roles"`
	CreatedAt    time.Time       `json:"created_at"`
}
