package api

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"sociofi/internal/models"
	"sociofi/internal/session"
)

const maxDocumentBytes = 20 << 20 // 20 MB

var (
	errForbidden        = errors.New("document not visible to role")
	errDocumentNotFound = errors.New("document not found")
)

func (h *Handler) listDocuments(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	docs, err := h.visibleDocuments(c.Request.Context(), sess)
	if err != nil {
		h.fail(c, sess, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// uploadDocument forwards the file to the backend and indexes a local copy
// for retrieval. Indexing failures do not fail the upload.
func (h *Handler) uploadDocument(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > maxDocumentBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	roles := models.NormalizeAccess(c.PostFormArray("allowed_roles"))
	if len(roles) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "select at least one access level"})
		return
	}
	name := filepath.Base(file.Filename)

	tmpDir, err := os.MkdirTemp("", "sociofi-upload-*")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create temp dir failed"})
		return
	}
	defer os.RemoveAll(tmpDir)
	tmpPath := filepath.Join(tmpDir, name)
	if err := c.SaveUploadedFile(file, tmpPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save file failed"})
		return
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "open file failed"})
		return
	}
	doc, err := h.backend.UploadDocument(c.Request.Context(), sess.Token, name, roles, f)
	f.Close()
	if err != nil {
		h.fail(c, sess, err)
		return
	}

	resp := gin.H{"document": doc, "indexed_chunks": 0}
	if h.indexer != nil {
		chunks, err := h.indexer.Index(c.Request.Context(), tmpPath, doc.Name, roles)
		if err != nil {
			h.logger.Warn("index document failed", zap.String("document", doc.Name), zap.Error(err))
			resp["index_error"] = "document stored but not searchable"
		} else {
			resp["indexed_chunks"] = chunks
		}
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) downloadDocument(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	doc, err := h.findDocument(c, sess, c.Param("id"))
	if err != nil {
		h.documentFail(c, sess, err)
		return
	}
	body, contentType, err := h.backend.DownloadDocument(c.Request.Context(), sess.Token, doc.ID)
	if err != nil {
		h.fail(c, sess, err)
		return
	}
	defer body.Close()
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", `attachment; filename="`+doc.Name+`"`)
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, body); err != nil {
		h.logger.Warn("stream document failed", zap.String("document", doc.Name), zap.Error(err))
	}
}

func (h *Handler) deleteDocument(c *gin.Context) {
	sess, ok := h.currentSession(c)
	if !ok {
		return
	}
	doc, err := h.findDocument(c, sess, c.Param("id"))
	if err != nil {
		h.documentFail(c, sess, err)
		return
	}
	if err := h.backend.DeleteDocument(c.Request.Context(), sess.Token, doc.ID); err != nil {
		h.fail(c, sess, err)
		return
	}
	if h.embeddings != nil {
		if n, err := h.embeddings.DeleteDocument(c.Request.Context(), doc.Name); err != nil {
			h.logger.Warn("delete embeddings failed", zap.String("document", doc.Name), zap.Error(err))
		} else {
			h.logger.Debug("deleted embeddings", zap.String("document", doc.Name), zap.Int64("chunks", n))
		}
	}
	c.Status(http.StatusNoContent)
}

// findDocument resolves id against the documents the caller's role may see.
func (h *Handler) findDocument(c *gin.Context, sess *session.Session, id string) (*models.Document, error) {
	docs, err := h.backend.ListDocuments(c.Request.Context(), sess.Token)
	if err != nil {
		return nil, err
	}
	for i := range docs {
		if docs[i].ID != id {
			continue
		}
		if !docs[i].VisibleTo(sess.User.Role) {
			return nil, errForbidden
		}
		return &docs[i], nil
	}
	return nil, errDocumentNotFound
}

func (h *Handler) documentFail(c *gin.Context, sess *session.Session, err error) {
	switch {
	case errors.Is(err, errDocumentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
	case errors.Is(err, errForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	default:
		h.fail(c, sess, err)
	}
}
