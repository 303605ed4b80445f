package routes

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"document-qa-backend/internal/config"
	"document-qa-backend/internal/logger"
	"document-qa-backend/models"
	"document-qa-backend/services"
	"document-qa-backend/utils"

	"github.com/gin-gonic/gin"
)

// SetupDocumentRoutes registers upload, listing and file-serving endpoints.
func SetupDocumentRoutes(router *gin.Engine, cfg *config.Config, ingestor *services.Ingestor) {
	router.POST("/upload", uploadHandler(cfg, ingestor))
	router.GET("/files", listFilesHandler(cfg))
	router.GET("/uploads/:filename", serveFileHandler(cfg))
}

func uploadHandler(cfg *config.Config, ingestor *services.Ingestor) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.GoogleAPIKey == "" {
			utils.RespondWithUnauthorized(c, "Google API key is missing. Please set the GOOGLE_API_KEY environment variable.")
			return
		}

		fileHeader, err := c.FormFile("file")
		if err != nil {
			utils.RespondWithBadRequest(c, "No file provided", nil)
			return
		}
		if strings.TrimSpace(fileHeader.Filename) == "" {
			utils.RespondWithBadRequest(c, "No file selected", nil)
			return
		}

		if fileHeader.Size > cfg.MaxFileSize {
			limitMB := cfg.MaxFileSize / (1024 * 1024)
			utils.RespondWithPayloadTooLarge(c,
				"File too large. Please upload a file smaller than "+utils.HumanReadableSize(cfg.MaxFileSize)+".")
			logger.Warn("Upload rejected, file too large", "size", fileHeader.Size, "limit_mb", limitMB)
			return
		}

		ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
		if !extensionAllowed(ext, cfg.AllowedExtensions) {
			utils.RespondWithBadRequest(c,
				"Unsupported file type "+ext+". Supported types: "+strings.Join(cfg.AllowedExtensions, ", "), nil)
			return
		}

		if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
			utils.RespondWithInternalError(c, "Could not prepare upload directory", nil)
			return
		}

		uniqueName := utils.TimestampedFilename(fileHeader.Filename)
		filePath := filepath.Join(cfg.UploadDir, uniqueName)
		if err := c.SaveUploadedFile(fileHeader, filePath); err != nil {
			logger.Error("Failed to save uploaded file", "error", err.Error())
			utils.RespondWithInternalError(c, "Could not save uploaded file", nil)
			return
		}
		logger.Info("File saved", "path", filePath)

		doc, err := ingestor.IngestFile(c.Request.Context(), filePath)
		if err != nil {
			respondWithIngestError(c, err)
			return
		}

		c.JSON(http.StatusOK, models.UploadResponse{
			Message:    "File processed successfully",
			Filename:   uniqueName,
			DocumentID: doc.ID,
			ChunkCount: doc.ChunkCount,
		})
	}
}

func respondWithIngestError(c *gin.Context, err error) {
	logger.Error("Error processing file", "error", err.Error())

	switch {
	case isDocumentError(err):
		utils.RespondWithBadRequest(c,
			"Could not process this file. It may be corrupted, password-protected, or contain no extractable text.", nil)
	default:
		utils.RespondWithProviderError(c, err)
	}
}

func isDocumentError(err error) bool {
	for _, target := range []error{
		services.ErrUnsupportedType,
		services.ErrUnreadableDocument,
		services.ErrEmptyDocument,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func listFilesHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := os.ReadDir(cfg.UploadDir)
		if err != nil {
			if os.IsNotExist(err) {
				c.JSON(http.StatusOK, gin.H{"files": []models.FileInfo{}})
				return
			}
			logger.Error("Error listing files", "error", err.Error())
			utils.RespondWithInternalError(c, "Could not retrieve file list", nil)
			return
		}

		files := make([]models.FileInfo, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			files = append(files, models.FileInfo{
				Name: entry.Name(),
				Size: utils.HumanReadableSize(info.Size()),
				Path: "/uploads/" + entry.Name(),
			})
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

		c.JSON(http.StatusOK, gin.H{"files": files})
	}
}

func serveFileHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		filename := c.Param("filename")
		if filename != filepath.Base(filename) || strings.Contains(filename, "..") {
			utils.RespondWithBadRequest(c, "Invalid filename", nil)
			return
		}

		filePath := filepath.Join(cfg.UploadDir, filename)
		if _, err := os.Stat(filePath); err != nil {
			utils.RespondWithNotFound(c, "Could not retrieve file: "+filename)
			return
		}
		c.File(filePath)
	}
}

func extensionAllowed(ext string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), ext) {
			return true
		}
	}
	return false
}
