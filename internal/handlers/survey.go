package handlers

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/oneclick-dev/oneclick/internal/hashkey"
	"github.com/oneclick-dev/oneclick/internal/logger"
	"github.com/oneclick-dev/oneclick/internal/models"
	"github.com/oneclick-dev/oneclick/internal/services"
	"github.com/oneclick-dev/oneclick/internal/types"
	"github.com/oneclick-dev/oneclick/internal/utils"
)

// multipart framing allowance on top of the file size limit
const formOverhead = 1 << 20

var errNotPlainText = errors.New("file is not plain text")

type UpdateSurveyRequest struct {
	Title       *string `json:"title" binding:"omitempty,min=1,max=255"`
	Description *string `json:"description" binding:"omitempty,max=2000"`
}

type SurveyHandler struct {
	generator      *services.SurveyGenerator
	surveys        *services.SurveyDirectory
	session        *services.Session
	maxUploadBytes int64
	log            *logger.Logger
}

func NewSurveyHandler(generator *services.SurveyGenerator, surveys *services.SurveyDirectory, session *services.Session, maxUploadBytes int64, log *logger.Logger) *SurveyHandler {
	return &SurveyHandler{
		generator:      generator,
		surveys:        surveys,
		session:        session,
		maxUploadBytes: maxUploadBytes,
		log:            log.With("handler", "survey"),
	}
}

func (h *SurveyHandler) CreateSurvey(ctx *gin.Context) {
	user, ok := h.currentUser(ctx)

	if !ok {
		return
	}

	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, h.maxUploadBytes+formOverhead)

	file, fileErr := ctx.FormFile("file")
	surveyName := strings.TrimSpace(ctx.PostForm("surveyName"))

	var tooLarge *http.MaxBytesError

	if errors.As(fileErr, &tooLarge) || (file != nil && file.Size > h.maxUploadBytes) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "File is too large"})
		return
	}

	if surveyName == "" || fileErr != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Survey name and file are required"})
		return
	}

	content, err := readPlainText(file, h.maxUploadBytes)

	if err != nil {
		if errors.Is(err, errNotPlainText) {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Only UTF-8 plain text files are supported"})
			return
		}
		h.log.Error("Failed to read upload", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	survey, err := h.generator.Generate(ctx.Request.Context(), services.GenerateInput{
		SlideName: surveyName,
		Content:   content,
		CreatorID: user.ID,
	})

	if err != nil {
		h.log.Error("Failed to create survey", "error", err, "user_id", user.ID)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success":     true,
		"userHashkey": user.Hashkey,
		"surveyId":    survey.Hashkey,
	})
}

func readPlainText(file *multipart.FileHeader, limit int64) (string, error) {
	if !isPlainText(file) {
		return "", errNotPlainText
	}

	f, err := file.Open()

	if err != nil {
		return "", err
	}

	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit))

	if err != nil {
		return "", err
	}

	if !utf8.Valid(data) {
		return "", errNotPlainText
	}

	return string(data), nil
}

func isPlainText(file *multipart.FileHeader) bool {
	if mediaType, _, err := mime.ParseMediaType(file.Header.Get("Content-Type")); err == nil && mediaType == "text/plain" {
		return true
	}

	return strings.EqualFold(filepath.Ext(file.Filename), ".txt")
}

func (h *SurveyHandler) ListUserSurveys(ctx *gin.Context) {
	user, ok := h.currentUser(ctx)

	if !ok {
		return
	}

	surveys, err := h.surveys.GetByCreator(ctx.Request.Context(), user.ID)

	if err != nil {
		h.log.Error("Failed to list surveys", "error", err, "user_id", user.ID)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"surveys": types.NewSurveySummaries(surveys),
		"count":   len(surveys),
	})
}

func (h *SurveyHandler) UpdateUserSurvey(ctx *gin.Context) {
	surveyID, err := utils.GetSurveyID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var body UpdateSurveyRequest

	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, ok := h.currentUser(ctx)

	if !ok {
		return
	}

	survey, err := h.surveys.Update(ctx.Request.Context(), surveyID, user.ID, services.SurveyUpdate{
		Title:       body.Title,
		Description: body.Description,
	})

	if err != nil {
		switch {
		case errors.Is(err, services.ErrSurveyNotFound):
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Survey not found"})
		case errors.Is(err, services.ErrInvalidSurveyInput):
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "Title cannot be empty"})
		default:
			h.log.Error("Failed to update survey", "error", err, "survey_id", surveyID)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update survey"})
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "survey": types.NewSurveySummary(*survey)})
}

func (h *SurveyHandler) DeleteUserSurvey(ctx *gin.Context) {
	surveyID, err := utils.GetSurveyID(ctx)

	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, ok := h.currentUser(ctx)

	if !ok {
		return
	}

	deleted, err := h.surveys.Deactivate(ctx.Request.Context(), surveyID, user.ID)

	if err != nil {
		h.log.Error("Failed to delete survey", "error", err, "survey_id", surveyID)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete survey"})
		return
	}

	if !deleted {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Survey not found"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true})
}

// GetPublicSurvey serves an active survey by hashkey. No session required.
func (h *SurveyHandler) GetPublicSurvey(ctx *gin.Context) {
	key := ctx.Param("hashkey")

	if !hashkey.Valid(key) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid survey ID format"})
		return
	}

	survey, err := h.surveys.GetByHashkey(ctx.Request.Context(), key)

	if err != nil {
		if errors.Is(err, services.ErrSurveyNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "Survey not found"})
			return
		}
		h.log.Error("Failed to load survey", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	ctx.JSON(http.StatusOK, types.NewPublicSurvey(*survey))
}

// currentUser loads the caller's directory record. It writes the error
// response itself when it returns false.
func (h *SurveyHandler) currentUser(ctx *gin.Context) (*models.User, bool) {
	claims, err := utils.GetCurrentClaims(ctx)

	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}

	user, err := h.session.ResolveUser(ctx.Request.Context(), claims)

	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		} else {
			h.log.Error("Failed to resolve user", "error", err)
			ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		}
		return nil, false
	}

	return user, true
}
