package utils

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

func GetSurveyID(ctx *gin.Context) (uint, error) {
	surveyIDStr := ctx.Param("id")

	if surveyIDStr == "" {
		return 0, errors.New("Survey ID not found")
	}

	surveyID, err := strconv.ParseUint(surveyIDStr, 10, 32)

	if err != nil || surveyID == 0 {
		return 0, errors.New("Invalid Survey ID")
	}

	return uint(surveyID), nil
}
