package controllers

import (
	"context"
	"net/http"
	"time"

	"civicsync-issues/lifecycle"
	"civicsync-issues/middlewares"
	"civicsync-issues/models"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const requestTimeout = 10 * time.Second

// IssueController exposes the issue lifecycle over HTTP.
type IssueController struct {
	issues *lifecycle.Service
}

func NewIssueController(issues *lifecycle.Service) *IssueController {
	return &IssueController{issues: issues}
}

// CreateIssue handles the creation of a new issue reported by the caller
func (ic *IssueController) CreateIssue(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var input struct {
		CityID      string   `json:"cityId" binding:"required"`
		Latitude    *float64 `json:"latitude" binding:"required"`
		Longitude   *float64 `json:"longitude" binding:"required"`
		Category    string   `json:"category" binding:"required,max=100"`
		Description string   `json:"description" binding:"required,max=2000"`
		Date        string   `json:"date" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	cityID, err := primitive.ObjectIDFromHex(input.CityID)
	if err != nil {
		badRequest(c, "Invalid city ID")
		return
	}
	date, err := parseDate(input.Date)
	if err != nil {
		badRequest(c, "Invalid date")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	issue, err := ic.issues.CreateIssue(ctx, lifecycle.CreateIssueInput{
		CityID:      cityID,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		Category:    input.Category,
		Description: input.Description,
		Date:        date,
		ReporterID:  caller.UserID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, issue)
}

// GetIssue retrieves an issue with its reporter, fiscal and manager
func (ic *IssueController) GetIssue(c *gin.Context) {
	issueID, ok := objectIDParam(c, "issueId", "Invalid issue ID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	detail, err := ic.issues.GetIssueDetail(ctx, issueID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// ListCityIssues lists the issues of a city, optionally bounded by creation date
func (ic *IssueController) ListCityIssues(c *gin.Context) {
	cityID, ok := objectIDParam(c, "cityId", "Invalid city ID")
	if !ok {
		return
	}

	var rng *lifecycle.DateRange
	if from, to := c.Query("from"), c.Query("to"); from != "" || to != "" {
		rng = &lifecycle.DateRange{}
		if from != "" {
			t, err := parseDate(from)
			if err != nil {
				badRequest(c, "Invalid from date")
				return
			}
			rng.From = &t
		}
		if to != "" {
			t, err := parseUpperBound(to)
			if err != nil {
				badRequest(c, "Invalid to date")
				return
			}
			rng.To = &t
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	issues, err := ic.issues.ListIssuesForCity(ctx, cityID, rng)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, issues)
}

// ListReporterIssues lists the issues one user reported in a city
func (ic *IssueController) ListReporterIssues(c *gin.Context) {
	cityID, ok := objectIDParam(c, "cityId", "Invalid city ID")
	if !ok {
		return
	}
	reporterID, ok := objectIDParam(c, "userId", "Invalid user ID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	issues, err := ic.issues.ListIssuesForReporter(ctx, cityID, reporterID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, issues)
}

// UpdateAssignment assigns userId to the fiscal or manager field. Calling it
// again as the current holder releases the field; omitting userId releases it.
func (ic *IssueController) UpdateAssignment(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	issueID, ok := objectIDParam(c, "issueId", "Invalid issue ID")
	if !ok {
		return
	}

	var input struct {
		Field  string `json:"field" binding:"required"`
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	var target *primitive.ObjectID
	if input.UserID != "" {
		id, err := primitive.ObjectIDFromHex(input.UserID)
		if err != nil {
			badRequest(c, "Invalid user ID")
			return
		}
		target = &id
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	issue, err := ic.issues.UpdateAssignmentField(ctx, issueID, input.Field, caller, target)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, issue)
}

// MarkSolved lets the reporter close their issue
func (ic *IssueController) MarkSolved(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	issueID, ok := objectIDParam(c, "issueId", "Invalid issue ID")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	issue, err := ic.issues.MarkSolved(ctx, issueID, caller)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, issue)
}

func requireCaller(c *gin.Context) (models.Caller, bool) {
	caller, ok := middlewares.CallerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated", "code": "auth_required"})
	}
	return caller, ok
}

func objectIDParam(c *gin.Context, name, message string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		badRequest(c, message)
		return primitive.NilObjectID, false
	}
	return id, true
}

// parseDate accepts RFC 3339 timestamps and plain calendar dates.
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, value)
}

// parseUpperBound is parseDate for inclusive upper bounds: a plain calendar
// date covers the whole of that day.
func parseUpperBound(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	day, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, err
	}
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}
