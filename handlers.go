package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/photoproos/studio_backend/utils"
)

// respondError writes {"error", "code"}; unexpected failures are logged and hidden behind INTERNAL.
func respondError(c *gin.Context, err error) {
	appErr := utils.AsAppError(err)
	if appErr.Code == utils.CodeInternal {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": string(utils.CodeInternal)})
		return
	}
	body := gin.H{"error": appErr.Error(), "code": string(appErr.Code)}
	if len(appErr.Fields) > 0 {
		body["fields"] = appErr.Fields
	}
	c.AbortWithStatusJSON(appErr.Code.HTTPStatus(), body)
}

func organizationId(c *gin.Context) (string, bool) {
	orgId, ok := utils.GetOrganizationIdFromContext(c.Request.Context())
	if !ok || orgId == "" {
		respondError(c, utils.NewForbiddenError("token is not bound to an organization"))
		return "", false
	}
	return orgId, true
}

func pathId(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		respondError(c, utils.NewValidationError("invalid id %q", c.Param("id")))
		return 0, false
	}
	return id, true
}

func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		respondError(c, utils.NewValidationError("invalid request body: %s", err.Error()))
		return false
	}
	return true
}

// pageParams reads ?limit= and ?after= for cursor pagination.
func pageParams(c *gin.Context) (int, *string, bool) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(c, utils.NewValidationError("invalid limit %q", v))
			return 0, nil, false
		}
		limit = n
	}
	var after *string
	if v := c.Query("after"); v != "" {
		after = &v
	}
	return limit, after, true
}

// asOfParam parses an optional YYYY-MM-DD date, defaulting to today.
func (s *server) asOfParam(c *gin.Context, value string) (time.Time, bool) {
	if value == "" {
		return utils.ToDate(s.now()), true
	}
	asOf, err := utils.ParseDate(value)
	if err != nil {
		respondError(c, err)
		return time.Time{}, false
	}
	return asOf, true
}

// entityById serves GET /:id and the POST /:id/<action> routes that take no body.
func entityById[T any](fn func(ctx context.Context, organizationId string, id int) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgId, ok := organizationId(c)
		if !ok {
			return
		}
		id, ok := pathId(c)
		if !ok {
			return
		}
		result, err := fn(c.Request.Context(), orgId, id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// entityCreate binds the body into In and answers 201 with the created entity.
func entityCreate[In any, T any](fn func(ctx context.Context, organizationId string, input *In) (*T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgId, ok := organizationId(c)
		if !ok {
			return
		}
		var input In
		if !bindJSON(c, &input) {
			return
		}
		result, err := fn(c.Request.Context(), orgId, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, result)
	}
}

// entityList binds query filters into F and returns one page.
func entityList[F any, T any](fn func(ctx context.Context, organizationId string, limit int, after *string, filter F) (T, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		orgId, ok := organizationId(c)
		if !ok {
			return
		}
		limit, after, ok := pageParams(c)
		if !ok {
			return
		}
		var filter F
		if err := c.ShouldBindQuery(&filter); err != nil {
			respondError(c, utils.NewValidationError("invalid filter: %s", err.Error()))
			return
		}
		page, err := fn(c.Request.Context(), orgId, limit, after, filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, page)
	}
}
