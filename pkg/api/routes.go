// Package api wires the thin inbound control surface onto the core's Store
// and Grouper: create_event, enqueue_single_analysis,
// enqueue_group_analysis, run_grouper_now, job and escalation operator
// actions. Handlers stay thin — every decision lives in pkg/store,
// pkg/grouper, and pkg/worker; this package only translates HTTP to calls.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/wafcore/pkg/grouper"
	"github.com/codeready-toolchain/wafcore/pkg/models"
	"github.com/codeready-toolchain/wafcore/pkg/store"
)

// RegisterRoutes mounts the control surface under /api/v1.
func RegisterRoutes(router *gin.Engine, st *store.Store, grp *grouper.Grouper) {
	v1 := router.Group("/api/v1")

	v1.POST("/events", createEventHandler(st))
	v1.POST("/jobs/single", enqueueJobHandler(st, models.QueueSingle))
	v1.POST("/jobs/group", enqueueJobHandler(st, models.QueueGroup))
	v1.POST("/grouper/run", runGrouperHandler(grp))

	v1.GET("/jobs/:queue", listJobsHandler(st))
	v1.POST("/jobs/:queue/:id/cancel", cancelJobHandler(st))
	v1.POST("/jobs/:queue/:id/retry", retryJobHandler(st))
	v1.POST("/jobs/:queue/bulk-pause", bulkPauseHandler(st))
	v1.POST("/jobs/:queue/bulk-resume", bulkResumeHandler(st))
	v1.POST("/jobs/:queue/reset-stuck", resetStuckHandler(st))

	v1.GET("/escalations/:sink", listEscalationsHandler(st))
	v1.POST("/escalations/:id/:sink/retry", retrySinkHandler(st))
}

func createEventHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var event models.Event
		if err := c.ShouldBindJSON(&event); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		created, err := st.CreateEvent(c.Request.Context(), &event)
		if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
			respondStoreErr(c, err)
			return
		}

		status := http.StatusCreated
		if errors.Is(err, store.ErrAlreadyExists) {
			status = http.StatusOK
		}
		c.JSON(status, created)
	}
}

type enqueueRequest struct {
	TargetID int64 `json:"target_id" binding:"required"`
	Priority int   `json:"priority"`
}

func enqueueJobHandler(st *store.Store, queue models.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req enqueueRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		job, err := st.Enqueue(c.Request.Context(), queue, req.TargetID, req.Priority)
		if err != nil && !errors.Is(err, store.ErrAlreadyExists) {
			respondStoreErr(c, err)
			return
		}

		status := http.StatusCreated
		if errors.Is(err, store.ErrAlreadyExists) {
			status = http.StatusOK
		}
		c.JSON(status, job)
	}
}

func runGrouperHandler(grp *grouper.Grouper) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := grp.RunNow(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func listJobsHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		queue, err := parseQueue(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		limit := queryInt(c, "limit", 100)
		jobs, err := st.ListJobs(c.Request.Context(), queue, c.Query("status"), limit)
		if err != nil {
			respondStoreErr(c, err)
			return
		}
		c.JSON(http.StatusOK, jobs)
	}
}

func cancelJobHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		queue, jobID, err := parseQueueAndJobID(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := st.Cancel(c.Request.Context(), queue, jobID); err != nil {
			respondStoreErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func retryJobHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		queue, jobID, err := parseQueueAndJobID(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := st.Retry(c.Request.Context(), queue, jobID); err != nil {
			respondStoreErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func bulkPauseHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		queue, err := parseQueue(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		count, err := st.BulkPause(c.Request.Context(), queue)
		if err != nil {
			respondStoreErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"paused": count})
	}
}

func bulkResumeHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		queue, err := parseQueue(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		count, err := st.BulkResume(c.Request.Context(), queue)
		if err != nil {
			respondStoreErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"resumed": count})
	}
}

func resetStuckHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		queue, err := parseQueue(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		minAge := time.Duration(queryInt(c, "min_running_age_seconds", 300)) * time.Second
		count, err := st.ResetIfStuck(c.Request.Context(), queue, minAge)
		if err != nil {
			respondStoreErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reset": count})
	}
}

func listEscalationsHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		sink, err := parseSink(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		limit := queryInt(c, "limit", 100)
		escalations, err := st.ListPendingEscalations(c.Request.Context(), sink, limit)
		if err != nil {
			respondStoreErr(c, err)
			return
		}
		c.JSON(http.StatusOK, escalations)
	}
}

func retrySinkHandler(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "id must be an integer"})
			return
		}
		sink, err := parseSink(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := st.RetrySink(c.Request.Context(), id, sink); err != nil {
			respondStoreErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func respondStoreErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrConcurrentModification):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNoneAvailable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case store.IsValidationError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func parseQueue(c *gin.Context) (models.Queue, error) {
	switch c.Param("queue") {
	case "single":
		return models.QueueSingle, nil
	case "group":
		return models.QueueGroup, nil
	default:
		return "", errors.New(`queue must be "single" or "group"`)
	}
}

func parseQueueAndJobID(c *gin.Context) (models.Queue, int64, error) {
	queue, err := parseQueue(c)
	if err != nil {
		return "", 0, err
	}
	jobID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return "", 0, errors.New("id must be an integer")
	}
	return queue, jobID, nil
}

func parseSink(c *gin.Context) (models.SinkName, error) {
	switch c.Param("sink") {
	case "notification":
		return models.SinkNotification, nil
	case "ticket":
		return models.SinkTicket, nil
	case "blocklist":
		return models.SinkBlocklist, nil
	default:
		return "", errors.New(`sink must be "notification", "ticket", or "blocklist"`)
	}
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if v, err := strconv.Atoi(c.Query(key)); err == nil && v > 0 {
		return v
	}
	return fallback
}
