package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"povgallery/internal/llm"
	"povgallery/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// StartGenerationRequest 启动生成循环的请求，source 可选覆盖默认内容源。
type StartGenerationRequest struct {
	Source string `json:"source"`
}

// StartGeneration 激活批量生成循环。重复调用幂等。
func (h *HTTPHandler) StartGeneration(c *gin.Context) {
	var req StartGenerationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			InvalidPayload(c)
			return
		}
	}

	if source := strings.TrimSpace(req.Source); source != "" {
		sceneSource, err := llm.NewSceneSource(h.cfg, source)
		if err != nil {
			BadRequest(c, ErrCodeInvalidRequest, err.Error())
			return
		}
		if !h.runner.SetSource(sceneSource) {
			logrus.WithField("source", source).Warn("source override ignored while generation is active")
		}
	}

	if err := h.runner.Start(); err != nil {
		if errors.Is(err, llm.ErrMissingCredential) {
			BadRequest(c, ErrCodeMissingCredential, "generation credential is not configured")
			return
		}
		logrus.WithError(err).Error("failed to start generation")
		InternalError(c, "failed to start generation")
		return
	}

	c.JSON(http.StatusOK, h.runner.Stats())
}

// StopGeneration 停止生成循环。在途批次的结果仍会入库。
func (h *HTTPHandler) StopGeneration(c *gin.Context) {
	h.runner.Stop()
	c.JSON(http.StatusOK, h.runner.Stats())
}

// GenerationStats 返回当前生成进度快照
func (h *HTTPHandler) GenerationStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.runner.Stats())
}

// CredentialsStatus 告知前端各内容源凭证是否就绪
func (h *HTTPHandler) CredentialsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"source":     strings.ToLower(strings.TrimSpace(h.cfg.GenerationSource)),
		"gemini":     strings.TrimSpace(h.cfg.GeminiAPIKey) != "",
		"volcengine": strings.TrimSpace(h.cfg.VolcengineAPIKey) != "",
	})
}

// StreamGenerationEvents 建立 SSE 连接，推送生成进度与记录变更。
func (h *HTTPHandler) StreamGenerationEvents(c *gin.Context) {
	clientID := strings.TrimSpace(c.Query("client_id"))
	if clientID == "" {
		clientID = utils.GenerateUUID()
	}

	ctx := c.Request.Context()
	events := make(chan sseMessage, 16)
	h.registerSSEClient(clientID, events)
	defer h.unregisterSSEClient(clientID, events)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	if flusher, ok := c.Writer.(http.Flusher); ok {
		flusher.Flush()
	}

	heartbeatTicker := time.NewTicker(10 * time.Second)
	defer heartbeatTicker.Stop()

	logrus.WithField("client_id", clientID).Info("generation sse connected")

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			logrus.WithField("client_id", clientID).Info("generation sse disconnected")
			return false
		case <-heartbeatTicker.C:
			c.SSEvent("ping", gin.H{"ts": time.Now().UnixMilli()})
			return true
		case msg, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(msg.event, msg.data)
			return true
		}
	})
}
