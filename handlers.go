package main

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"htrweb/pkg/htr"
	"htrweb/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// maxUploadBytes caps a single image upload.
const maxUploadBytes = 20 * 1024 * 1024

type server struct {
	cfg      config
	avail    htr.Availability
	sessions *sessionStore
}

func setupRoutes(r *gin.Engine, s *server) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/engine", s.engineStatusHandler)
	r.POST("/session", s.createSessionHandler)
	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.DELETE("/session", s.deleteSessionHandler)
	authGroup.POST("/pipeline", s.setPipelineHandler)
	authGroup.GET("/pipeline", s.getPipelineHandler)
	authGroup.POST("/transcribe", s.transcribeHandler)
	authGroup.POST("/batch", s.batchHandler)
}

// invoker picks the engine for one run: canned transcriptions in demo mode,
// per-request with ?demo=1, or when no engine is installed; the real engine
// otherwise.
func (s *server) invoker(c *gin.Context, ws *htr.Workspace) (htr.Invoker, string) {
	if s.cfg.demo || c.Query("demo") == "1" || !s.avail.EngineUsable() {
		return htr.NewMockEngine(), "mock"
	}
	return htr.NewFlowEngine(ws, s.avail, s.cfg.engineBin, s.cfg.timeout), "flow"
}

func (s *server) engineStatusHandler(c *gin.Context) {
	kind := "flow"
	if s.cfg.demo || !s.avail.EngineUsable() {
		kind = "mock"
	}
	c.JSON(http.StatusOK, gin.H{
		"native":     s.avail.Native,
		"subprocess": s.avail.Subprocess,
		"bin_path":   s.avail.BinPath,
		"demo":       s.cfg.demo,
		"engine":     kind,
	})
}

func (s *server) createSessionHandler(c *gin.Context) {
	sess, err := s.sessions.create(s.cfg.lang)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	token, err := mintSessionToken(sess.ID)
	if err != nil {
		s.sessions.remove(sess.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sess.ID, "token": token})
}

func (s *server) deleteSessionHandler(c *gin.Context) {
	sess, ok := s.sessionFromContext(c)
	if !ok {
		return
	}
	s.sessions.remove(sess.ID)
	c.JSON(http.StatusOK, gin.H{"message": "session closed"})
}

// setPipelineHandler replaces the session's pipeline. Three forms: an
// uploaded YAML file, a custom model pair, or the default. Whatever comes in,
// the export destination is rebound to the session workspace.
func (s *server) setPipelineHandler(c *gin.Context) {
	sess, ok := s.sessionFromContext(c)
	if !ok {
		return
	}

	var spec *htr.PipelineSpec
	var warning string

	if file, err := c.FormFile("pipeline"); err == nil {
		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read pipeline upload"})
			return
		}
		doc, err := io.ReadAll(src)
		_ = src.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read pipeline upload"})
			return
		}
		spec, err = htr.ParsePipeline(doc)
		if err != nil {
			warning = fmt.Sprintf("uploaded pipeline rejected, default applied: %v", err)
		}
	} else {
		var req struct {
			Mode              string `json:"mode"`
			SegmentationModel string `json:"segmentation_model"`
			TextModel         string `json:"text_model"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		switch req.Mode {
		case "", "default":
			spec = htr.DefaultPipeline()
		case "custom":
			var err error
			spec, err = htr.CustomPipeline(req.SegmentationModel, req.TextModel)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be default or custom"})
			return
		}
	}

	applyLanguage(spec, s.cfg.lang)
	if synthesized := spec.BindExport(sess.ws.OutputDir()); synthesized && warning == "" {
		warning = "pipeline had no Export step, one was appended"
	}

	sess.mu.Lock()
	sess.spec = spec
	sess.warning = warning
	sess.mu.Unlock()

	doc, err := spec.Marshal()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to serialize pipeline"})
		return
	}
	resp := gin.H{"pipeline": string(doc)}
	if warning != "" {
		resp["warning"] = warning
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) getPipelineHandler(c *gin.Context) {
	sess, ok := s.sessionFromContext(c)
	if !ok {
		return
	}
	sess.mu.Lock()
	doc, err := sess.spec.Marshal()
	warning := sess.warning
	sess.mu.Unlock()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to serialize pipeline"})
		return
	}
	resp := gin.H{"pipeline": string(doc)}
	if warning != "" {
		resp["warning"] = warning
	}
	c.JSON(http.StatusOK, resp)
}

// transcribeHandler runs one uploaded image through the session pipeline and
// returns its transcript, inline or as a download with ?download=1.
func (s *server) transcribeHandler(c *gin.Context) {
	sess, ok := s.sessionFromContext(c)
	if !ok {
		return
	}
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file missing"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image too large"})
		return
	}
	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read image upload"})
		return
	}
	path, err := sess.ws.SaveImage(file.Filename, src)
	_ = src.Close()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store image"})
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	inv, kind := s.invoker(c, sess.ws)
	ctx, span := otel.Tracer("htrweb").Start(c.Request.Context(), "transcribe")
	span.SetAttributes(attribute.String("engine", kind))
	defer span.End()

	start := time.Now()
	outcome := htr.Transcribe(ctx, path, sess.spec, inv)
	metrics.RunDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if !outcome.OK() {
		metrics.RunsTotal.WithLabelValues(kind, "error").Inc()
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   outcome.Err,
			"engine":  kind,
			"outputs": htr.ListOutputs(sess.ws.OutputDir()),
		})
		return
	}
	metrics.RunsTotal.WithLabelValues(kind, "ok").Inc()

	if c.Query("download") == "1" {
		name := outcome.ImageID + "_transcription.txt"
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(outcome.Text))
		return
	}
	c.JSON(http.StatusOK, gin.H{"image_id": outcome.ImageID, "text": outcome.Text, "engine": kind})
}

// batchHandler transcribes every uploaded image sequentially and returns the
// per-image outcomes plus the combined report.
func (s *server) batchHandler(c *gin.Context) {
	sess, ok := s.sessionFromContext(c)
	if !ok {
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	files := form.File["images"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no images uploaded"})
		return
	}
	metrics.BatchSize.Observe(float64(len(files)))

	var paths []string
	for _, file := range files {
		if file.Size > maxUploadBytes {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("image %s too large", file.Filename)})
			return
		}
		src, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read image upload"})
			return
		}
		path, err := sess.ws.SaveImage(file.Filename, src)
		_ = src.Close()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store image"})
			return
		}
		paths = append(paths, path)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	inv, kind := s.invoker(c, sess.ws)
	ctx, span := otel.Tracer("htrweb").Start(c.Request.Context(), "batch")
	span.SetAttributes(attribute.String("engine", kind), attribute.Int("images", len(paths)))
	defer span.End()

	start := time.Now()
	report := htr.RunBatch(ctx, paths, sess.spec, inv, nil)
	metrics.RunDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if report.Succeeded == report.Total {
		metrics.RunsTotal.WithLabelValues(kind, "ok").Inc()
	} else {
		metrics.RunsTotal.WithLabelValues(kind, "error").Inc()
	}

	if c.Query("download") == "1" {
		c.Header("Content-Disposition", `attachment; filename="batch_transcription.txt"`)
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(report.Combined()))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary":   report.Summary(),
		"succeeded": report.Succeeded,
		"total":     report.Total,
		"combined":  report.Combined(),
		"outcomes":  report.Outcomes,
		"engine":    kind,
	})
}
