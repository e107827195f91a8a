package handlers

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Brownie44l1/catdog-api/internal/model"
	"github.com/Brownie44l1/catdog-api/internal/pipeline"
	"github.com/Brownie44l1/catdog-api/internal/version"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded HTML pages for gin's SetHTMLTemplate.
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"percent": model.FormatPercent,
		"mulf":    func(v float64) float64 { return v * 100 },
	}).ParseFS(templateFS, "templates/*.html")
}

type page struct {
	Version     string
	Model       model.Info
	Stats       pipeline.StatsSnapshot
	Threshold   float64
	MaxUploadMB int64
	Extensions  string

	Filename    string
	Result      *pipeline.Result
	Thumbnail   template.URL
	Description string
	Fact        string
	Error       string
}

func (h *Handler) page() page {
	opts := h.pipeline.Options()
	return page{
		Version:     version.Get().Short(),
		Model:       h.pipeline.ModelInfo(),
		Stats:       h.pipeline.Stats(),
		Threshold:   opts.ConfidenceThreshold * 100,
		MaxUploadMB: opts.MaxBytes >> 20,
		Extensions:  strings.Join(pipeline.AllowedExtensions, ", "),
	}
}

// Index renders the upload form.
func (h *Handler) Index(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", h.page())
}

// Classify handles the HTML form post and renders the result on the same page.
func (h *Handler) Classify(c *gin.Context) {
	upload, err := h.readUpload(c)
	if err == nil {
		var res *pipeline.Result
		res, err = h.pipeline.Classify(c.Request.Context(), upload)
		if err == nil {
			p := h.page()
			p.Filename = upload.Filename
			p.Result = res
			// Thumbnail is a data URI rendered by imaging, not user input.
			p.Thumbnail = template.URL(res.Thumbnail)
			p.Description = res.Level.Description()
			p.Fact = pipeline.FactFor(res.Label, p.Stats.Predictions)
			c.HTML(http.StatusOK, "index.html", p)
			return
		}
	}

	status := StatusFor(err)
	p := h.page()
	p.Error = err.Error()
	if status == http.StatusInternalServerError {
		p.Error = "Prediction failed"
	}
	c.HTML(status, "index.html", p)
}
