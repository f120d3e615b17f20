package media

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/chimera-labs/trend-skills/internal/models"
)

const draftTemplate = `{{if .Persona}}[{{.Persona}}] {{end}}{{.Prompt}}
{{- if .TrendRefs}}

Trending: {{range $i, $ref := .TrendRefs}}{{if $i}}, {{end}}#{{$ref}}{{end}}
{{- end}}
`

// TemplateBackend renders offline text drafts from the brief. It never
// calls out and costs nothing, so it is always available for text.
type TemplateBackend struct {
	tmpl *template.Template
}

func NewTemplateBackend() *TemplateBackend {
	return &TemplateBackend{
		tmpl: template.Must(template.New("draft").Parse(draftTemplate)),
	}
}

func (b *TemplateBackend) Name() string {
	return "template"
}

func (b *TemplateBackend) Supports(t models.MediaType) bool {
	return t == models.MediaTypeText
}

func (b *TemplateBackend) Estimate(models.MediaGenerationRequest) float64 {
	return 0
}

func (b *TemplateBackend) Generate(ctx context.Context, req models.MediaGenerationRequest) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, req.Brief); err != nil {
		return nil, fmt.Errorf("failed to render draft: %w", err)
	}

	text := truncateWords(strings.TrimSpace(buf.String()), req.Constraints.Length)

	confidence := 0.3
	if len(req.Brief.TrendRefs) > 0 {
		confidence = 0.45
	}

	return &Result{
		Output: models.MediaOutput{
			Type:     models.MediaTypeText,
			MimeType: "text/plain",
			Text:     text,
			Bytes:    len(text),
		},
		Data:       []byte(text),
		Confidence: confidence,
		Model:      "draft-template",
	}, nil
}

// truncateWords keeps at most n words; n <= 0 keeps everything.
func truncateWords(s string, n int) string {
	if n <= 0 {
		return s
	}
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ")
}
