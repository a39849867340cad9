package output

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"
	"time"
)

// TemplateFormatter formats output using a custom Go text/template.
type TemplateFormatter struct {
	templateStr string
	template    *template.Template
	mu          sync.Mutex
}

// templateData wraps Result to add computed fields.
type templateData struct {
	*Result
	TotalSize   uint64
	TotalChunks int
}

// NewTemplateFormatter creates a new template formatter with the given template string.
func NewTemplateFormatter(templateStr string) *TemplateFormatter {
	return &TemplateFormatter{
		templateStr: templateStr,
	}
}

// SetTemplate sets or updates the template string.
func (f *TemplateFormatter) SetTemplate(templateStr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.templateStr = templateStr
	f.template = nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		// Usage: {{date .Header.Created "2006-01-02"}}
		"date": func(t time.Time, layout string) string {
			if t.IsZero() {
				return ""
			}
			return t.Format(layout)
		},

		// Usage: {{bytes .Size}}
		"bytes": formatSize,

		// Usage: {{hex .Header.CRCClear}}
		"hex": func(v uint32) string {
			return fmt.Sprintf("%08x", v)
		},
	}
}

// Format writes the formatted output to the buffer.
func (f *TemplateFormatter) Format(w *bytes.Buffer, r *Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.template == nil {
		tmpl, err := template.New("output").Funcs(templateFuncs()).Parse(f.templateStr)
		if err != nil {
			return err
		}
		f.template = tmpl
	}

	data := templateData{
		Result:      r,
		TotalSize:   r.TotalSize(),
		TotalChunks: r.TotalChunks(),
	}

	return f.template.Execute(w, data)
}

// defaultTemplate is the template used when no custom template is provided.
const defaultTemplate = `{{range .Files}}{{.SizeHuman}}	{{.Name}}
{{end}}`

func init() {
	Register("template", func() Formatter {
		return NewTemplateFormatter(defaultTemplate)
	})
}

// Ensure TemplateFormatter implements Formatter.
var _ Formatter = (*TemplateFormatter)(nil)
