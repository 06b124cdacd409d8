package notifications

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/angelmondragon/carestaff-backend/pkg/enums"
)

//go:embed templates.yaml
var embeddedTemplates []byte

type templateSpec struct {
	Subject string `yaml:"subject"`
	Body    string `yaml:"body"`
	Short   string `yaml:"short"`
}

type compiledTemplate struct {
	subject *template.Template
	body    *template.Template
	short   *template.Template
}

// Rendered is a message ready for one channel.
type Rendered struct {
	Subject *string
	Body    string
}

// Catalog holds the parsed message templates.
type Catalog struct {
	templates map[enums.NotificationTemplate]compiledTemplate
}

// LoadCatalog parses the embedded templates.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(embeddedTemplates)
}

// ParseCatalog parses a YAML template document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var specs map[string]templateSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	catalog := &Catalog{templates: make(map[enums.NotificationTemplate]compiledTemplate, len(specs))}
	for name, spec := range specs {
		if strings.TrimSpace(spec.Body) == "" && strings.TrimSpace(spec.Short) == "" {
			return nil, fmt.Errorf("template %s has no body", name)
		}
		var compiled compiledTemplate
		var err error
		if compiled.subject, err = compile(name+".subject", spec.Subject); err != nil {
			return nil, err
		}
		if compiled.body, err = compile(name+".body", spec.Body); err != nil {
			return nil, err
		}
		if compiled.short, err = compile(name+".short", spec.Short); err != nil {
			return nil, err
		}
		catalog.templates[enums.NotificationTemplate(name)] = compiled
	}
	return catalog, nil
}

func compile(name, text string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return tmpl, nil
}

// Has reports whether a template is defined.
func (c *Catalog) Has(name enums.NotificationTemplate) bool {
	_, ok := c.templates[name]
	return ok
}

// Render produces the message for channel. Email prefers the long body; every other channel prefers the short form.
func (c *Catalog) Render(name enums.NotificationTemplate, channel enums.NotificationChannel, vars map[string]string) (Rendered, error) {
	compiled, ok := c.templates[name]
	if !ok {
		return Rendered{}, fmt.Errorf("unknown template %s", name)
	}
	if vars == nil {
		vars = map[string]string{}
	}

	primary, fallback := compiled.short, compiled.body
	if channel == enums.ChannelEmail {
		primary, fallback = compiled.body, compiled.short
	}
	if primary == nil {
		primary = fallback
	}
	body, err := execute(primary, vars)
	if err != nil {
		return Rendered{}, err
	}
	out := Rendered{Body: strings.TrimSpace(body)}

	if channel == enums.ChannelEmail && compiled.subject != nil {
		subject, err := execute(compiled.subject, vars)
		if err != nil {
			return Rendered{}, err
		}
		subject = strings.TrimSpace(subject)
		out.Subject = &subject
	}
	return out, nil
}

func execute(tmpl *template.Template, vars map[string]string) (string, error) {
	var b strings.Builder
	if err := tmpl.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return b.String(), nil
}
