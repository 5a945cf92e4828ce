// Package attribution renders the "Powered by" footer shown under the feedback form.
package attribution

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

const (
	DefaultPrefixText = "Powered by"
	DefaultLinkLabel  = "Doorbell.io"
	DefaultLinkURL    = "https://doorbell.io"

	textFormatWithURL = "%s %s (%s)"
)

// Config captures the footer text and its embedded hyperlink.
type Config struct {
	PrefixText string
	LinkLabel  string
	LinkURL    string
	LinkClass  string
}

var (
	attributionTemplate = template.Must(template.New("attribution").Parse(
		`{{.PrefixText}} <a{{if .LinkClass}} class="{{.LinkClass}}"{{end}} href="{{.LinkURL}}">{{.LinkLabel}}</a>`))
)

// Default returns the stock attribution.
func Default() Config {
	return Config{
		PrefixText: DefaultPrefixText,
		LinkLabel:  DefaultLinkLabel,
		LinkURL:    DefaultLinkURL,
	}
}

func (config Config) normalized() Config {
	defaults := Default()
	normalizedConfig := Config{
		PrefixText: strings.TrimSpace(config.PrefixText),
		LinkLabel:  strings.TrimSpace(config.LinkLabel),
		LinkURL:    strings.TrimSpace(config.LinkURL),
		LinkClass:  strings.TrimSpace(config.LinkClass),
	}
	if normalizedConfig.PrefixText == "" {
		normalizedConfig.PrefixText = defaults.PrefixText
	}
	if normalizedConfig.LinkLabel == "" {
		normalizedConfig.LinkLabel = defaults.LinkLabel
	}
	if normalizedConfig.LinkURL == "" {
		normalizedConfig.LinkURL = defaults.LinkURL
	}
	return normalizedConfig
}

// Render returns the footer HTML for the provided configuration.
func Render(config Config) (template.HTML, error) {
	var buffer bytes.Buffer
	if err := attributionTemplate.Execute(&buffer, config.normalized()); err != nil {
		return "", err
	}
	return template.HTML(buffer.String()), nil
}

// RenderText returns the footer for views that cannot show hyperlinks.
func RenderText(config Config) string {
	normalizedConfig := config.normalized()
	return fmt.Sprintf(textFormatWithURL, normalizedConfig.PrefixText, normalizedConfig.LinkLabel, normalizedConfig.LinkURL)
}
