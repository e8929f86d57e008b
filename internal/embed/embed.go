// Package embed renders the script snippet a site owner pastes into their
// page to load the chat widget.
package embed

import (
	"net/url"
	"strings"
	"text/template"

	"github.com/agentoven/chatwidget/pkg/models"
)

// DefaultBusinessName is used when the widget has no business name yet.
const DefaultBusinessName = "My Business"

// ScriptURL is where the widget loader is served from.
const ScriptURL = "https://example.com/chatbot-widget.js"

var snippet = template.Must(template.New("embed").Parse(`<script>
  (function(w, d) {
    var chatbotConfig = {
      businessName: "{{.BusinessName}}",
      personality: "{{.Personality}}",
      position: "bottom-right"
    };

    var s = d.createElement("script");
    s.src = "{{.ScriptURL}}";
    s.async = true;
    s.onload = function() {
      w.initChatbot(chatbotConfig);
    };
    d.body.appendChild(s);
  })(window, document);
</script>`))

// Render returns the embed snippet for a business name and personality.
// Both values are URI-component encoded so they are safe inside the
// generated string literals.
func Render(name string, p models.Personality) string {
	if name == "" {
		name = DefaultBusinessName
	}
	var b strings.Builder
	// The template only reads string fields, so Execute cannot fail.
	_ = snippet.Execute(&b, struct {
		BusinessName string
		Personality  string
		ScriptURL    string
	}{
		BusinessName: escape(name),
		Personality:  escape(string(p)),
		ScriptURL:    ScriptURL,
	})
	return b.String()
}

// componentUnescapes undoes the QueryEscape encodings that encodeURIComponent
// leaves alone: spaces are %20 rather than +, and !'()* stay literal.
var componentUnescapes = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// escape encodes s the way encodeURIComponent does in the widget loader.
func escape(s string) string {
	return componentUnescapes.Replace(url.QueryEscape(s))
}
