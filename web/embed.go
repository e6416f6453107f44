// Package web embeds the chat widget page served at the root route. The page
// is a template so the host page can pass the user identity through query
// parameters when embedding the widget in an iframe.
package web

import (
	_ "embed"
	"html/template"
	"io"
)

//go:embed widget.html
var widgetHTML string

var widgetTmpl = template.Must(template.New("widget").Parse(widgetHTML))

// WidgetData carries the identity fields substituted into the widget page.
type WidgetData struct {
	UserID    string
	UserName  string
	UserEmail string
}

// RenderWidget writes the widget page for the given user identity.
func RenderWidget(w io.Writer, data WidgetData) error {
	return widgetTmpl.Execute(w, data)
}
