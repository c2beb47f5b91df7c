package notification

import (
	"html/template"
	"log"
	"strings"
	"time"
)

const defaultAppURL = "https://miklens.github.io/Inventory-management"

// cardTemplate renders the notification email. Inline styles only: mail
// clients strip <style> blocks.
var cardTemplate = template.Must(template.New("card").Parse(`<div style="background-color: #f3f4f6; padding: 20px; font-family: 'Segoe UI', Arial, sans-serif;">
<div style="max-width: 600px; width: 100%; box-sizing: border-box; margin: 0 auto; background-color: #ffffff; border-radius: 12px; overflow: hidden; box-shadow: 0 4px 6px -1px rgba(0,0,0,0.1);">
<div style="background-color: {{.Color}}; padding: 30px; text-align: center;">
<div style="color: #ffffff; font-size: 10px; font-weight: bold; text-transform: uppercase; letter-spacing: 2px; margin-bottom: 10px;">Miklens Digital Requisition</div>
<h1 style="color: #ffffff; margin: 0; font-size: 24px; font-weight: 900;">{{.EventTitle}}</h1>
<div style="color: rgba(255,255,255,0.8); font-size: 14px; margin-top: 5px; font-weight: bold;">{{.Title}}</div></div>
<div style="padding: 30px;">
<p style="color: #4b5563; font-size: 15px; line-height: 1.6; margin-top: 0;">This is an automated notification regarding <b>#{{.ReqID}}</b>.</p>
{{if .Details}}<div style="margin: 20px 0; border: 1px solid #e5e7eb; border-radius: 8px; overflow-x: auto;">
<table style="width: 100%; border-collapse: collapse; font-family: sans-serif; font-size: 13px; table-layout: fixed;">
<thead style="background-color: #f9fafb;"><tr>
<th style="padding: 10px; border-bottom: 1px solid #e5e7eb; text-align: left; color: #6b7280; text-transform: uppercase; font-size: 10px; width: 28%;">Detail</th>
<th style="padding: 10px; border-bottom: 1px solid #e5e7eb; text-align: left; color: #6b7280; text-transform: uppercase; font-size: 10px;">Information</th></tr></thead><tbody>
{{range .Details}}<tr><td style="padding: 10px; border-bottom: 1px solid #f3f4f6; color: #374151; font-weight: bold; width: 28%; word-break: break-word;">{{.Label}}</td>
<td style="padding: 10px; border-bottom: 1px solid #f3f4f6; color: #4b5563; word-break: break-word;">{{.Value}}</td></tr>
{{end}}</tbody></table></div>{{end}}
<div style="text-align: center; margin-top: 30px;">
<a href="{{.AppURL}}" style="background-color: {{.Color}}; color: #ffffff; padding: 12px 30px; text-decoration: none; border-radius: 8px; font-weight: bold; font-size: 14px; display: inline-block;">Open Application</a></div>
<div style="margin-top: 30px; padding-top: 20px; border-top: 1px solid #f3f4f6; color: #9ca3af; font-size: 11px; text-align: center;">© {{.Year}} Miklens Digital Inventory Sync • Automated Alert</div>
</div></div></div>`))

type cardData struct {
	ReqID      string
	EventTitle string
	Title      string
	Details    []Detail
	Color      template.CSS
	AppURL     template.URL
	Year       int
}

func buildHTML(reqID, eventTitle, title string, details []Detail, color, appURL string) string {
	appURL = strings.TrimSpace(appURL)
	if appURL == "" {
		appURL = defaultAppURL
	}
	if title == "" {
		title = "System Update"
	}
	var sb strings.Builder
	err := cardTemplate.Execute(&sb, cardData{
		ReqID:      reqID,
		EventTitle: eventTitle,
		Title:      title,
		Details:    details,
		Color:      template.CSS(color),
		AppURL:     template.URL(appURL),
		Year:       time.Now().Year(),
	})
	if err != nil {
		log.Printf("notification template failed: %v", err)
		return ""
	}
	return sb.String()
}
