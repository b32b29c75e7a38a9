package notify

import (
	htmltemplate "html/template"
	texttemplate "text/template"
)

type assignmentData struct {
	TaskTitle       string
	TaskDescription string
	DueDate         string
	AssignedByName  string
	TaskURL         string
}

type verificationData struct {
	Name    string
	Code    string
	Minutes int
}

var assignmentHTML = htmltemplate.Must(htmltemplate.New("assignment").Parse(`<!DOCTYPE html>
<html>
  <head><meta charset="utf-8"><title>New task assigned</title></head>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <div style="background: #667eea; padding: 30px; text-align: center; border-radius: 10px 10px 0 0;">
      <h1 style="color: white; margin: 0;">New Task Assigned</h1>
    </div>
    <div style="background-color: #f9f9f9; padding: 30px; border-radius: 0 0 10px 10px;">
      <p><strong>{{.AssignedByName}}</strong> assigned you a task in TaskWise:</p>
      <div style="background-color: white; padding: 20px; border-radius: 8px; border-left: 4px solid #667eea;">
        <h2 style="margin-top: 0; color: #667eea;">{{.TaskTitle}}</h2>
        {{- if .TaskDescription}}
        <p style="color: #666;">{{.TaskDescription}}</p>
        {{- end}}
        {{- if .DueDate}}
        <p style="color: #667eea;"><strong>Due:</strong> {{.DueDate}}</p>
        {{- end}}
      </div>
      <p style="text-align: center; margin: 30px 0;">
        <a href="{{.TaskURL}}" style="background-color: #667eea; color: white; padding: 15px 30px; text-decoration: none; border-radius: 5px; font-weight: bold;">View task</a>
      </p>
      <p style="color: #666; font-size: 14px; text-align: center;">This is an automated message from TaskWise. Please do not reply.</p>
    </div>
  </body>
</html>
`))

var assignmentText = texttemplate.Must(texttemplate.New("assignment").Parse(`{{.AssignedByName}} assigned you a task in TaskWise.

{{.TaskTitle}}
{{- if .TaskDescription}}

{{.TaskDescription}}
{{- end}}
{{- if .DueDate}}

Due: {{.DueDate}}
{{- end}}

View task: {{.TaskURL}}
`))

var verificationHTML = htmltemplate.Must(htmltemplate.New("verification").Parse(`<!DOCTYPE html>
<html>
  <head><meta charset="utf-8"><title>Verify your email</title></head>
  <body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h1 style="color: #667eea;">Welcome to TaskWise, {{.Name}}</h1>
    <p>Use this code to finish creating your account:</p>
    <p style="font-size: 32px; font-weight: bold; letter-spacing: 8px; text-align: center; background: #f0f4ff; padding: 20px; border-radius: 8px;">{{.Code}}</p>
    <p>The code expires in {{.Minutes}} minutes. If you did not sign up, ignore this email.</p>
  </body>
</html>
`))

var verificationText = texttemplate.Must(texttemplate.New("verification").Parse(`Welcome to TaskWise, {{.Name}}.

Your verification code is {{.Code}}

The code expires in {{.Minutes}} minutes. If you did not sign up, ignore this email.
`))
