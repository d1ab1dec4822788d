package mail

import (
	htmltemplate "html/template"
	texttemplate "text/template"
)

var grantTextTmpl = texttemplate.Must(texttemplate.New("grant_text").Parse(`Hola {{.Name}},

Se ha publicado una nueva convocatoria que encaja con tu suscripción:

{{.Title}}
{{if .IssuingBody}}Órgano: {{.IssuingBody}}
{{end}}{{if .RegionName}}Ámbito: {{.RegionName}}
{{end}}{{if .Budget}}Presupuesto: {{.Budget}}
{{end}}{{if .Deadline}}Plazo hasta: {{.Deadline}}
{{end}}
{{if .Description}}{{.Description}}

{{end}}Ficha completa: {{.BDNSURL}}
`))

var grantHTMLTmpl = htmltemplate.Must(htmltemplate.New("grant_html").Parse(`<html>
<body style="font-family: sans-serif; color: #222;">
  <p>Hola {{.Name}},</p>
  <p>Se ha publicado una nueva convocatoria que encaja con tu suscripción:</p>
  <h2 style="margin-bottom: 4px;">{{.Title}}</h2>
  <table cellpadding="4" style="border-collapse: collapse;">
    {{if .IssuingBody}}<tr><td><strong>Órgano</strong></td><td>{{.IssuingBody}}</td></tr>{{end}}
    {{if .RegionName}}<tr><td><strong>Ámbito</strong></td><td>{{.RegionName}}</td></tr>{{end}}
    {{if .Budget}}<tr><td><strong>Presupuesto</strong></td><td>{{.Budget}}</td></tr>{{end}}
    {{if .Deadline}}<tr><td><strong>Plazo hasta</strong></td><td>{{.Deadline}}</td></tr>{{end}}
  </table>
  {{if .Description}}<p>{{.Description}}</p>{{end}}
  <p><a href="{{.BDNSURL}}">Ver ficha completa en la BDNS</a></p>
</body>
</html>
`))

var confirmTextTmpl = texttemplate.Must(texttemplate.New("confirm_text").Parse(`Hola {{.Name}},

Confirma tu suscripción a las alertas de convocatorias abriendo este enlace:

{{.ConfirmURL}}

Si no solicitaste esta suscripción, ignora este mensaje.
`))

var confirmHTMLTmpl = htmltemplate.Must(htmltemplate.New("confirm_html").Parse(`<html>
<body style="font-family: sans-serif; color: #222;">
  <p>Hola {{.Name}},</p>
  <p>Confirma tu suscripción a las alertas de convocatorias:</p>
  <p><a href="{{.ConfirmURL}}">Confirmar suscripción</a></p>
  <p style="color: #888; font-size: 12px;">Si no solicitaste esta suscripción, ignora este mensaje.</p>
</body>
</html>
`))
