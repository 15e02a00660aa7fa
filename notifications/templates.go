package notifications

import (
	"bytes"
	"html/template"
)

var baseStyle = template.CSS(`body{font-family:Arial,sans-serif;background-color:#f4f4f4;color:#333333}
.container{background-color:#ffffff;padding:20px;border-radius:8px;text-align:center;max-width:500px;margin:0 auto}
.logo img{max-width:224px;margin-bottom:20px}
.button{background-color:#1a42a2;color:#ffffff;text-decoration:none;padding:10px 20px;border-radius:5px;display:inline-block}
.footer{color:#A1A1A1;margin-top:20px}`)

var customerTmpl = template.Must(template.New("customer").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><style>{{.Style}}</style></head>
<body>
<div class="container">
{{if .LogoURL}}<div class="logo"><img src="{{.LogoURL}}" alt="Logo"></div>{{end}}
<h1>Thank you for your order, {{.Name}}!</h1>
<p>Your order <strong>#{{.OrderID}}</strong> has been placed successfully.</p>
{{if .InvoiceLink}}<p>You can download your invoice below:</p>
<a href="{{.InvoiceLink}}" class="button">View Invoice</a>{{end}}
<div class="footer"><p>We appreciate your business!</p><p>Copyright all rights reserved</p></div>
</div>
</body>
</html>`))

var adminTmpl = template.Must(template.New("admin").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><style>{{.Style}}</style></head>
<body>
<div class="container">
{{if .LogoURL}}<div class="logo"><img src="{{.LogoURL}}" alt="Logo"></div>{{end}}
<h1>New Order Received</h1>
{{if .Name}}<p>Customer: <strong>{{.Name}}</strong></p>{{end}}
<p>Order ID: <strong>#{{.OrderID}}</strong></p>
{{if .InvoiceLink}}<p>You can review the invoice below:</p>
<a href="{{.InvoiceLink}}" class="button">View Invoice</a>{{end}}
<div class="footer"><p>Log into the admin dashboard for more details.</p><p>Copyright all rights reserved</p></div>
</div>
</body>
</html>`))

type templateData struct {
	Style       template.CSS
	LogoURL     string
	Name        string
	OrderID     int64
	InvoiceLink string
}

func render(t *template.Template, data templateData) (string, error) {
	data.Style = baseStyle
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
