package advisor

import (
	"strings"
	"text/template"

	"github.com/pochini/pochini/pkg/llm"
)

var prompts = template.Must(template.New("prompts").Parse(`
{{define "symptoms"}}You are an experienced mechanic. A user will describe their car issues, and you will provide a list of potential diagnoses with likely causes.

Vehicle Details: {{.VehicleDetails}}
Symptoms: {{.Symptoms}}

Provide your answer in JSON format. Make sure the diagnoses and likelyCauses fields are populated with valid and helpful descriptions. Answer in Russian.{{end}}

{{define "maintenance"}}You are an expert automotive technician. Generate a detailed maintenance schedule for the following vehicle, including suggested part replacements and service intervals. The schedule should be comprehensive and easy to follow. Use "### " for section headings, "**...**" for interval titles and "* " for individual items. Answer in Russian.

Vehicle Make: {{.Make}}
Vehicle Model: {{.Model}}{{end}}

{{define "chat_system"}}Вы — POCHINI, дружелюбный и услужливый ассистент-автомеханик. Ваша задача — отвечать на вопросы пользователей об автомобилях, их обслуживании и ремонте. Будьте кратки, вежливы и информативны. Ответ должен быть на русском языке.
{{- if .Context}}

Похожие консультации из нашей ленты (используйте их, только если они относятся к вопросу):
{{range .Context}}
{{.}}
{{end}}{{end}}{{end}}

{{define "chat"}}Текущий вопрос пользователя: {{.Message}}
Ваш ответ:{{end}}
`))

func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := prompts.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

var diagnosesSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"diagnoses": {
			Type:        llm.TypeArray,
			Description: "A list of potential diagnoses and their likely causes.",
			Items: &llm.Schema{
				Type: llm.TypeObject,
				Properties: map[string]*llm.Schema{
					"diagnosis":    {Type: llm.TypeString, Description: "A potential diagnosis for the vehicle issue."},
					"likelyCauses": {Type: llm.TypeString, Description: "The likely causes for the diagnosis."},
				},
				Required: []string{"diagnosis", "likelyCauses"},
			},
		},
	},
	Required: []string{"diagnoses"},
}

var scheduleSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"schedule": {
			Type:        llm.TypeString,
			Description: "A detailed maintenance schedule including service intervals and suggested part replacements.",
		},
	},
	Required: []string{"schedule"},
}
