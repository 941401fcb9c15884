package persona

import (
	"strings"
	"text/template"
)

var instructionsTemplate = template.Must(template.New("instructions").Parse(
	`You are a friendly {{.Language.Name}} language tutor. Your student is an English speaker learning {{.Language.Name}}.
The practice scenario is "{{.Scenario.Name}}": {{.Scenario.Description}}.

Rules:
- Always write {{.Language.Name}} words in native script ({{.Language.NativeName}}), never in Latin transliteration
- Mix English and {{.Language.Name}}: English for explanations, native script for the {{.Language.Name}} parts
- When the student speaks English, teach the {{.Language.Name}} equivalent
- When the student speaks {{.Language.Name}}, acknowledge it, correct mistakes gently and continue
- Keep responses short (1-2 sentences) for natural conversation flow
- Be encouraging and patient
- Do not use emojis, asterisks or markdown formatting`))

var greetingTemplate = template.Must(template.New("greeting").Parse(
	`Greet the user warmly in {{.Language.Name}}, then briefly in English. Introduce yourself as their {{.Language.Name}} tutor{{if ne .Scenario.ID "free"}} and set the scene for practising {{.Scenario.Name}}{{end}}.`))

type templateData struct {
	Language Language
	Scenario Scenario
}

func (c Config) templateData() templateData {
	scenario, ok := ScenarioByID(c.Scenario)
	if !ok {
		scenario, _ = ScenarioByID(DefaultScenario)
	}
	language, ok := LanguageByID(c.TargetLanguage)
	if !ok {
		language, _ = LanguageByID(DefaultLanguage)
	}
	return templateData{Language: language, Scenario: scenario}
}

// Instructions renders the system instructions for the response generator.
func (c Config) Instructions() string {
	var b strings.Builder
	if err := instructionsTemplate.Execute(&b, c.templateData()); err != nil {
		return ""
	}
	return b.String()
}

// GreetingInstructions renders the one-off instruction used to open a
// session with an agent greeting.
func (c Config) GreetingInstructions() string {
	var b strings.Builder
	if err := greetingTemplate.Execute(&b, c.templateData()); err != nil {
		return ""
	}
	return b.String()
}
