// Package render turns a corpus question into a PNG via headless Chrome.
package render

import (
	"fmt"
	"html/template"
	"strings"

	"gmatbot/internal/domain"
)

// questionPage is the rendered document. Question text, answers and
// explanations arrive from the corpus as HTML fragments (with embedded
// LaTeX), so they are injected unescaped and typeset by MathJax.
type questionPage struct {
	ID           string
	TypeName     string
	Question     template.HTML
	Answers      []answerOption
	Explanations []template.HTML
	Source       string
}

type answerOption struct {
	Label string
	Body  template.HTML
}

// BuildQuestionHTML renders the HTML document for one question.
func BuildQuestionHTML(q domain.Question) (string, error) {
	page := questionPage{
		ID:       q.ID,
		TypeName: q.Category.DisplayName(),
		Question: template.HTML(q.Text),
		Source:   q.Source,
	}
	for i, a := range q.Answers {
		page.Answers = append(page.Answers, answerOption{
			Label: answerLabel(i),
			Body:  template.HTML(a),
		})
	}
	for _, e := range q.Explanations {
		page.Explanations = append(page.Explanations, template.HTML(e))
	}

	var sb strings.Builder
	if err := questionTemplate.Execute(&sb, page); err != nil {
		return "", fmt.Errorf("execute question template: %w", err)
	}
	return sb.String(), nil
}

func answerLabel(i int) string {
	if i < 5 {
		return string(rune('A' + i))
	}
	return fmt.Sprintf("%d", i+1)
}

var questionTemplate = template.Must(template.New("question").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>GMAT Question {{.ID}}</title>
<script id="MathJax-script" async src="https://cdn.jsdelivr.net/npm/mathjax@3/es5/tex-mml-chtml.js"></script>
<script>
window.MathJax = {
  tex: {
    inlineMath: [['\\(', '\\)'], ['$', '$']],
    displayMath: [['\\[', '\\]'], ['$$', '$$']]
  },
  options: {
    processHtmlClass: 'tex2jax_process',
    processEscapes: true
  }
};
</script>
<style>
body {
  font-family: Georgia, 'Times New Roman', Times, serif;
  max-width: 1000px;
  margin: 0 auto;
  padding: 30px;
  line-height: 1.6;
  background-color: #ffffff;
  color: #333;
}
.question-header {
  background: #0068ff;
  color: white;
  padding: 25px;
  border-radius: 8px;
  margin-bottom: 30px;
}
.question-id { font-size: 1.1em; font-weight: 600; opacity: 0.9; margin-bottom: 5px; }
.question-type { font-size: 1.8em; font-weight: 700; margin: 0; }
.question-content { background: white; padding: 30px; margin-bottom: 25px; }
.question-text { font-size: 1.2em; line-height: 1.7; margin-bottom: 25px; color: #2c3e50; }
.answers-section { background: #f9f9f9; padding: 25px; margin-bottom: 25px; }
.answers-section h3 { color: #0068ff; margin-top: 0; margin-bottom: 20px; font-size: 1.3em; }
.answer-option { padding: 12px 15px; margin: 8px 0; background: white; font-size: 1.1em; }
.explanations-section { background: white; padding: 25px; }
.explanations-section h3 { color: #0068ff; margin-top: 0; margin-bottom: 20px; font-size: 1.3em; }
.explanation { margin-bottom: 25px; padding: 20px; background: #f9f9f9; }
.explanation h4 { color: #0068ff; margin-top: 0; margin-bottom: 15px; }
.source-link { margin-top: 30px; padding: 15px; background: #f9f9f9; font-size: 0.9em; }
.source-link a { color: #0068ff; text-decoration: none; }
.MathJax { font-size: 1.1em !important; }
table { border-collapse: collapse; width: 100%; margin: 15px 0; }
th, td { padding: 12px; text-align: left; border-bottom: 1px solid #eee; }
th { background-color: #f9f9f9; font-weight: bold; }
ul, ol { padding-left: 25px; }
li { margin: 8px 0; }
code { background-color: #f9f9f9; padding: 2px 6px; font-family: 'Courier New', monospace; }
strong { color: #2c3e50; }
em { color: #7f8c8d; }
</style>
</head>
<body>
<div class="question-header">
  <div class="question-id">Question ID: {{.ID}}</div>
  <h1 class="question-type">{{.TypeName}}</h1>
</div>

<div class="question-content">
  <div class="question-text tex2jax_process">
    {{.Question}}
  </div>
{{if .Answers}}
  <div class="answers-section">
    <h3>Answer Choices:</h3>
{{range .Answers}}    <div class="answer-option"><strong>{{.Label}})</strong> {{.Body}}</div>
{{end}}  </div>
{{end}}
{{if .Explanations}}
  <div class="explanations-section">
    <h3>Explanations:</h3>
{{range $i, $e := .Explanations}}    <div class="explanation"><h4>Explanation {{inc $i}}:</h4>{{$e}}</div>
{{end}}  </div>
{{end}}
</div>

<div class="source-link">
  <strong>Source:</strong> <a href="{{.Source}}" target="_blank">{{.Source}}</a>
</div>
</body>
</html>
`))
