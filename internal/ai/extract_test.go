package ai

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestExtractCV(t *testing.T) {
	stub := &stubGenerator{response: `{
		"name": " Jane Doe ",
		"summary": "Backend engineer.",
		"email": "jane@example.com",
		"skills": ["Go", " ", "SQL"],
		"experience": [
			{"title": "Engineer", "company": "Acme", "start": 2020, "description": "Built stuff"},
			{"title": "", "company": "Unknown"}
		],
		"projects": [{"name": "fusion", "technologies": ["Go"], "url": "not a url"}],
		"education": [{"school": "MIT", "degree": "BSc"}]
	}`}

	cv, err := NewExtractor(stub, nil, 0).ExtractCV(context.Background(), "Jane Doe\nEngineer at Acme")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cv.Name != "Jane Doe" {
		t.Fatalf("unexpected name: %q", cv.Name)
	}
	if len(cv.Skills) != 2 {
		t.Fatalf("expected blank skills to be dropped, got %v", cv.Skills)
	}
	if len(cv.Experience) != 1 || cv.Experience[0].Start != "2020" {
		t.Fatalf("unexpected experience: %+v", cv.Experience)
	}
	if len(cv.Projects) != 1 || cv.Projects[0].URL != "" {
		t.Fatalf("expected invalid url to be dropped: %+v", cv.Projects)
	}
	if cv.Extras.Email != "jane@example.com" || len(cv.Extras.Education) != 1 {
		t.Fatalf("unexpected extras: %+v", cv.Extras)
	}
	if !strings.Contains(stub.lastPrompt, "Engineer at Acme") {
		t.Fatalf("resume text missing from prompt")
	}
}

func TestExtractCVErrors(t *testing.T) {
	if _, err := NewExtractor(&stubGenerator{}, nil, 0).ExtractCV(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty text")
	}

	stub := &stubGenerator{err: errors.New("quota")}
	if _, err := NewExtractor(stub, nil, 0).ExtractCV(context.Background(), "text"); err == nil {
		t.Fatal("expected generator error")
	}

	stub = &stubGenerator{response: "not json"}
	if _, err := NewExtractor(stub, nil, 0).ExtractCV(context.Background(), "text"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParseReadme(t *testing.T) {
	stub := &stubGenerator{response: "```\n" + `{"summary": "I build tools.", "tech_stack": ["Go", "Rust", ""], "projects": [{"name": "hh-cli", "description": "job search", "url": "https://github.com/jane/hh-cli"}, {"description": "nameless"}]}` + "\n```"}

	readme, err := NewExtractor(stub, nil, 0).ParseReadme(context.Background(), "# Hi there")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if readme.Summary != "I build tools." {
		t.Fatalf("unexpected summary: %q", readme.Summary)
	}
	if len(readme.TechStack) != 2 {
		t.Fatalf("unexpected tech stack: %v", readme.TechStack)
	}
	if len(readme.Projects) != 1 || readme.Projects[0].URL != "https://github.com/jane/hh-cli" {
		t.Fatalf("unexpected projects: %+v", readme.Projects)
	}
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"{\"a\":1}":               `{"a":1}`,
		"Sure! {\"a\":1} Done.":   `{"a":1}`,
		"":                        "",
	}

	for in, want := range cases {
		if got := extractJSON(in); got != want {
			t.Fatalf("extractJSON(%q) = %q, want %q", in, got, want)
		}
	}
}
