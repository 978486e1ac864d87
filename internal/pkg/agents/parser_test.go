package agents

import (
	"testing"
)

func TestParseAnalysisStructured(t *testing.T) {
	raw := `Here is my analysis:
{
    "analysis": "solid project",
    "requirements": [
        {"title": "auth", "description": "user auth", "priority": "high", "category": "security", "estimated_hours": 16, "dependencies": []}
    ],
    "code_artifacts": [
        {"filename": "auth.go", "language": "go", "description": "auth middleware", "code": "package auth"}
    ],
    "recommendations": ["use oauth"],
    "concerns": ["token storage"],
    "next_steps": ["design schema"],
    "code_example": {"language": "go", "code": "func main() {}", "description": "entry"}
}`

	payload := ParseAnalysis(raw)
	if payload.ParseDegraded {
		t.Fatalf("expected structured parse")
	}
	if payload.Analysis != "solid project" {
		t.Fatalf("unexpected analysis: %s", payload.Analysis)
	}
	if len(payload.Requirements) != 1 || payload.Requirements[0].Title != "auth" {
		t.Fatalf("unexpected requirements: %+v", payload.Requirements)
	}
	if len(payload.CodeArtifacts) != 1 || payload.CodeArtifacts[0].Filename != "auth.go" {
		t.Fatalf("unexpected artifacts: %+v", payload.CodeArtifacts)
	}
	if payload.CodeExample == nil || payload.CodeExample.Language != "go" {
		t.Fatalf("unexpected code example: %+v", payload.CodeExample)
	}
}

// TestParseAnalysisFallback 非 JSON 文本必须降级成功，不报错
func TestParseAnalysisFallback(t *testing.T) {
	raw := "I think this project is great but I will not answer in JSON."

	payload := ParseAnalysis(raw)
	if !payload.ParseDegraded {
		t.Fatalf("expected degraded parse")
	}
	if payload.Analysis != raw {
		t.Fatalf("expected raw text preserved")
	}
	if payload.Recommendations == nil || len(payload.Recommendations) != 0 {
		t.Fatalf("expected empty recommendations, got %v", payload.Recommendations)
	}
	if len(payload.Concerns) != 1 {
		t.Fatalf("expected parse failure concern, got %v", payload.Concerns)
	}
	if payload.CodeExample != nil {
		t.Fatalf("expected nil code example")
	}
}

// TestParseAnalysisMissingFields 字段缺失时补空切片
func TestParseAnalysisMissingFields(t *testing.T) {
	payload := ParseAnalysis(`{"analysis": "minimal"}`)
	if payload.ParseDegraded {
		t.Fatalf("expected structured parse")
	}
	if payload.Recommendations == nil || payload.Concerns == nil || payload.NextSteps == nil {
		t.Fatalf("expected non-nil slices")
	}
}
