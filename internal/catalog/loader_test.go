package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Chandra-cc/personalized-learning/internal/models"
)

func TestDefaultCatalog(t *testing.T) {
	reg, err := Default()
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}

	if reg.Len() != 11 {
		t.Errorf("expected 11 goals, got %d", reg.Len())
	}

	goals := reg.Goals()
	if goals[0] != "Become a Data Scientist" {
		t.Errorf("expected first goal 'Become a Data Scientist', got '%s'", goals[0])
	}

	steps, ok := reg.Steps("Become a Web Developer")
	if !ok {
		t.Fatal("web developer goal not found")
	}
	if len(steps) != 4 {
		t.Fatalf("expected 4 web developer steps, got %d", len(steps))
	}
	if steps[0].Title != "HTML, CSS Basics" {
		t.Errorf("unexpected first step title: %s", steps[0].Title)
	}
	if steps[0].Difficulty != "beginner" {
		t.Errorf("expected step difficulty derived from project, got '%s'", steps[0].Difficulty)
	}
	if steps[3].Duration != "2 weeks" {
		t.Errorf("expected duration '2 weeks', got '%s'", steps[3].Duration)
	}

	// Shorthand "resource" key lands under primary
	hacker, _ := reg.Steps("Become an Ethical Hacker")
	if hacker[0].Resources["primary"] == "" {
		t.Error("expected shorthand resource to be stored as primary")
	}
	if hacker[0].SkillsGained == nil {
		t.Error("skills_gained should be an empty list, not nil")
	}

	skills := reg.Skills("Become a Web Developer")
	if len(skills) != 13 {
		t.Errorf("expected 13 distinct web developer skills, got %d: %v", len(skills), skills)
	}

	again, _ := Default()
	if again != reg {
		t.Error("Default should return the same registry instance")
	}
}

func TestLoadWithOverrides(t *testing.T) {
	dir := t.TempDir()

	override := `
goals:
  - name: "Become a Web Developer"
    steps:
      - title: "Go Web Services"
        duration: "3 weeks"
        skills_gained: ["Go", "HTTP"]
  - name: "Become a Go Developer"
    steps: []
`
	if err := os.WriteFile(filepath.Join(dir, "extra.yaml"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("goals: [ {name: "), 0o644); err != nil {
		t.Fatal(err)
	}

	reg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if reg.Len() != 12 {
		t.Errorf("expected 12 goals, got %d", reg.Len())
	}

	goals := reg.Goals()
	if goals[1] != "Become a Web Developer" {
		t.Errorf("override should keep catalog position, got %v", goals[:3])
	}
	if goals[len(goals)-1] != "Become a Go Developer" {
		t.Errorf("new goal should be appended, got '%s'", goals[len(goals)-1])
	}

	steps, _ := reg.Steps("Become a Web Developer")
	if len(steps) != 1 || steps[0].Title != "Go Web Services" {
		t.Errorf("override not applied: %+v", steps)
	}

	if _, err := reg.FirstStep("Become a Go Developer"); !errors.Is(err, models.ErrEmptyCatalog) {
		t.Errorf("expected ErrEmptyCatalog, got %v", err)
	}
}

func TestParseRejectsMissingFields(t *testing.T) {
	cases := map[string]string{
		"missing goal name": "goals:\n  - steps: []\n",
		"missing title":     "goals:\n  - name: X\n    steps:\n      - duration: \"1 week\"\n",
		"missing duration":  "goals:\n  - name: X\n    steps:\n      - title: Y\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestStepsReturnsCopy(t *testing.T) {
	reg := New(Goal{Name: "G", Steps: []models.StepTemplate{{Title: "A", Duration: "1 week"}}})

	steps, _ := reg.Steps("G")
	steps[0].Title = "mutated"

	again, _ := reg.Steps("G")
	if again[0].Title != "A" {
		t.Error("registry steps were mutated through returned slice")
	}

	if _, ok := reg.Steps("missing"); ok {
		t.Error("expected missing goal lookup to fail")
	}
}
