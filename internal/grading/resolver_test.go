package grading

import (
	"testing"

	"github.com/Quarong/Huiti-AI-Plus/internal/model"
)

func mcQuestion(answer string, options ...string) model.Question {
	return model.Question{
		ID:      "q-mc",
		Type:    model.TypeMultipleChoice,
		Options: options,
		Answer:  answer,
	}
}

func TestResolveMultipleChoice(t *testing.T) {
	tests := []struct {
		name string
		q    model.Question
		raw  string
		mode Strictness
		want Resolution
	}{
		{"letter matches letter", mcQuestion("B", "猫", "狗", "鸟"), "B", Strict, LocalPass},
		{"lowercase letter matches", mcQuestion("B", "猫", "狗", "鸟"), "b", Strict, LocalPass},
		{"letter selects matching text", mcQuestion("狗", "猫", "狗", "鸟"), "B", Strict, LocalPass},
		{"text matches canonical letter", mcQuestion("B", "猫", "狗", "鸟"), "狗", Strict, LocalPass},
		{"wrong letter", mcQuestion("B", "猫", "狗", "鸟"), "A", Strict, LocalFail},
		{"wrong text", mcQuestion("B", "猫", "狗", "鸟"), "猫", Strict, LocalFail},
		{"letter out of range", mcQuestion("B", "猫", "狗", "鸟"), "Z", Strict, LocalFail},
		{"empty never deferred", mcQuestion("B", "猫", "狗", "鸟"), "", Strict, LocalFail},
		{"whitespace only", mcQuestion("B", "猫", "狗", "鸟"), "   ", Strict, LocalFail},
		{"prefix rejected when strict", mcQuestion("BC", "甲", "乙"), "B", Strict, LocalFail},
		{"prefix accepted when lenient", mcQuestion("BC", "甲", "乙"), "B", Lenient, LocalPass},
		{"lenient still rejects non-prefix", mcQuestion("BC", "甲", "乙"), "C", Lenient, LocalFail},
		{"no options exact match", mcQuestion("B"), "B", Strict, LocalPass},
		{"no options wrong fails locally", mcQuestion("B"), "A", Strict, LocalFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.q, tt.raw, tt.mode)
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.raw, got, tt.want)
			}
			if got == NeedsJudge {
				t.Error("multiple choice must never be deferred to the judge")
			}
		})
	}
}

func TestResolveTrueFalse(t *testing.T) {
	q := model.Question{ID: "q-tf", Type: model.TypeTrueFalse, Answer: "正确"}

	tests := []struct {
		name string
		raw  string
		want Resolution
	}{
		{"canonical token", "正确", LocalPass},
		{"dui normalizes to canonical", "对", LocalPass},
		{"english true normalizes", "true", LocalPass},
		{"wrong token", "错", LocalFail},
		{"english false", "FALSE", LocalFail},
		{"empty", "", LocalFail},
		{"garbage", "也许", LocalFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(q, tt.raw, Strict)
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.raw, got, tt.want)
			}
			if got == NeedsJudge {
				t.Error("true/false must never be deferred to the judge")
			}
		})
	}
}

func TestResolveSubjective(t *testing.T) {
	tests := []struct {
		name string
		q    model.Question
		raw  string
		want Resolution
	}{
		{"fill blank exact", model.Question{Type: model.TypeFillBlank, Answer: "北京 / 上海"}, "北京/上海", LocalPass},
		{"fill blank near miss deferred", model.Question{Type: model.TypeFillBlank, Answer: "北京 / 上海"}, "上海/北京", NeedsJudge},
		{"fill blank empty fails", model.Question{Type: model.TypeFillBlank, Answer: "北京"}, "", LocalFail},
		{"short answer exact", model.Question{Type: model.TypeShortAnswer, Answer: "光合作用"}, " 光合作用 ", LocalPass},
		{"short answer synonym deferred", model.Question{Type: model.TypeShortAnswer, Answer: "光合作用"}, "植物利用光能合成养分", NeedsJudge},
		{"short answer whitespace only fails", model.Question{Type: model.TypeShortAnswer, Answer: "光合作用"}, " \t ", LocalFail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.q, tt.raw, Strict); got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestResolveUnknownType(t *testing.T) {
	q := model.Question{Type: "matching", Answer: "X"}
	if got := Resolve(q, "X", Strict); got != LocalPass {
		t.Errorf("exact match on unknown type = %q, want %q", got, LocalPass)
	}
	if got := Resolve(q, "Y", Strict); got != LocalFail {
		t.Errorf("mismatch on unknown type = %q, want %q", got, LocalFail)
	}
}

func TestParseStrictness(t *testing.T) {
	tests := []struct {
		in   string
		want Strictness
	}{
		{"lenient", Lenient},
		{" Lenient ", Lenient},
		{"strict", Strict},
		{"", Strict},
		{"bogus", Strict},
	}
	for _, tt := range tests {
		if got := ParseStrictness(tt.in); got != tt.want {
			t.Errorf("ParseStrictness(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
