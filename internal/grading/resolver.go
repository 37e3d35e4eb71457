// Package grading decides whether candidate answers are correct. Objective
// questions (multiple choice, true/false) are always resolved locally;
// subjective answers that fail exact comparison are deferred to a remote
// judge in a single batch per submission.
package grading

import (
	"strings"

	"github.com/Quarong/Huiti-AI-Plus/internal/model"
	"github.com/Quarong/Huiti-AI-Plus/internal/normalize"
)

// Resolution is the deterministic resolver's decision for one answer.
type Resolution string

const (
	// LocalPass means the answer matched without external help.
	LocalPass Resolution = "local_pass"
	// LocalFail means the answer is definitively wrong (or empty).
	LocalFail Resolution = "local_fail"
	// NeedsJudge means the answer may be semantically correct but lexically
	// different and must go to the remote judge.
	NeedsJudge Resolution = "needs_judge"
)

// Strictness selects the multiple-choice matching rule. The lenient mode
// additionally accepts an answer that is a prefix of the canonical answer.
type Strictness string

const (
	Strict  Strictness = "strict"
	Lenient Strictness = "lenient"
)

// ParseStrictness maps a config string to a Strictness, defaulting to strict.
func ParseStrictness(s string) Strictness {
	if strings.EqualFold(strings.TrimSpace(s), string(Lenient)) {
		return Lenient
	}
	return Strict
}

// Resolve applies the per-type matching rules to one question and raw answer.
// It is a pure function: no I/O, no clock, no judge.
func Resolve(q model.Question, raw string, mode Strictness) Resolution {
	u := normalize.String(raw)
	if u == "" {
		// An unanswered question is never deferred to the judge.
		return LocalFail
	}
	c := normalize.String(q.Answer)

	switch q.Type {
	case model.TypeMultipleChoice:
		if u == c {
			return LocalPass
		}
		if text, ok := selectedOption(q.Options, raw); ok && normalize.String(text) == c {
			return LocalPass
		}
		// The canonical answer may itself be an option letter; accept the
		// text of the option it designates.
		if text, ok := selectedOption(q.Options, q.Answer); ok && normalize.String(text) == u {
			return LocalPass
		}
		if mode == Lenient && c != "" && strings.HasPrefix(c, u) {
			return LocalPass
		}
		return LocalFail
	case model.TypeTrueFalse:
		if u == c {
			return LocalPass
		}
		return LocalFail
	case model.TypeFillBlank, model.TypeShortAnswer:
		if u == c {
			return LocalPass
		}
		return NeedsJudge
	default:
		// Malformed question data from upstream. Failing an ungradable
		// question is safer than refusing to grade an exam in progress.
		if u == c {
			return LocalPass
		}
		return LocalFail
	}
}

// selectedOption interprets the first rune of the upper-cased raw answer as
// an option letter (A, B, C, ...) and returns the option text it selects.
func selectedOption(options []string, raw string) (string, bool) {
	runes := []rune(strings.ToUpper(raw))
	if len(runes) == 0 {
		return "", false
	}
	idx := int(runes[0] - 'A')
	if idx < 0 || idx >= len(options) {
		return "", false
	}
	return options[idx], true
}
