package genai

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"newslens/internal/domain"
)

// maxTopics bounds the topic list kept from a gateway response.
const maxTopics = 8

var (
	jsonBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	jsonObjRe   = regexp.MustCompile(`(?s)\{.*\}`)
)

// parseAnnotation extracts and validates the {summary, topics} payload
// from model output. Models wrap JSON in markdown fences often enough
// that both bare and fenced objects are accepted.
func parseAnnotation(text string) (domain.Annotation, error) {
	raw := text
	if m := jsonBlockRe.FindStringSubmatch(text); m != nil {
		raw = m[1]
	} else if m := jsonObjRe.FindString(text); m != "" {
		raw = m
	}
	var payload struct {
		Summary string   `json:"summary"`
		Topics  []string `json:"topics"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.Annotation{}, fmt.Errorf("decoding annotation: %w", err)
	}
	summary := strings.TrimSpace(payload.Summary)
	if summary == "" {
		return domain.Annotation{}, errors.New("empty summary in response")
	}
	topics := make([]string, 0, len(payload.Topics))
	for _, t := range payload.Topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		topics = append(topics, t)
		if len(topics) == maxTopics {
			break
		}
	}
	if len(topics) == 0 {
		return domain.Annotation{}, errors.New("empty topics in response")
	}
	return domain.Annotation{Summary: summary, Topics: topics}, nil
}

// parseLines splits line-oriented model output into at most max clean
// entries, stripping bullets and numbering.
func parseLines(text string, max int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "•-*")
		line = strings.TrimSpace(line)
		if len(line) > 2 && line[0] >= '0' && line[0] <= '9' {
			for i, c := range line {
				if c == '.' || c == ')' {
					line = strings.TrimSpace(line[i+1:])
					break
				}
				if c < '0' || c > '9' {
					break
				}
			}
		}
		line = strings.Trim(line, `"`)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == max {
			break
		}
	}
	return out
}
