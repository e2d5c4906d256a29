package oracle

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"tasksync/internal/logging"
)

// scorePrompt asks the model for a bare number so parsing stays trivial.
const scorePrompt = `Compare two task descriptions and rate how similar they are in meaning (not wording).

Text 1: %s

Text 2: %s

Rating scale:
- 1.0 = the same task or topic
- 0.8-0.9 = very similar tasks with minor differences
- 0.6-0.7 = related but distinct tasks
- 0.3-0.5 = partially related
- 0.0-0.2 = different tasks

Respond with ONLY a single number between 0 and 1.`

const scoreTextLimit = 2000

var numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?|\.\d+`)

// ScoreSimilarity asks the completion model for a similarity verdict over the
// full text representations of both sides. Empty inputs short-circuit to 0
// without a provider call. A malformed response is a 0 score, not an error:
// one bad verdict must not sink a multi-hundred-task run.
func (c *Client) ScoreSimilarity(textA, textB string) (float64, error) {
	if strings.TrimSpace(textA) == "" || strings.TrimSpace(textB) == "" {
		return 0, nil
	}

	prompt := fmt.Sprintf(scorePrompt,
		logging.Truncate(textA, scoreTextLimit),
		logging.Truncate(textB, scoreTextLimit))

	response, err := c.Generate(prompt)
	if err != nil {
		return 0, fmt.Errorf("similarity verdict: %w", err)
	}

	return ParseScore(response), nil
}

// ParseScore extracts a [0,1] similarity score from a model response.
// Values above 1 are assumed to be on a 0-10 scale and rescaled; anything
// unparseable scores 0 so an unverified borderline match is dropped rather
// than accepted.
func ParseScore(response string) float64 {
	response = strings.TrimSpace(response)
	if response == "" {
		return 0
	}

	match := numberPattern.FindString(response)
	if match == "" {
		logging.Debug("oracle", "non-numeric verdict: %q", logging.Truncate(response, 100))
		return 0
	}

	score, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	if score > 1.0 {
		score = score / 10.0
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
