package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-room-service/internal/domain"
)

// QuestionClient fetches the question list from the external question API.
// The upstream answer is a letter (A..D) which maps to a 0-based option
// index. Fetch failures are returned as-is; the caller decides whether an
// empty bank is acceptable. There is no retry here.
type QuestionClient struct {
	baseURL string
	client  *http.Client
	sf      singleflight.Group
}

func NewQuestionClient(baseURL string) *QuestionClient {
	return &QuestionClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// apiQuestion mirrors the upstream payload shape.
type apiQuestion struct {
	QuestionID  int    `json:"questionid"`
	Question    string `json:"question"`
	Option1     string `json:"option1"`
	Option2     string `json:"option2"`
	Option3     string `json:"option3"`
	Option4     string `json:"option4"`
	Answer      string `json:"answer"`
	Level       string `json:"level"`
	Explanation string `json:"explanation"`
}

func (c *QuestionClient) FetchQuestions(ctx context.Context) ([]domain.Question, error) {
	// Concurrent fetches collapse into one upstream request.
	result, err, _ := c.sf.Do("questions", func() (interface{}, error) {
		return c.fetch(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionClient) fetch(ctx context.Context) ([]domain.Question, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/questions/random", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch questions: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch questions: unexpected status %d", resp.StatusCode)
	}

	var raw []apiQuestion
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}

	questions := make([]domain.Question, 0, len(raw))
	for _, q := range raw {
		questions = append(questions, domain.Question{
			ID:            q.QuestionID,
			Text:          q.Question,
			Options:       []string{q.Option1, q.Option2, q.Option3, q.Option4},
			CorrectAnswer: answerIndex(q.Answer),
			Level:         q.Level,
			Explanation:   q.Explanation,
		})
	}
	return questions, nil
}

// answerIndex maps the upstream correct-answer letter to an option index.
// Anything unrecognized falls through to the last option, matching the
// upstream's own D-by-default mapping.
func answerIndex(letter string) int {
	switch strings.ToUpper(strings.TrimSpace(letter)) {
	case "A":
		return 0
	case "B":
		return 1
	case "C":
		return 2
	default:
		return 3
	}
}
