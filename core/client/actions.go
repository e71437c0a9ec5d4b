package client

import (
	"context"

	"github.com/studygarden/memquiz/core/model"
	"github.com/studygarden/memquiz/core/transport"
)

// Backend action names.
const (
	ActionPing         = "ping"
	ActionGetQuestions = "getQuestions"
	ActionGetReview    = "getEcsQueue"
	ActionSubmitAnswer = "submitAnswer"
	ActionResetUser    = "resetUser"
)

// Ping checks that some endpoint answers.
func (c *Client) Ping(ctx context.Context) (*model.Pong, *transport.Response, error) {
	resp, err := c.Get(ctx, transport.Params{"action": ActionPing})
	if err != nil {
		return nil, nil, err
	}
	var pong model.Pong
	if err := resp.Decode(&pong); err != nil {
		return nil, resp, err
	}
	return &pong, resp, nil
}

// Questions fetches up to limit questions matching f. Blank filters are not sent.
func (c *Client) Questions(ctx context.Context, f model.Filters, limit int) (*model.QuestionSet, *transport.Response, error) {
	resp, err := c.Get(ctx, transport.Params{
		"action":     ActionGetQuestions,
		"user_id":    f.UserID,
		"grade":      f.Grade,
		"unit":       f.Unit,
		"difficulty": f.Difficulty,
		"limit":      limit,
	})
	if err != nil {
		return nil, nil, err
	}
	var set model.QuestionSet
	if err := resp.Decode(&set); err != nil {
		return nil, resp, err
	}
	return &set, resp, nil
}

// ReviewQueue fetches up to limit questions due for review.
func (c *Client) ReviewQueue(ctx context.Context, userID string, limit int) (*model.ReviewQueue, *transport.Response, error) {
	resp, err := c.Get(ctx, transport.Params{
		"action":  ActionGetReview,
		"user_id": userID,
		"limit":   limit,
	})
	if err != nil {
		return nil, nil, err
	}
	var queue model.ReviewQueue
	if err := resp.Decode(&queue); err != nil {
		return nil, resp, err
	}
	return &queue, resp, nil
}

// SubmitAnswer records chosen as userID's answer to questionID.
func (c *Client) SubmitAnswer(ctx context.Context, userID, questionID string, chosen int) (*model.AnswerResult, *transport.Response, error) {
	resp, err := c.Get(ctx, transport.Params{
		"action":       ActionSubmitAnswer,
		"user_id":      userID,
		"q_id":         questionID,
		"chosen_index": chosen,
	})
	if err != nil {
		return nil, nil, err
	}
	var result model.AnswerResult
	if err := resp.Decode(&result); err != nil {
		return nil, resp, err
	}
	return &result, resp, nil
}

// ResetUser asks the backend to forget userID's progress. Not every backend
// deployment supports it.
func (c *Client) ResetUser(ctx context.Context, userID string) (*transport.Response, error) {
	return c.Post(ctx, ActionResetUser, transport.Params{"user_id": userID}, nil)
}
