package github

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/webtide/changelog-go/internal/logging"
	"github.com/webtide/changelog-go/internal/models"
)

// ErrNotFound is returned when GitHub has no issue, pull request or commit
// under the requested identifier.
var ErrNotFound = fmt.Errorf("github: %w", models.ErrNotFound)

// Options configures a Client
type Options struct {
	Owner string
	Repo  string
	Token string
	// RateLimit is the number of requests per second. Zero means one per second.
	RateLimit float64
	// BaseURL overrides the API endpoint (GitHub Enterprise, tests)
	BaseURL string
}

// Client fetches issue tracker data from the GitHub REST API with rate limiting
type Client struct {
	client      *github.Client
	owner       string
	repo        string
	rateLimiter *rate.Limiter
	logger      logrus.FieldLogger
}

// NewClient creates a new GitHub client
func NewClient(opts Options, logger logrus.FieldLogger) (*Client, error) {
	if opts.Owner == "" || opts.Repo == "" {
		return nil, fmt.Errorf("github owner and repo are required")
	}

	client := github.NewClient(nil)
	if opts.Token != "" {
		client = client.WithAuthToken(opts.Token)
	}
	if opts.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid github base url: %w", err)
		}
		client.BaseURL = base
	}

	// GitHub allows 5,000 requests/hour for authenticated clients
	limit := rate.Limit(1)
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &Client{
		client:      client,
		owner:       opts.Owner,
		repo:        opts.Repo,
		rateLimiter: rate.NewLimiter(limit, 1),
		logger:      logging.OrDiscard(logger),
	}, nil
}

// Repository returns "owner/repo" in lower case
func (c *Client) Repository() string {
	return strings.ToLower(c.owner + "/" + c.repo)
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// FetchIssueOrPR returns the issue or pull request with the given number
func (c *Client) FetchIssueOrPR(ctx context.Context, number int) (models.TrackerItem, error) {
	if err := c.wait(ctx); err != nil {
		return models.TrackerItem{}, err
	}

	issue, resp, err := c.client.Issues.Get(ctx, c.owner, c.repo, number)
	c.logRateLimit(resp)
	if err != nil {
		return models.TrackerItem{}, translate(err, "fetch issue #%d", number)
	}

	item := models.TrackerItem{
		Kind:   models.ItemIssue,
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		State:  issue.GetState(),
	}
	for _, label := range issue.Labels {
		item.Labels = append(item.Labels, label.GetName())
	}

	if !issue.IsPullRequest() {
		return item, nil
	}

	if err := c.wait(ctx); err != nil {
		return models.TrackerItem{}, err
	}
	pr, resp, err := c.client.PullRequests.Get(ctx, c.owner, c.repo, number)
	c.logRateLimit(resp)
	if err != nil {
		return models.TrackerItem{}, translate(err, "fetch pull request #%d", number)
	}

	item.Kind = models.ItemPullRequest
	item.BaseRef = pr.GetBase().GetRef()
	return item, nil
}

// CommitAuthor returns the GitHub login of a commit's author, or "" when
// the commit email is not linked to an account.
func (c *Client) CommitAuthor(ctx context.Context, sha string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	commit, resp, err := c.client.Repositories.GetCommit(ctx, c.owner, c.repo, sha, nil)
	c.logRateLimit(resp)
	if err != nil {
		return "", translate(err, "fetch commit %s", sha)
	}
	return commit.GetAuthor().GetLogin(), nil
}

// translate maps missing resources to ErrNotFound and wraps everything else
func translate(err error, format string, args ...interface{}) error {
	var ghErr *github.ErrorResponse
	if stderrors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// logRateLimit warns when the remaining API budget gets low
func (c *Client) logRateLimit(resp *github.Response) {
	if resp == nil {
		return
	}

	remaining := resp.Rate.Remaining
	limit := resp.Rate.Limit
	if limit > 0 && remaining < 100 {
		c.logger.WithFields(logrus.Fields{
			"remaining": remaining,
			"limit":     limit,
			"reset":     resp.Rate.Reset.Time,
		}).Warn("GitHub rate limit low")
	}
}
