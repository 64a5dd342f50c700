package github

import (
	"context"

	"github.com/google/go-github/v57/github"

	"github.com/webtide/changelog-go/internal/models"
)

// CloseEventCommits returns the commits that closed an issue, as recorded
// in its event timeline.
func (c *Client) CloseEventCommits(ctx context.Context, number int) ([]string, error) {
	opts := &github.ListOptions{PerPage: 100}

	var shas []string
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		events, resp, err := c.client.Issues.ListIssueEvents(ctx, c.owner, c.repo, number, opts)
		c.logRateLimit(resp)
		if err != nil {
			return nil, translate(err, "list events of #%d", number)
		}

		for _, event := range events {
			if event.GetEvent() == "closed" && event.GetCommitID() != "" {
				shas = append(shas, models.NormalizeSHA(event.GetCommitID()))
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return shas, nil
}

// PullRequestCommits returns the commits of a pull request
func (c *Client) PullRequestCommits(ctx context.Context, number int) ([]string, error) {
	opts := &github.ListOptions{PerPage: 100}

	var shas []string
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}

		commits, resp, err := c.client.PullRequests.ListCommits(ctx, c.owner, c.repo, number, opts)
		c.logRateLimit(resp)
		if err != nil {
			return nil, translate(err, "list commits of pull request #%d", number)
		}

		for _, commit := range commits {
			shas = append(shas, models.NormalizeSHA(commit.GetSHA()))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return shas, nil
}
