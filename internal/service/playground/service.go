package playground

import (
	"context"
	"errors"
	"strings"

	"github.com/dani-ai/dani/internal/cache"
	"github.com/dani-ai/dani/internal/github"
	"github.com/dani-ai/dani/internal/logger"
	"github.com/dani-ai/dani/internal/model"
	"github.com/dani-ai/dani/internal/service/gate"
	"go.uber.org/zap"
)

var ErrMissingFields = errors.New("please fill in all fields")

// Result is what a successful submission displays.
type Result struct {
	Repo     github.RepoInfo    `json:"repo"`
	Insights model.RepoInsights `json:"insights"`
	Readme   string             `json:"readme"`
}

// Service runs the gated repository analysis: usage gate, README fetch and
// the canned insights payload.
type Service struct {
	gate    *gate.Gate
	fetcher github.ReadmeFetcher
	lists   cache.KeyListCache // optional; dropped after usage changes
}

func New(g *gate.Gate, fetcher github.ReadmeFetcher, lists cache.KeyListCache) *Service {
	return &Service{gate: g, fetcher: fetcher, lists: lists}
}

// Submit validates the form input and runs the gated analysis.
func (s *Service) Submit(ctx context.Context, apiKey, githubURL string) (Result, error) {
	apiKey = strings.TrimSpace(apiKey)
	githubURL = strings.TrimSpace(githubURL)
	if apiKey == "" || githubURL == "" {
		return Result{}, ErrMissingFields
	}

	return s.run(ctx, apiKey, githubURL)
}

// RunGated runs the analysis for a key already screened by the API key
// middleware. The gate still decides, so the use is counted exactly once.
func (s *Service) RunGated(ctx context.Context, k model.APIKey, githubURL string) (Result, error) {
	return s.run(ctx, k.Value, githubURL)
}

func (s *Service) run(ctx context.Context, value, githubURL string) (Result, error) {
	var (
		res   Result
		owner string
	)
	err := s.gate.Do(ctx, value, func(ctx context.Context, k model.APIKey) error {
		owner = k.UserID

		info, err := github.ParseRepoURL(githubURL)
		if err != nil {
			return err
		}

		readme, err := s.fetcher.FetchReadme(ctx, githubURL)
		if err != nil {
			return err
		}

		res = Result{
			Repo:     info,
			Insights: insights(),
			Readme:   readme,
		}
		return nil
	})

	// usage may have moved even when the analysis failed
	if owner != "" && s.lists != nil {
		if err := s.lists.Invalidate(ctx, owner); err != nil {
			logger.Log.Warn("key list cache invalidate failed", zap.String("owner", owner), zap.Error(err))
		}
	}

	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// insights is a fixed payload; there is no analysis engine behind it.
func insights() model.RepoInsights {
	return model.RepoInsights{
		Summary: "Dandi API is a comprehensive boilerplate repository for building AI-powered micro SaaS applications. " +
			"It provides a solid foundation with essential components and functionalities needed to run an end-to-end micro SaaS application. " +
			"The service offers powerful insights, summaries, and analytics for open source GitHub repositories.",
		CoolFacts: []string{
			"The project was developed using Cursor IDE and v0, showcasing the power of AI-assisted development.",
			"It leverages LangChain JS for AI capabilities and implements features like API key management, rate limiting, and SSO login.",
		},
		Stars:         10,
		LatestVersion: "No releases found",
		WebsiteURL:    "https://www.dandi.cloud",
		LicenseType:   "Apache-2.0",
	}
}
