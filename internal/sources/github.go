package sources

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/spigell/profile-fusion/internal/ai"
	"github.com/spigell/profile-fusion/internal/profile"
)

const (
	githubAPIURL     = "https://api.github.com"
	githubAPIVersion = "2022-11-28"
	githubAccept     = "application/vnd.github+json"
	githubUserAgent  = "spigell/profile-fusion"
	reposPerPage     = 100
	maxRepoPages     = 10
)

var githubLoginPattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]{0,38})$`)

// githubReservedPaths are top-level github.com routes that are not accounts.
var githubReservedPaths = map[string]bool{
	"about": true, "apps": true, "collections": true, "enterprise": true,
	"events": true, "explore": true, "features": true, "issues": true,
	"login": true, "marketplace": true, "new": true, "notifications": true,
	"orgs": true, "organizations": true, "pricing": true, "pulls": true,
	"search": true, "security": true, "settings": true, "site": true,
	"sponsors": true, "topics": true, "trending": true,
}

var errNotFound = errors.New("not found")

// GitHubOptions configures the GitHub adapter.
type GitHubOptions struct {
	APIURL     string
	Token      string
	HTTPClient *http.Client
	// RequestsPerSecond limits calls to the REST API. Zero means 5.
	RequestsPerSecond float64
	// ParseReadme enables model parsing of the profile README.
	ParseReadme bool
}

// GitHubAdapter collects a fragment from the GitHub REST API.
type GitHubAdapter struct {
	apiURL      string
	token       string
	client      *http.Client
	limiter     *rate.Limiter
	extractor   ai.Extractor
	parseReadme bool
	logger      *zap.Logger
}

type githubUser struct {
	ID       int64  `json:"id"`
	Login    string `json:"login"`
	Name     string `json:"name"`
	Bio      string `json:"bio"`
	Location string `json:"location"`
	Email    string `json:"email"`
	Company  string `json:"company"`
	Blog     string `json:"blog"`
}

type githubRepo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Language    string   `json:"language"`
	Topics      []string `json:"topics"`
	Stars       int      `json:"stargazers_count"`
	HTMLURL     string   `json:"html_url"`
	Fork        bool     `json:"fork"`
}

type githubContent struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

func NewGitHubAdapter(opts GitHubOptions, extractor ai.Extractor, log *zap.Logger) *GitHubAdapter {
	apiURL := strings.TrimRight(strings.TrimSpace(opts.APIURL), "/")
	if apiURL == "" {
		apiURL = githubAPIURL
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &GitHubAdapter{
		apiURL:      apiURL,
		token:       strings.TrimSpace(opts.Token),
		client:      client,
		limiter:     rate.NewLimiter(rate.Limit(rps), 3),
		extractor:   extractor,
		parseReadme: opts.ParseReadme && extractor != nil,
		logger:      log,
	}
}

func (a *GitHubAdapter) Platform() profile.Platform { return profile.PlatformGitHub }

func (a *GitHubAdapter) Extract(ctx context.Context, req Request) (profile.SourceProfile, error) {
	ghReq, ok := req.(GitHubRequest)
	if !ok {
		return nil, fmt.Errorf("unexpected request %T", req)
	}

	username, err := GitHubUsername(ghReq.URL)
	if err != nil {
		return nil, err
	}

	var (
		user   githubUser
		repos  []githubRepo
		readme string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := a.getJSON(gctx, "/users/"+url.PathEscape(username), nil, &user)
		if errors.Is(err, errNotFound) {
			return fmt.Errorf("github user %s not found", username)
		}
		return err
	})
	g.Go(func() error {
		var err error
		repos, err = a.getRepos(gctx, username)
		return err
	})
	g.Go(func() error {
		text, err := a.getReadme(gctx, username)
		if err != nil {
			return err
		}
		readme = text
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fragment := a.buildProfile(user, repos, readme)

	if readme != "" && a.parseReadme {
		parsed, err := a.extractor.ParseReadme(ctx, readme)
		if err != nil {
			a.logger.Warn("failed to parse github readme", zap.String("username", username), zap.Error(err))
		} else {
			applyReadme(fragment, parsed)
		}
	}

	return fragment, nil
}

// GitHubUsername returns the account name of a github.com profile URL.
func GitHubUsername(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("github url is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid github url %q: %w", raw, err)
	}
	switch strings.ToLower(u.Hostname()) {
	case "github.com", "www.github.com":
	default:
		return "", fmt.Errorf("invalid github url %q: host must be github.com", raw)
	}

	login, _, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
	if !githubLoginPattern.MatchString(login) || githubReservedPaths[strings.ToLower(login)] {
		return "", fmt.Errorf("invalid github url %q: no account in path", raw)
	}
	return login, nil
}

func (a *GitHubAdapter) buildProfile(user githubUser, repos []githubRepo, readme string) *profile.GitHubProfile {
	gh := &profile.GitHubProfile{}

	gh.Name = strings.TrimSpace(user.Name)
	if gh.Name == "" {
		gh.Name = user.Login
	}
	gh.Summary = strings.TrimSpace(user.Bio)

	var skills []string
	for _, r := range repos {
		if r.Name == "" {
			continue
		}
		gh.Extras.Repos = append(gh.Extras.Repos, profile.Repository{
			Name:        r.Name,
			Description: strings.TrimSpace(r.Description),
			Language:    r.Language,
			Topics:      r.Topics,
			Stars:       r.Stars,
			URL:         r.HTMLURL,
		})
		if r.Fork {
			continue
		}
		skills = append(skills, r.Language)
		skills = append(skills, r.Topics...)
	}
	gh.Skills = profile.MergeSkills(nil, skills)

	gh.Extras.UserID = strconv.FormatInt(user.ID, 10)
	gh.Extras.Username = user.Login
	gh.Extras.Location = strings.TrimSpace(user.Location)
	gh.Extras.Email = strings.TrimSpace(user.Email)
	gh.Extras.Company = strings.TrimSpace(user.Company)
	gh.Extras.Website = strings.TrimSpace(user.Blog)
	gh.Extras.Readme = readme

	return gh
}

func applyReadme(gh *profile.GitHubProfile, readme *ai.Readme) {
	if readme == nil {
		return
	}
	if summary := strings.TrimSpace(readme.Summary); summary != "" && summary != gh.Summary {
		if gh.Summary == "" {
			gh.Summary = summary
		} else {
			gh.Summary += "\n\n" + summary
		}
	}
	gh.Extras.TechStack = profile.MergeSkills(nil, readme.TechStack)
	gh.Skills = profile.MergeSkills(gh.Skills, readme.TechStack)
	gh.Projects = append(gh.Projects, readme.Projects...)
}

func (a *GitHubAdapter) getReadme(ctx context.Context, username string) (string, error) {
	var content githubContent
	path := fmt.Sprintf("/repos/%s/%s/readme", url.PathEscape(username), url.PathEscape(username))
	err := a.getJSON(ctx, path, nil, &content)
	if errors.Is(err, errNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	if content.Encoding != "" && content.Encoding != "base64" {
		return content.Content, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		a.logger.Warn("failed to decode github readme", zap.String("username", username), zap.Error(err))
		return "", nil
	}

	return strings.TrimSpace(string(decoded)), nil
}

// getRepos walks the repository pages until a short page or maxRepoPages.
func (a *GitHubAdapter) getRepos(ctx context.Context, username string) ([]githubRepo, error) {
	var repos []githubRepo

	for page := 1; page <= maxRepoPages; page++ {
		q := url.Values{
			"per_page": {strconv.Itoa(reposPerPage)},
			"sort":     {"updated"},
			"page":     {strconv.Itoa(page)},
		}

		var batch []githubRepo
		if err := a.getJSON(ctx, "/users/"+url.PathEscape(username)+"/repos", q, &batch); err != nil {
			return nil, err
		}
		repos = append(repos, batch...)

		if len(batch) < reposPerPage {
			break
		}
		a.logger.Debug("additional request needed", zap.String("username", username), zap.Int("next_page", page+1))
	}

	return repos, nil
}

func (a *GitHubAdapter) getJSON(ctx context.Context, path string, q url.Values, target interface{}) error {
	if err := a.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.apiURL+path, nil)
	if err != nil {
		return err
	}
	a.setHeaders(req)
	if q != nil {
		req.URL.RawQuery = q.Encode()
	}

	a.logger.Debug("make request", zap.String("url", req.URL.String()))
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	return nil
}

func (a *GitHubAdapter) setHeaders(req *http.Request) {
	req.Header.Set("Accept", githubAccept)
	req.Header.Set("X-GitHub-Api-Version", githubAPIVersion)
	req.Header.Set("User-Agent", githubUserAgent)
	if a.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", a.token))
	}
}
