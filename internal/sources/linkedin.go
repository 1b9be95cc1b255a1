package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/spigell/profile-fusion/internal/profile"
)

const (
	defaultUserAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	maxLinkedInBytes  = 2 << 20
	linkedInRootHost  = "linkedin.com"
	linkedInBlockCode = 999
)

// LinkedInOptions configures the LinkedIn adapter.
type LinkedInOptions struct {
	HTTPClient *http.Client
	UserAgent  string
	// Hosts overrides the accepted profile hosts. Defaults to linkedin.com and its subdomains.
	Hosts []string
}

// LinkedInAdapter scrapes a public LinkedIn profile page.
type LinkedInAdapter struct {
	client    *http.Client
	userAgent string
	hosts     []string
	logger    *zap.Logger
}

func NewLinkedInAdapter(opts LinkedInOptions, log *zap.Logger) *LinkedInAdapter {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	userAgent := strings.TrimSpace(opts.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LinkedInAdapter{client: client, userAgent: userAgent, hosts: opts.Hosts, logger: log}
}

func (a *LinkedInAdapter) Platform() profile.Platform { return profile.PlatformLinkedIn }

func (a *LinkedInAdapter) Extract(ctx context.Context, req Request) (profile.SourceProfile, error) {
	liReq, ok := req.(LinkedInRequest)
	if !ok {
		return nil, fmt.Errorf("unexpected request %T", req)
	}

	target, err := a.profileURL(liReq.URL)
	if err != nil {
		return nil, err
	}

	body, err := a.fetch(ctx, target)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(body, maxLinkedInBytes))
	if err != nil {
		return nil, fmt.Errorf("parse linkedin page: %w", err)
	}

	li := parseLinkedInProfile(doc)
	li.Extras.URL = target

	if li.Name == "" && li.Extras.Headline == "" && len(li.Experience) == 0 {
		return nil, errors.New("linkedin page has no public profile data")
	}

	a.logger.Debug("linkedin profile parsed",
		zap.String("url", target),
		zap.Int("experience", len(li.Experience)),
		zap.Int("skills", len(li.Skills)),
	)

	return li, nil
}

func (a *LinkedInAdapter) profileURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("invalid linkedin url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid linkedin url %q: scheme must be http or https", raw)
	}
	if !a.hostAllowed(u.Hostname()) {
		return "", fmt.Errorf("invalid linkedin url %q: unexpected host %q", raw, u.Hostname())
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}

func (a *LinkedInAdapter) hostAllowed(host string) bool {
	host = strings.ToLower(host)
	if len(a.hosts) > 0 {
		for _, h := range a.hosts {
			if strings.EqualFold(h, host) {
				return true
			}
		}
		return false
	}
	return host == linkedInRootHost || strings.HasSuffix(host, "."+linkedInRootHost)
}

func (a *LinkedInAdapter) fetch(ctx context.Context, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	a.logger.Debug("make request", zap.String("url", target))
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch linkedin page: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case linkedInBlockCode:
		resp.Body.Close()
		return nil, errors.New("linkedin refused the request (status 999)")
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}
}

func parseLinkedInProfile(doc *goquery.Document) *profile.LinkedInProfile {
	li := &profile.LinkedInProfile{}

	li.Name = firstText(doc.Selection, "h1.top-card-layout__title", "h1")
	if li.Name == "" {
		if title, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok {
			li.Name = strings.TrimSpace(strings.SplitN(title, " - ", 2)[0])
		}
	}

	li.Extras.Headline = firstText(doc.Selection, "h2.top-card-layout__headline", ".top-card-layout__headline")
	li.Extras.Location = firstText(doc.Selection, ".top-card__subline-item", ".top-card-layout__first-subline .not-first-middot span")

	if about := doc.Find("section.summary .core-section-container__content").First(); about.Length() > 0 {
		li.Summary = aboutMarkdown(about)
	}

	doc.Find("section.experience li.experience-item, section.experience li.profile-section-card").Each(func(_ int, s *goquery.Selection) {
		exp := profile.Experience{
			Title:       firstText(s, ".experience-item__title", "h3"),
			Company:     firstText(s, ".experience-item__subtitle", "h4"),
			Description: firstText(s, ".show-more-less-text__text--less", ".experience-item__description"),
		}
		exp.Start, exp.End = dateRange(s)
		if exp.Title != "" {
			li.Experience = append(li.Experience, exp)
		}
	})

	doc.Find("section.education li.education__list-item, section.education li.profile-section-card").Each(func(_ int, s *goquery.Selection) {
		edu := profile.Education{
			School: firstText(s, "h3"),
			Degree: firstText(s, "h4 span:first-child", "h4"),
		}
		edu.Start, edu.End = dateRange(s)
		if edu.School != "" {
			li.Extras.Education = append(li.Extras.Education, edu)
		}
	})

	doc.Find("section.skills li, .skills__item").Each(func(_ int, s *goquery.Selection) {
		if skill := cleanText(s.Text()); skill != "" {
			li.Skills = append(li.Skills, skill)
		}
	})
	li.Skills = profile.MergeSkills(nil, li.Skills)

	return li
}

func aboutMarkdown(s *goquery.Selection) string {
	html, err := s.Html()
	if err != nil {
		return cleanText(s.Text())
	}
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return cleanText(s.Text())
	}
	return strings.TrimSpace(md)
}

func dateRange(s *goquery.Selection) (string, string) {
	times := s.Find(".date-range time")
	start := cleanText(times.Eq(0).Text())
	end := ""
	if times.Length() > 1 {
		end = cleanText(times.Eq(1).Text())
	}
	return start, end
}

// firstText returns the text of the first selector that matches something non-empty.
func firstText(s *goquery.Selection, selectors ...string) string {
	for _, sel := range selectors {
		if text := cleanText(s.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
