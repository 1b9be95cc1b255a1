package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/profile-fusion/internal/profile"
)

const linkedInPage = `<!DOCTYPE html>
<html>
<head><meta property="og:title" content="Jane Doe - Acme | LinkedIn"></head>
<body>
  <section class="top-card-layout">
    <h1 class="top-card-layout__title">Jane Doe</h1>
    <h2 class="top-card-layout__headline">Backend Engineer at Acme</h2>
    <div class="top-card__subline-item">Berlin, Germany</div>
  </section>
  <section class="summary">
    <div class="core-section-container__content"><p>I build <strong>distributed</strong> systems.</p></div>
  </section>
  <section class="experience">
    <ul>
      <li class="experience-item">
        <h3 class="experience-item__title">Engineer</h3>
        <h4 class="experience-item__subtitle">Acme</h4>
        <span class="date-range"><time>Jan 2020</time> - <time>Dec 2022</time></span>
        <p class="show-more-less-text__text--less">Built   payment services.</p>
      </li>
      <li class="experience-item">
        <h3 class="experience-item__title"></h3>
      </li>
    </ul>
  </section>
  <section class="education">
    <ul>
      <li class="education__list-item">
        <h3>MIT</h3>
        <h4><span>BSc</span></h4>
        <span class="date-range"><time>2012</time> - <time>2016</time></span>
      </li>
    </ul>
  </section>
  <section class="skills"><ul><li>Go</li><li>go</li><li>Kafka</li></ul></section>
</body>
</html>`

func newLinkedInServer(t *testing.T, status int, body string) (*httptest.Server, *LinkedInAdapter) {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("missing user agent")
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	adapter := NewLinkedInAdapter(LinkedInOptions{HTTPClient: srv.Client(), Hosts: []string{u.Hostname()}}, nil)
	return srv, adapter
}

func TestLinkedInAdapterExtract(t *testing.T) {
	srv, adapter := newLinkedInServer(t, http.StatusOK, linkedInPage)

	fragment, err := adapter.Extract(context.Background(), LinkedInRequest{URL: srv.URL + "/in/jane?trk=public"})
	require.NoError(t, err)
	require.NoError(t, profile.Validate(fragment))

	li, ok := fragment.(*profile.LinkedInProfile)
	require.True(t, ok)

	assert.Equal(t, "Jane Doe", li.Name)
	assert.Equal(t, "Backend Engineer at Acme", li.Extras.Headline)
	assert.Equal(t, "Berlin, Germany", li.Extras.Location)
	assert.Equal(t, srv.URL+"/in/jane", li.Extras.URL)
	assert.Equal(t, "I build **distributed** systems.", li.Summary)
	assert.Equal(t, []profile.Experience{{
		Title:       "Engineer",
		Company:     "Acme",
		Start:       "Jan 2020",
		End:         "Dec 2022",
		Description: "Built payment services.",
	}}, li.Experience)
	assert.Equal(t, []profile.Education{{School: "MIT", Degree: "BSc", Start: "2012", End: "2016"}}, li.Extras.Education)
	assert.Equal(t, []string{"Go", "Kafka"}, li.Skills)
}

func TestLinkedInAdapterErrors(t *testing.T) {
	srv, adapter := newLinkedInServer(t, 999, "")
	_, err := adapter.Extract(context.Background(), LinkedInRequest{URL: srv.URL + "/in/jane"})
	assert.ErrorContains(t, err, "999")

	srv, adapter = newLinkedInServer(t, http.StatusOK, "<html><body><p>Sign in</p></body></html>")
	_, err = adapter.Extract(context.Background(), LinkedInRequest{URL: srv.URL + "/in/jane"})
	assert.ErrorContains(t, err, "no public profile data")

	_, err = adapter.Extract(context.Background(), LinkedInRequest{URL: "ftp://linkedin.com/in/jane"})
	assert.Error(t, err)
}

func TestLinkedInHostAllowed(t *testing.T) {
	a := NewLinkedInAdapter(LinkedInOptions{}, nil)

	assert.True(t, a.hostAllowed("linkedin.com"))
	assert.True(t, a.hostAllowed("www.linkedin.com"))
	assert.False(t, a.hostAllowed("evil-linkedin.com"))
	assert.False(t, a.hostAllowed("example.com"))
}
