package profile

import "time"

// Platform identifies where a fragment came from.
type Platform string

const (
	PlatformCV       Platform = "cv"
	PlatformLinkedIn Platform = "linkedin"
	PlatformGitHub   Platform = "github"
)

// Platforms lists every supported source in a stable order.
var Platforms = []Platform{PlatformCV, PlatformLinkedIn, PlatformGitHub}

// Valid reports whether p is one of the known platforms.
func (p Platform) Valid() bool {
	switch p {
	case PlatformCV, PlatformLinkedIn, PlatformGitHub:
		return true
	default:
		return false
	}
}

func (p Platform) String() string { return string(p) }

// Experience is a single work history entry.
type Experience struct {
	Title       string `json:"title" validate:"required"`
	Company     string `json:"company"`
	Start       string `json:"start"`
	End         string `json:"end,omitempty"`
	Description string `json:"description,omitempty"`
}

// Project is a single project entry.
type Project struct {
	Name         string   `json:"name" validate:"required"`
	Description  string   `json:"description,omitempty"`
	Technologies []string `json:"technologies,omitempty" validate:"dive,required"`
	URL          string   `json:"url,omitempty" validate:"omitempty,url"`
}

// Fragment holds the fields every source shares. Empty strings mean the
// source did not provide a value.
type Fragment struct {
	Name       string       `json:"name,omitempty"`
	Summary    string       `json:"summary,omitempty"`
	Skills     []string     `json:"skills,omitempty" validate:"dive,required"`
	Experience []Experience `json:"experience,omitempty" validate:"dive"`
	Projects   []Project    `json:"projects,omitempty" validate:"dive"`
}

// SourceProfile is the output of a source adapter. The set of implementations
// is closed: CVProfile, LinkedInProfile and GitHubProfile.
type SourceProfile interface {
	Platform() Platform
	Common() Fragment
	sourceProfile()
}

// Education is shared by the CV and LinkedIn extras.
type Education struct {
	School string `json:"school"`
	Degree string `json:"degree,omitempty"`
	Field  string `json:"field,omitempty"`
	Start  string `json:"start,omitempty"`
	End    string `json:"end,omitempty"`
}

type CVExtras struct {
	FileName  string      `json:"file_name,omitempty"`
	Email     string      `json:"email,omitempty"`
	Phone     string      `json:"phone,omitempty"`
	Education []Education `json:"education,omitempty"`
}

type LinkedInExtras struct {
	URL       string      `json:"url" validate:"required,url"`
	Headline  string      `json:"headline,omitempty"`
	Location  string      `json:"location,omitempty"`
	Education []Education `json:"education,omitempty"`
}

// Repository is a public GitHub repository of the profile owner.
type Repository struct {
	Name        string   `json:"name" validate:"required"`
	Description string   `json:"description,omitempty"`
	Language    string   `json:"language,omitempty"`
	Topics      []string `json:"topics,omitempty"`
	Stars       int      `json:"stars,omitempty"`
	URL         string   `json:"url,omitempty"`
}

type GitHubExtras struct {
	UserID    string       `json:"user_id" validate:"required"`
	Username  string       `json:"username" validate:"required"`
	Location  string       `json:"location,omitempty"`
	Email     string       `json:"email,omitempty"`
	Company   string       `json:"company,omitempty"`
	Website   string       `json:"website,omitempty"`
	Repos     []Repository `json:"repos,omitempty" validate:"dive"`
	TechStack []string     `json:"tech_stack,omitempty"`
	Readme    string       `json:"readme,omitempty"`
}

type CVProfile struct {
	Fragment
	Extras CVExtras `json:"extras"`
}

type LinkedInProfile struct {
	Fragment
	Extras LinkedInExtras `json:"extras"`
}

type GitHubProfile struct {
	Fragment
	Extras GitHubExtras `json:"extras"`
}

func (*CVProfile) Platform() Platform       { return PlatformCV }
func (*LinkedInProfile) Platform() Platform { return PlatformLinkedIn }
func (*GitHubProfile) Platform() Platform   { return PlatformGitHub }

func (p *CVProfile) Common() Fragment       { return p.Fragment }
func (p *LinkedInProfile) Common() Fragment { return p.Fragment }
func (p *GitHubProfile) Common() Fragment   { return p.Fragment }

func (*CVProfile) sourceProfile()       {}
func (*LinkedInProfile) sourceProfile() {}
func (*GitHubProfile) sourceProfile()   {}

// Extras keeps the platform-only data of the latest fragment of each platform.
type Extras struct {
	CV       *CVExtras       `json:"cv,omitempty"`
	LinkedIn *LinkedInExtras `json:"linkedin,omitempty"`
	GitHub   *GitHubExtras   `json:"github,omitempty"`
}

// SourceRecord is one entry of the provenance trail.
type SourceRecord struct {
	Platform  Platform  `json:"platform"`
	Timestamp time.Time `json:"timestamp"`
}

// UnifiedProfile is the canonical record for a profile id. It is only
// changed through Unify.
type UnifiedProfile struct {
	ID            string         `json:"profile_id"`
	Name          string         `json:"name,omitempty"`
	Summary       string         `json:"summary,omitempty"`
	Skills        []string       `json:"skills"`
	Experience    []Experience   `json:"experience"`
	Projects      []Project      `json:"projects"`
	Extras        Extras         `json:"extras"`
	SourceHistory []SourceRecord `json:"source_history"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// EnhancedProfile is a model-polished snapshot of a UnifiedProfile.
type EnhancedProfile struct {
	UnifiedProfile
	Model      string    `json:"model,omitempty"`
	EnhancedAt time.Time `json:"enhanced_at"`
}

// New returns an empty profile with the given id.
func New(id string, at time.Time) *UnifiedProfile {
	return &UnifiedProfile{
		ID:            id,
		Skills:        []string{},
		Experience:    []Experience{},
		Projects:      []Project{},
		SourceHistory: []SourceRecord{},
		CreatedAt:     at,
		UpdatedAt:     at,
	}
}

// Clone returns a deep copy of p.
func (p *UnifiedProfile) Clone() *UnifiedProfile {
	if p == nil {
		return nil
	}
	cp := *p

	cp.Skills = cloneSlice(p.Skills)
	cp.Experience = cloneSlice(p.Experience)
	cp.Projects = cloneSlice(p.Projects)
	for i := range cp.Projects {
		cp.Projects[i].Technologies = cloneSlice(cp.Projects[i].Technologies)
	}
	cp.SourceHistory = cloneSlice(p.SourceHistory)
	cp.Extras = p.Extras.clone()

	return &cp
}

func (e Extras) clone() Extras {
	var out Extras
	if e.CV != nil {
		cv := *e.CV
		cv.Education = cloneSlice(e.CV.Education)
		out.CV = &cv
	}
	if e.LinkedIn != nil {
		li := *e.LinkedIn
		li.Education = cloneSlice(e.LinkedIn.Education)
		out.LinkedIn = &li
	}
	if e.GitHub != nil {
		gh := *e.GitHub
		gh.Repos = cloneSlice(e.GitHub.Repos)
		for i := range gh.Repos {
			gh.Repos[i].Topics = cloneSlice(gh.Repos[i].Topics)
		}
		gh.TechStack = cloneSlice(e.GitHub.TechStack)
		out.GitHub = &gh
	}
	return out
}

// cloneSlice copies s and keeps the nil/empty distinction.
func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}
