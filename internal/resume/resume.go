// Package resume holds the résumé document and the rules for reading and
// patching it.
package resume

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"
)

type SectionKey string

const (
	SectionSummary      SectionKey = "summary"
	SectionExperience   SectionKey = "experience"
	SectionProjects     SectionKey = "projects"
	SectionEducation    SectionKey = "education"
	SectionCertificates SectionKey = "certificates"
	SectionPublications SectionKey = "publications"
	SectionSkills       SectionKey = "skills"
)

// DefaultSectionOrder is used when a stored résumé has no section order.
var DefaultSectionOrder = []SectionKey{
	SectionSummary,
	SectionExperience,
	SectionProjects,
	SectionEducation,
	SectionCertificates,
	SectionPublications,
	SectionSkills,
}

var ErrInvalidSection = errors.New("unknown resume section")

type Contact struct {
	Email    string `json:"email,omitempty" yaml:"email"`
	Phone    string `json:"phone,omitempty" yaml:"phone"`
	LinkedIn string `json:"linkedin,omitempty" yaml:"linkedin"`
	GitHub   string `json:"github,omitempty" yaml:"github"`
	Location string `json:"location,omitempty" yaml:"location"`
	Website  string `json:"website,omitempty" yaml:"website"`
}

type Experience struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title,omitempty" yaml:"title"`
	Company     string   `json:"company,omitempty" yaml:"company"`
	Location    string   `json:"location,omitempty" yaml:"location"`
	StartDate   string   `json:"startDate,omitempty" yaml:"startDate"`
	EndDate     string   `json:"endDate,omitempty" yaml:"endDate"`
	Description []string `json:"description,omitempty" yaml:"description"`
}

type Education struct {
	ID           string `json:"id" yaml:"id"`
	Institution  string `json:"institution,omitempty" yaml:"institution"`
	Degree       string `json:"degree,omitempty" yaml:"degree"`
	FieldOfStudy string `json:"fieldOfStudy,omitempty" yaml:"fieldOfStudy"`
	StartDate    string `json:"startDate,omitempty" yaml:"startDate"`
	EndDate      string `json:"endDate,omitempty" yaml:"endDate"`
}

type Skill struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Level string `json:"level,omitempty" yaml:"level"`
}

type Skills struct {
	Languages  []Skill `json:"languages" yaml:"languages"`
	Frameworks []Skill `json:"frameworks" yaml:"frameworks"`
	Tools      []Skill `json:"tools" yaml:"tools"`
}

type Project struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name,omitempty" yaml:"name"`
	Description []string `json:"description,omitempty" yaml:"description"`
	URL         string   `json:"url,omitempty" yaml:"url"`
	GitHubURL   string   `json:"githubUrl,omitempty" yaml:"githubUrl"`
	ImageURL    string   `json:"imageUrl,omitempty" yaml:"imageUrl"`
}

type Certificate struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name,omitempty" yaml:"name"`
	Issuer string `json:"issuer,omitempty" yaml:"issuer"`
	Date   string `json:"date,omitempty" yaml:"date"`
	URL    string `json:"url,omitempty" yaml:"url"`
}

type Publication struct {
	ID      string `json:"id" yaml:"id"`
	Title   string `json:"title,omitempty" yaml:"title"`
	Journal string `json:"journal,omitempty" yaml:"journal"`
	Date    string `json:"date,omitempty" yaml:"date"`
	URL     string `json:"url,omitempty" yaml:"url"`
}

type Resume struct {
	Name           string        `json:"name,omitempty" yaml:"name"`
	Title          string        `json:"title,omitempty" yaml:"title"`
	AvatarURL      string        `json:"avatarUrl" yaml:"avatarUrl"`
	Contact        Contact       `json:"contact" yaml:"contact"`
	Summary        string        `json:"summary,omitempty" yaml:"summary"`
	Experience     []Experience  `json:"experience" yaml:"experience"`
	Education      []Education   `json:"education" yaml:"education"`
	Skills         Skills        `json:"skills" yaml:"skills"`
	Projects       []Project     `json:"projects" yaml:"projects"`
	Certificates   []Certificate `json:"certificates" yaml:"certificates"`
	Publications   []Publication `json:"publications" yaml:"publications"`
	HiddenSections []SectionKey  `json:"hiddenSections" yaml:"hiddenSections"`
	SectionOrder   []SectionKey  `json:"sectionOrder" yaml:"sectionOrder"`
	ResumeURL      string        `json:"resumeUrl" yaml:"resumeUrl"`
}

//go:embed default.yaml
var defaultYAML []byte

// Default returns the bundled résumé served when the store has none.
func Default() Resume {
	var r Resume
	if err := yaml.Unmarshal(defaultYAML, &r); err != nil {
		panic(fmt.Sprintf("bundled resume: %v", err))
	}
	return Normalize(r)
}

// Normalize fills missing collections with empty ones and an empty section
// order with DefaultSectionOrder.
func Normalize(r Resume) Resume {
	if r.Experience == nil {
		r.Experience = []Experience{}
	}
	if r.Education == nil {
		r.Education = []Education{}
	}
	if r.Skills.Languages == nil {
		r.Skills.Languages = []Skill{}
	}
	if r.Skills.Frameworks == nil {
		r.Skills.Frameworks = []Skill{}
	}
	if r.Skills.Tools == nil {
		r.Skills.Tools = []Skill{}
	}
	if r.Projects == nil {
		r.Projects = []Project{}
	}
	if r.Certificates == nil {
		r.Certificates = []Certificate{}
	}
	if r.Publications == nil {
		r.Publications = []Publication{}
	}
	if r.HiddenSections == nil {
		r.HiddenSections = []SectionKey{}
	}
	if len(r.SectionOrder) == 0 {
		r.SectionOrder = slices.Clone(DefaultSectionOrder)
	}
	return r
}

// VisibleSections lists the sections in display order, hidden ones removed.
func (r Resume) VisibleSections() []SectionKey {
	out := make([]SectionKey, 0, len(r.SectionOrder))
	for _, key := range r.SectionOrder {
		if !slices.Contains(r.HiddenSections, key) {
			out = append(out, key)
		}
	}
	return out
}

// Validate rejects section keys that are not known sections.
func (r Resume) Validate() error {
	for _, keys := range [][]SectionKey{r.SectionOrder, r.HiddenSections} {
		for _, key := range keys {
			if !slices.Contains(DefaultSectionOrder, key) {
				return fmt.Errorf("%w: %q", ErrInvalidSection, key)
			}
		}
	}
	return nil
}

// Decode parses a stored document and normalizes it.
func Decode(data []byte) (Resume, error) {
	var r Resume
	if err := json.Unmarshal(data, &r); err != nil {
		return Resume{}, fmt.Errorf("decode resume: %w", err)
	}
	return Normalize(r), nil
}

// Merge applies a partial update: every top-level field present in patch
// replaces the stored field, the rest are kept.
func Merge(current []byte, patch []byte) (Resume, []byte, error) {
	fields := map[string]json.RawMessage{}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &fields); err != nil {
			return Resume{}, nil, fmt.Errorf("decode stored resume: %w", err)
		}
	}
	var updates map[string]json.RawMessage
	if err := json.Unmarshal(patch, &updates); err != nil {
		return Resume{}, nil, fmt.Errorf("decode resume patch: %w", err)
	}
	for key, value := range updates {
		fields[key] = value
	}
	merged, err := json.Marshal(fields)
	if err != nil {
		return Resume{}, nil, fmt.Errorf("encode resume: %w", err)
	}
	r, err := Decode(merged)
	if err != nil {
		return Resume{}, nil, err
	}
	if err := r.Validate(); err != nil {
		return Resume{}, nil, err
	}
	normalized, err := json.Marshal(r)
	if err != nil {
		return Resume{}, nil, fmt.Errorf("encode resume: %w", err)
	}
	return r, normalized, nil
}
