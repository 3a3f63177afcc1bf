package types

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var (
	namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.]*$`)
	userPattern = regexp.MustCompile(`^[a-z0-9_]+$`)
	revPattern  = regexp.MustCompile(`^[0-9a-f]{7,40}$`)
)

// Identity of a gradable unit: one team repository for one project, optionally pinned to a
// revision.
type Spec struct {
	Kind  string   `json:"kind"          validate:"required"`
	Proj  string   `json:"proj"          validate:"required"`
	Users []string `json:"users"         validate:"required,min=1,dive,username"`
	Rev   string   `json:"rev,omitempty" validate:"omitempty,gitrev"`
}

// Joined user names, in the order given, used for directory naming
func (s Spec) UsersJoined() string {
	return strings.Join(s.Users, "-")
}

// Same kind and project with the same set of users, regardless of their order
func (s Spec) Same(other Spec) bool {
	if s.Kind != other.Kind || s.Proj != other.Proj || len(s.Users) != len(other.Users) {
		return false
	}
	a := slices.Clone(s.Users)
	b := slices.Clone(other.Users)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

// Copy of the spec pinned at `rev`
func (s Spec) At(rev string) Spec {
	return Spec{Kind: s.Kind, Proj: s.Proj, Users: slices.Clone(s.Users), Rev: rev}
}

func (s Spec) Validate() error {
	var errs []error
	if !namePattern.MatchString(s.Kind) {
		errs = append(errs, fmt.Errorf("invalid kind %q", s.Kind))
	}
	if !namePattern.MatchString(s.Proj) {
		errs = append(errs, fmt.Errorf("invalid proj %q", s.Proj))
	}
	if len(s.Users) == 0 {
		errs = append(errs, errors.New("no users"))
	}
	for _, u := range s.Users {
		if !userPattern.MatchString(u) {
			errs = append(errs, fmt.Errorf("invalid user %q", u))
		}
	}
	if s.Rev != "" && !revPattern.MatchString(s.Rev) {
		errs = append(errs, fmt.Errorf("invalid rev %q", s.Rev))
	}
	return errors.Join(errs...)
}

func (s Spec) String() string {
	if s.Rev == "" {
		return fmt.Sprintf("%s/%s/%s", s.Kind, s.Proj, s.UsersJoined())
	}
	return fmt.Sprintf("%s/%s/%s@%s", s.Kind, s.Proj, s.UsersJoined(), s.Rev)
}

// Identifier of the build of a spec. Used as the workflow id and as the key for local listeners
type BuildID string

func NewBuildID(s Spec) BuildID {
	return BuildID(strings.Join([]string{s.Kind, s.Proj, s.UsersJoined(), s.Rev}, "-"))
}
