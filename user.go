package notion

import (
	"context"
	"strings"
)

type User struct {
	record
}

func (u *User) Email() string {
	return u.Data().String("email")
}

func (u *User) GivenName() string {
	return u.Data().String("given_name")
}

func (u *User) FamilyName() string {
	return u.Data().String("family_name")
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.GivenName() + " " + u.FamilyName())
}

type Space struct {
	record
}

func (s *Space) Name() string {
	return s.Data().String("name")
}

func (s *Space) Domain() string {
	return s.Data().String("domain")
}

func (s *Space) PageIDs() []string {
	return s.Data().Strings("pages")
}

// Pages returns the top-level pages of the space.
func (s *Space) Pages(ctx context.Context) ([]BlockWrapper, error) {
	return s.client.blocks(ctx, s.PageIDs())
}
