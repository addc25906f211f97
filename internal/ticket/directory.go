package ticket

import "context"

// StaticDirectory is a fixed username-to-role mapping, used in dev and in
// tests when no Postgres directory is configured. Unknown principals get
// the empty role and land on the default page.
type StaticDirectory map[string]string

func (d StaticDirectory) RoleOf(_ context.Context, username string) (string, error) {
	return d[username], nil
}
