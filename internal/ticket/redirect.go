package ticket

// Role names known to the directory.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// RedirectForRole maps the confirming principal's role to the landing page
// the primary device is sent to. Computed once at confirm time and stored
// on the record; later role changes do not move an in-flight login.
func RedirectForRole(role string) string {
	switch role {
	case RoleAdmin:
		return "/admin/dashboard"
	case RoleStaff:
		return "/staff/dashboard"
	default:
		return "/dashboard"
	}
}
