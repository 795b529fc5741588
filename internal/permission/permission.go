package permission

import (
	"strings"

	"github.com/velmark/shopapi/internal/apperr"
	"github.com/velmark/shopapi/internal/models"
)

// Authorize passes when the user's permission set intersects requiredAny.
// Pure check, no store access.
func Authorize(user *models.User, requiredAny ...models.Permission) error {
	for _, have := range user.Permissions {
		for _, want := range requiredAny {
			if have == want {
				return nil
			}
		}
	}

	names := make([]string, 0, len(requiredAny))
	for _, p := range requiredAny {
		names = append(names, string(p))
	}
	return apperr.Authorization("insufficient permissions, need one of: " + strings.Join(names, ", "))
}
