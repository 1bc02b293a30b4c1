package model

// ClaimPlatformAdmin marks operators allowed to modify any subscription.
const ClaimPlatformAdmin = "admin"

// Actor is the already-authenticated caller identity supplied by the auth gateway.
type Actor struct {
	UserID string
	Claims []string
}

func (a Actor) IsPlatformAdmin() bool {
	for _, c := range a.Claims {
		if c == ClaimPlatformAdmin {
			return true
		}
	}
	return false
}

func (a Actor) IsZero() bool { return a.UserID == "" }
