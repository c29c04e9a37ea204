package rbac

type Role string
type Action string

const (
	RoleVisitor Role = "visitor"
	RoleOwner   Role = "owner"
)

const (
	ActionReadContent  Action = "content:read"
	ActionEditContent  Action = "content:edit"
	ActionSendMessage  Action = "messages:send"
	ActionReadMessages Action = "messages:read"
	ActionReadHistory  Action = "history:read"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleOwner:
		return true
	case RoleVisitor:
		return action == ActionReadContent || action == ActionSendMessage
	default:
		return false
	}
}

// Normalize maps an unknown or empty role to visitor.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleVisitor, RoleOwner:
		return Role(role)
	default:
		return RoleVisitor
	}
}
