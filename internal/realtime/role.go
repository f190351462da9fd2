package realtime

// Role 订阅者角色
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleParent  Role = "parent"
	RoleStudent Role = "student"
)

// NormalizeRole 把任意角色字符串归一到已知角色。
// 全函数：未知或空角色一律归到权限最小的 student，绝不放大权限。
func NormalizeRole(raw string) Role {
	switch Role(raw) {
	case RoleAdmin:
		return RoleAdmin
	case RoleTeacher:
		return RoleTeacher
	case RoleParent:
		return RoleParent
	case RoleStudent:
		return RoleStudent
	default:
		return RoleStudent
	}
}
